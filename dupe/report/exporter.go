package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"unicode/utf16"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/common"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"
)

// GroupRecord is one exported duplicate group
type GroupRecord struct {
	SizeBytes uint64   `json:"size_bytes"`
	Hash      string   `json:"hash"`
	Paths     []string `json:"paths"`
}

// CSVHeader is the column order of the flattened export
var CSVHeader = []string{"size_bytes", "hash", "path"}

// Records converts groups to export records in Keys() order
func Records(groups types.DuplicateGroups) []GroupRecord {
	records := make([]GroupRecord, 0, len(groups))
	for _, key := range groups.Keys() {
		records = append(records, GroupRecord{
			SizeBytes: key.Size,
			Hash:      key.Digest,
			Paths:     groups[key],
		})
	}
	return records
}

// WriteJSON writes groups as a JSON array indented with two spaces. Non-ASCII
// characters are written as \u escapes and HTML characters are left alone, so the
// output matches exports produced by earlier releases byte for byte.
func WriteJSON(w io.Writer, groups types.DuplicateGroups) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Records(groups)); err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}

	out := escapeNonASCII(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// escapeNonASCII rewrites every rune above 0x7f as \uXXXX, using surrogate pairs
// outside the BMP. Such runes only occur inside JSON strings.
func escapeNonASCII(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, r := range string(b) {
		if r < 0x80 {
			out = append(out, byte(r))
			continue
		}
		if r > 0xffff {
			hi, lo := utf16.EncodeRune(r)
			out = fmt.Appendf(out, `\u%04x\u%04x`, hi, lo)
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}

// WriteCSV writes one row per path with a size_bytes,hash,path header and CRLF
// line endings
func WriteCSV(w io.Writer, groups types.DuplicateGroups) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range Records(groups) {
		size := strconv.FormatUint(rec.SizeBytes, 10)
		for _, path := range rec.Paths {
			if err := cw.Write([]string{size, rec.Hash, path}); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes the JSON and/or CSV files named by jsonPath and csvPath (empty
// paths are skipped). Failures are logged and do not stop the other export;
// the joined error is returned for callers that care.
func Export(groups types.DuplicateGroups, jsonPath, csvPath string, logger common.Logger) error {
	logger = common.OrNop(logger)
	errUtils := common.NewErrorUtils()

	var jsonErr, csvErr error
	if jsonPath != "" {
		if err := writeFile(jsonPath, groups, WriteJSON); err != nil {
			jsonErr = errUtils.LogAndWrapError(logger, err, "failed to write JSON %s", jsonPath)
		} else {
			logger.Info("Written to JSON", "path", jsonPath)
		}
	}
	if csvPath != "" {
		if err := writeFile(csvPath, groups, WriteCSV); err != nil {
			csvErr = errUtils.LogAndWrapError(logger, err, "failed to write CSV %s", csvPath)
		} else {
			logger.Info("Written to CSV", "path", csvPath)
		}
	}
	return errors.Join(jsonErr, csvErr)
}

func writeFile(path string, groups types.DuplicateGroups, write func(io.Writer, types.DuplicateGroups) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f, groups)
}

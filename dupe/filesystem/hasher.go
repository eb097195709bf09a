package filesystem

import (
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/common"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/options"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/mmap"
)

const (
	// SmallFileThreshold is the size at or below which files are always hashed whole
	SmallFileThreshold int64 = 8 * 1024
	// QuickPrefixSize is the prefix read by the auto and quick policies
	QuickPrefixSize int64 = 4 * 1024
	// RegionSize is the window read at each multi-region sample point
	RegionSize int64 = 4 * 1024
	// MultiRegionMinSize is the size a file must exceed before regions are sampled
	MultiRegionMinSize int64 = 12 * 1024
	// ChunkSize is the streaming read size for whole-file hashing
	ChunkSize = 64 * 1024
	// MmapThreshold is the size above which whole-file hashing memory maps the file
	MmapThreshold int64 = 10 * 1024 * 1024
)

// readMode is a BufferPolicy resolved against a concrete file size
type readMode int

const (
	readWhole readMode = iota
	readPrefix
	readRegions
)

// Hasher computes BLAKE2b-512 content digests
type Hasher struct {
	logger        common.Logger
	mmapThreshold int64
}

// NewHasher creates a hasher
func NewHasher(logger common.Logger) *Hasher {
	return &Hasher{
		logger:        common.OrNop(logger),
		mmapThreshold: MmapThreshold,
	}
}

// Hash returns the hex digest of path under opts. An invalid policy returns an
// error wrapping common.ErrInvalidBufferPolicy before any I/O; I/O failures are
// returned as *common.HashError.
func (h *Hasher) Hash(path string, opts options.HashOptions) (string, error) {
	digest, _, err := h.hash(path, opts)
	return digest, err
}

// hash also returns the number of bytes fed to the digest
func (h *Hasher) hash(path string, opts options.HashOptions) (string, int64, error) {
	if err := opts.Policy.Validate(); err != nil {
		return "", 0, fmt.Errorf("%w: %v", common.ErrInvalidBufferPolicy, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, &common.HashError{Path: path, Op: "stat", Err: err}
	}
	size := info.Size()
	mode, limit := resolve(size, opts)

	if mode == readWhole && size > h.mmapThreshold {
		return h.hashMapped(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, &common.HashError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	d := newDigest()
	var n int64
	switch mode {
	case readRegions:
		n, err = hashRegions(d, f, size)
	case readPrefix:
		n, err = io.CopyN(d, f, limit)
		if err == io.EOF {
			err = nil
		}
	default:
		n, err = hashChunked(d, f)
	}
	if err != nil {
		return "", n, &common.HashError{Path: path, Op: "read", Err: err}
	}

	return hex.EncodeToString(d.Sum(nil)), n, nil
}

// resolve applies the size thresholds to a validated policy
func resolve(size int64, opts options.HashOptions) (readMode, int64) {
	if size <= SmallFileThreshold {
		return readWhole, size
	}

	switch opts.Policy.Kind {
	case options.PolicyWholeFile:
		return readWhole, size
	case options.PolicyFixedPrefix:
		// quick requests never sample regions
		return readPrefix, opts.Policy.Prefix
	default:
		if opts.MultiRegion && size > MultiRegionMinSize {
			return readRegions, 3 * RegionSize
		}
		return readPrefix, QuickPrefixSize
	}
}

// regionOffsets returns the start, middle and end window offsets
func regionOffsets(size int64) [3]int64 {
	return [3]int64{0, size/2 - RegionSize/2, max(0, size-RegionSize)}
}

func hashRegions(d hash.Hash, r io.ReaderAt, size int64) (int64, error) {
	var total int64
	for _, off := range regionOffsets(size) {
		n, err := io.Copy(d, io.NewSectionReader(r, off, RegionSize))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func hashChunked(d hash.Hash, r io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	return io.CopyBuffer(d, r, buf)
}

// hashMapped digests the whole file through a read-only memory mapping. The
// result is identical to hashChunked over the same bytes.
func (h *Hasher) hashMapped(path string) (string, int64, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return "", 0, &common.HashError{Path: path, Op: "mmap", Err: err}
	}
	defer m.Close()

	d := newDigest()
	buf := make([]byte, ChunkSize)
	n, err := io.CopyBuffer(d, io.NewSectionReader(m, 0, int64(m.Len())), buf)
	if err != nil {
		return "", n, &common.HashError{Path: path, Op: "read", Err: err}
	}

	h.logger.Debug("Hashed file via mmap", "path", path, "bytes", n)
	return hex.EncodeToString(d.Sum(nil)), n, nil
}

func newDigest() hash.Hash {
	// New512 only fails for keys longer than 64 bytes
	d, _ := blake2b.New512(nil)
	return d
}

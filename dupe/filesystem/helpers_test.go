package filesystem

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"

	"github.com/stretchr/testify/require"
)

// writeFile creates path (and its parents) with data
func writeFile(t testing.TB, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// pattern returns n deterministic bytes seeded by seed
func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31) ^ seed
	}
	return b
}

// withByteAt returns a copy of data with one byte changed
func withByteAt(data []byte, offset int) []byte {
	out := bytes.Clone(data)
	out[offset] ^= 0xff
	return out
}

// createTestStructure creates a tree maxDepth levels deep with width
// subdirectories per level and two small files in each directory
func createTestStructure(t testing.TB, basePath string, currentDepth, maxDepth, width int) {
	t.Helper()
	if currentDepth >= maxDepth {
		return
	}
	for i := range width {
		subDir := filepath.Join(basePath, fmt.Sprintf("level%d_%d", currentDepth, i))
		for j := range 2 {
			writeFile(t, filepath.Join(subDir, fmt.Sprintf("file%d.txt", j)), []byte("test"))
		}
		createTestStructure(t, subDir, currentDepth+1, maxDepth, width)
	}
}

// sortedPaths returns the candidate paths in lexical order
func sortedPaths(files []types.FileCandidate) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	sort.Strings(paths)
	return paths
}

// logEntry is one call recorded by recordingLogger
type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger captures log calls from any goroutine
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

// find returns the entries logged with msg
func (l *recordingLogger) find(msg string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

// recordingProgress captures every progress update
type recordingProgress struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

func (r *recordingProgress) Report(percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, types.ProgressEvent{Percent: percent, Message: message})
}

func (r *recordingProgress) snapshot() []types.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.ProgressEvent(nil), r.events...)
}

func (r *recordingProgress) percents() []int {
	events := r.snapshot()
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = e.Percent
	}
	return out
}

func (r *recordingProgress) messages() []string {
	events := r.snapshot()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Message
	}
	return out
}

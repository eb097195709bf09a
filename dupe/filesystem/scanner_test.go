package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/options"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanOpts(workers int) options.ScanOptions {
	opts := options.DefaultScanOptions()
	opts.Workers = workers
	return opts
}

func TestScanner_FindsEveryFile(t *testing.T) {
	root := t.TempDir()
	createTestStructure(t, root, 0, 3, 3)
	writeFile(t, filepath.Join(root, "top.bin"), pattern(100, 1))

	// 3 + 9 + 27 directories with two files each, plus top.bin
	const expected = 2*(3+9+27) + 1

	var reference []string
	for _, workers := range []int{1, 4, options.MaxWorkers} {
		t.Run("result does not depend on worker count", func(t *testing.T) {
			s := NewScanner(nil, scanOpts(workers))
			files, err := s.Scan(context.Background(), root)
			require.NoError(t, err)
			assert.Len(t, files, expected)

			paths := sortedPaths(files)
			if reference == nil {
				reference = paths
			}
			assert.Equal(t, reference, paths)
			assert.Equal(t, int64(expected), s.Metrics().FilesYielded)
			assert.Equal(t, int64(3+9+27+1), s.Metrics().DirsScanned)
		})
	}
}

func TestScanner_ReportsSizes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "empty"), nil)
	writeFile(t, filepath.Join(root, "a", "ten"), pattern(10, 0))
	writeFile(t, filepath.Join(root, "a", "b", "big"), pattern(70000, 0))

	files, err := NewScanner(nil, scanOpts(2)).Scan(context.Background(), root)
	require.NoError(t, err)

	sizes := make(map[string]uint64)
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f.Path), "paths are rooted at the scan root")
		sizes[f.Path] = f.Size
	}
	assert.Equal(t, map[string]uint64{
		filepath.Join(root, "empty"):          0,
		filepath.Join(root, "a", "ten"):       10,
		filepath.Join(root, "a", "b", "big"): 70000,
	}, sizes)
}

func TestScanner_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, filepath.Join(root, "real", "data.bin"), pattern(64, 2))
	if err := os.Symlink(target, filepath.Join(root, "link.bin")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "linkdir")))
	// a loop through the root is never followed
	require.NoError(t, os.Symlink(root, filepath.Join(root, "real", "loop")))

	s := NewScanner(nil, scanOpts(4))
	files, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{target}, sortedPaths(files))
	assert.Equal(t, int64(3), s.Metrics().SymlinksSkipped)
}

func TestScanner_Exclusions(t *testing.T) {
	root := t.TempDir()
	keep := writeFile(t, filepath.Join(root, "docs", "report.pdf"), pattern(10, 0))
	hiddenFile := writeFile(t, filepath.Join(root, ".secret"), pattern(10, 0))
	hiddenDirFile := writeFile(t, filepath.Join(root, ".git", "objects", "pack"), pattern(10, 0))
	tmp := writeFile(t, filepath.Join(root, "docs", "draft.tmp"), pattern(10, 0))
	nodeModules := writeFile(t, filepath.Join(root, "web", "node_modules", "lib.js"), pattern(10, 0))
	nested := writeFile(t, filepath.Join(root, "web", "src", "node_modules", "x.js"), pattern(10, 0))
	nearMiss := writeFile(t, filepath.Join(root, "web", "node_modules2", "y.js"), pattern(10, 0))

	t.Run("nothing excluded by default", func(t *testing.T) {
		files, err := NewScanner(nil, scanOpts(2)).Scan(context.Background(), root)
		require.NoError(t, err)
		assert.Len(t, files, 7)
	})

	t.Run("hidden entries are skipped", func(t *testing.T) {
		opts := scanOpts(2)
		opts.ExcludeHidden = true
		files, err := NewScanner(nil, opts).Scan(context.Background(), root)
		require.NoError(t, err)
		paths := sortedPaths(files)
		assert.NotContains(t, paths, hiddenFile)
		assert.NotContains(t, paths, hiddenDirFile)
		assert.Contains(t, paths, keep)
	})

	t.Run("directory names are pruned at any depth", func(t *testing.T) {
		opts := scanOpts(2)
		opts.ExcludeDirs = []string{"node_modules"}
		files, err := NewScanner(nil, opts).Scan(context.Background(), root)
		require.NoError(t, err)
		paths := sortedPaths(files)
		assert.NotContains(t, paths, nodeModules)
		assert.NotContains(t, paths, nested)
		assert.Contains(t, paths, nearMiss)
	})

	t.Run("globs match file names", func(t *testing.T) {
		opts := scanOpts(2)
		opts.ExcludeGlobs = []string{"*.tmp", "*.js"}
		files, err := NewScanner(nil, opts).Scan(context.Background(), root)
		require.NoError(t, err)
		paths := sortedPaths(files)
		assert.NotContains(t, paths, tmp)
		assert.NotContains(t, paths, nodeModules)
		assert.Contains(t, paths, keep)
		assert.Len(t, paths, 3)
	})

	t.Run("unclosed bracket is a literal", func(t *testing.T) {
		literal := writeFile(t, filepath.Join(root, "misc", "a[1"), pattern(10, 0))
		other := writeFile(t, filepath.Join(root, "misc", "a1"), pattern(10, 0))
		t.Cleanup(func() { _ = os.RemoveAll(filepath.Join(root, "misc")) })

		opts := scanOpts(2)
		opts.ExcludeGlobs = []string{"a[1"}
		files, err := NewScanner(nil, opts).Scan(context.Background(), root)
		require.NoError(t, err)
		paths := sortedPaths(files)
		assert.NotContains(t, paths, literal)
		assert.Contains(t, paths, other)
		assert.Contains(t, paths, keep)
	})

	t.Run("negated set", func(t *testing.T) {
		opts := scanOpts(2)
		opts.ExcludeGlobs = []string{"[!r]*.*"}
		files, err := NewScanner(nil, opts).Scan(context.Background(), root)
		require.NoError(t, err)
		paths := sortedPaths(files)
		assert.NotContains(t, paths, tmp)
		assert.NotContains(t, paths, nodeModules)
		assert.Contains(t, paths, keep, "report.pdf starts with r")
	})
}

func TestScanner_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	ignoreFile := writeFile(t, filepath.Join(root, ".dupescanignore"), []byte("cache/\n*.log\n"))
	keep := writeFile(t, filepath.Join(root, "src", "main.go"), pattern(10, 0))
	writeFile(t, filepath.Join(root, "cache", "blob"), pattern(10, 0))
	writeFile(t, filepath.Join(root, "src", "debug.log"), pattern(10, 0))

	t.Run("patterns prune files and directories", func(t *testing.T) {
		opts := scanOpts(2)
		opts.IgnoreFile = ".dupescanignore"
		files, err := NewScanner(nil, opts).Scan(context.Background(), root)
		require.NoError(t, err)
		assert.Equal(t, []string{ignoreFile, keep}, sortedPaths(files))
	})

	t.Run("missing ignore file is not an error", func(t *testing.T) {
		opts := scanOpts(2)
		opts.IgnoreFile = ".nothere"
		files, err := NewScanner(nil, opts).Scan(context.Background(), root)
		require.NoError(t, err)
		assert.Len(t, files, 4)
	})
}

func TestScanner_SizeFilterMatchesPostFilter(t *testing.T) {
	root := t.TempDir()
	for i, size := range []int{0, 1, 99, 100, 101, 500, 999, 1000, 1001} {
		writeFile(t, filepath.Join(root, "d", string(rune('a'+i))), pattern(size, 0))
	}
	window := options.SizeRange{Min: 100, Max: 1000}

	all, err := NewScanner(nil, scanOpts(3)).Scan(context.Background(), root)
	require.NoError(t, err)

	opts := scanOpts(3)
	opts.SizeFilter = &window
	s := NewScanner(nil, opts)
	filtered, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, sortedPaths(FilterBySize(all, window)), sortedPaths(filtered))
	assert.Len(t, filtered, 3, "bounds are exclusive: 101, 500 and 999 remain")
	assert.Equal(t, int64(6), s.Metrics().FilesFiltered)
}

func TestScanner_UnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	keep := writeFile(t, filepath.Join(root, "ok", "a"), pattern(10, 0))
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "b"), pattern(10, 0))
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	s := NewScanner(nil, scanOpts(2))
	files, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, sortedPaths(files))
	assert.Equal(t, int64(1), s.Metrics().DirErrors)
}

func TestScanner_Cancellation(t *testing.T) {
	root := t.TempDir()
	createTestStructure(t, root, 0, 3, 4)

	t.Run("cancelled context returns the context error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		files, err := NewScanner(nil, scanOpts(4)).Scan(ctx, root)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, files)
	})

	t.Run("yield error stops the walk", func(t *testing.T) {
		stopErr := errors.New("enough")
		seen := 0
		err := NewScanner(nil, scanOpts(4)).Walk(context.Background(), root, func(types.FileCandidate) error {
			seen++
			if seen == 5 {
				return stopErr
			}
			return nil
		})
		assert.ErrorIs(t, err, stopErr)
		assert.Equal(t, 5, seen)
	})
}

func TestFilterBySize(t *testing.T) {
	files := []types.FileCandidate{
		{Path: "a", Size: 5},
		{Path: "a+1", Size: 6},
		{Path: "b", Size: 10},
		{Path: "c-1", Size: 14},
		{Path: "c", Size: 15},
	}

	tests := []struct {
		name  string
		r     options.SizeRange
		paths []string
	}{
		{"exclusive bounds", options.SizeRange{Min: 5, Max: 15}, []string{"a+1", "b", "c-1"}},
		{"wide window", options.SizeRange{Min: 0, Max: 100}, []string{"a", "a+1", "b", "c", "c-1"}},
		{"empty window", options.SizeRange{Min: 10, Max: 11}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.paths, sortedPaths(FilterBySize(files, tt.r)))
		})
	}
}

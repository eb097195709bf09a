package filesystem

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/common"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/options"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func digestOf(data []byte) string {
	sum := blake2b.Sum512(data)
	return hex.EncodeToString(sum[:])
}

func regionBytes(data []byte) []byte {
	size := int64(len(data))
	var out []byte
	for _, off := range regionOffsets(size) {
		end := min(off+RegionSize, size)
		out = append(out, data[off:end]...)
	}
	return out
}

func TestHasher_Policies(t *testing.T) {
	dir := t.TempDir()
	small := pattern(int(SmallFileThreshold), 1)
	medium := pattern(10*1024, 2)
	large := pattern(100*1024, 3)

	smallPath := writeFile(t, filepath.Join(dir, "small"), small)
	mediumPath := writeFile(t, filepath.Join(dir, "medium"), medium)
	largePath := writeFile(t, filepath.Join(dir, "large"), large)

	tests := []struct {
		name string
		path string
		opts options.HashOptions
		want string
	}{
		{"auto hashes small files whole", smallPath, options.HashOptions{Policy: options.Auto()}, digestOf(small)},
		{"auto hashes a prefix of larger files", largePath, options.HashOptions{Policy: options.Auto()}, digestOf(large[:QuickPrefixSize])},
		{"whole file reads every byte", largePath, options.HashOptions{Policy: options.WholeFile()}, digestOf(large)},
		{"fixed prefix reads n bytes", largePath, options.HashOptions{Policy: options.FixedPrefix(1000)}, digestOf(large[:1000])},
		{"fixed prefix longer than file reads it all", mediumPath, options.HashOptions{Policy: options.FixedPrefix(1 << 20)}, digestOf(medium)},
		{"small files ignore the prefix", smallPath, options.HashOptions{Policy: options.FixedPrefix(10)}, digestOf(small)},
		{"multi-region samples three windows", largePath, options.HashOptions{Policy: options.Auto(), MultiRegion: true}, digestOf(regionBytes(large))},
		{"multi-region needs more than three windows of data", mediumPath, options.HashOptions{Policy: options.Auto(), MultiRegion: true}, digestOf(medium[:QuickPrefixSize])},
		{"multi-region never applies to whole file", largePath, options.HashOptions{Policy: options.WholeFile(), MultiRegion: true}, digestOf(large)},
		{"multi-region never applies to fixed prefix", largePath, options.HashOptions{Policy: options.FixedPrefix(QuickPrefixSize), MultiRegion: true}, digestOf(large[:QuickPrefixSize])},
	}

	h := NewHasher(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Hash(tt.path, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 128)
		})
	}
}

func TestHasher_Deterministic(t *testing.T) {
	dir := t.TempDir()
	data := pattern(50*1024, 9)
	a := writeFile(t, filepath.Join(dir, "a"), data)
	b := writeFile(t, filepath.Join(dir, "b"), data)
	c := writeFile(t, filepath.Join(dir, "c"), withByteAt(data, 40*1024))

	h := NewHasher(nil)
	whole := options.HashOptions{Policy: options.WholeFile()}

	da, err := h.Hash(a, whole)
	require.NoError(t, err)
	db, err := h.Hash(b, whole)
	require.NoError(t, err)
	dc, err := h.Hash(c, whole)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.NotEqual(t, da, dc)

	// the change sits past the prefix, so the cheap digests still agree
	pa, err := h.Hash(a, options.HashOptions{Policy: options.Auto()})
	require.NoError(t, err)
	pc, err := h.Hash(c, options.HashOptions{Policy: options.Auto()})
	require.NoError(t, err)
	assert.Equal(t, pa, pc)
}

func TestHasher_MappedMatchesChunked(t *testing.T) {
	dir := t.TempDir()
	data := pattern(3*ChunkSize+123, 4)
	path := writeFile(t, filepath.Join(dir, "f"), data)
	whole := options.HashOptions{Policy: options.WholeFile()}

	chunked := NewHasher(nil)
	mapped := NewHasher(nil)
	mapped.mmapThreshold = SmallFileThreshold

	d1, n1, err := chunked.hash(path, whole)
	require.NoError(t, err)
	d2, n2, err := mapped.hash(path, whole)
	require.NoError(t, err)

	assert.Equal(t, digestOf(data), d1)
	assert.Equal(t, d1, d2)
	assert.Equal(t, int64(len(data)), n1)
	assert.Equal(t, n1, n2)
}

func TestHasher_Errors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "f"), pattern(10, 0))
	h := NewHasher(nil)

	t.Run("invalid policy fails before any I/O", func(t *testing.T) {
		for _, p := range []options.BufferPolicy{
			options.FixedPrefix(0),
			options.FixedPrefix(-1),
			{Kind: options.PolicyKind(42)},
		} {
			_, err := h.Hash(filepath.Join(dir, "missing"), options.HashOptions{Policy: p})
			assert.ErrorIs(t, err, common.ErrInvalidBufferPolicy, p.String())
			assert.False(t, common.IsHashError(err))
		}
	})

	t.Run("missing file is a hash error", func(t *testing.T) {
		_, err := h.Hash(filepath.Join(dir, "missing"), options.HashOptions{})
		require.Error(t, err)
		var he *common.HashError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, "stat", he.Op)
		assert.Equal(t, filepath.Join(dir, "missing"), he.Path)
	})

	t.Run("zero value options are auto", func(t *testing.T) {
		got, err := h.Hash(path, options.HashOptions{})
		require.NoError(t, err)
		assert.Equal(t, digestOf(pattern(10, 0)), got)
	})
}

func TestRegionOffsets(t *testing.T) {
	assert.Equal(t, [3]int64{0, 6144, 12288}, regionOffsets(16384))
	assert.Equal(t, [3]int64{0, 48 * 1024, 96 * 1024}, regionOffsets(100*1024))
}

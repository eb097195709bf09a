package types

import (
	"slices"
	"sort"
	"strings"
)

// FileCandidate is a regular file discovered by the scanner
type FileCandidate struct {
	Path string `json:"path"`
	Size uint64 `json:"size"`
}

// SizeBuckets groups candidate paths by file size
type SizeBuckets map[uint64][]FileCandidate

// BucketBySize groups candidates by size, preserving discovery order inside each bucket
func BucketBySize(files []FileCandidate) SizeBuckets {
	buckets := make(SizeBuckets)
	for _, f := range files {
		buckets[f.Size] = append(buckets[f.Size], f)
	}
	return buckets
}

// Prune drops sizes with a single member. A lone file of a given size cannot
// have a duplicate.
func (b SizeBuckets) Prune() SizeBuckets {
	out := make(SizeBuckets, len(b))
	for size, files := range b {
		if len(files) > 1 {
			out[size] = files
		}
	}
	return out
}

// Candidates flattens the buckets, largest size first
func (b SizeBuckets) Candidates() []FileCandidate {
	sizes := make([]uint64, 0, len(b))
	total := 0
	for size, files := range b {
		sizes = append(sizes, size)
		total += len(files)
	}
	slices.SortFunc(sizes, func(a, c uint64) int {
		switch {
		case a > c:
			return -1
		case a < c:
			return 1
		}
		return 0
	})

	out := make([]FileCandidate, 0, total)
	for _, size := range sizes {
		out = append(out, b[size]...)
	}
	return out
}

// HashKey identifies a candidate duplicate class at one hashing precision
type HashKey struct {
	Size   uint64 `json:"size_bytes"`
	Digest string `json:"hash"`
}

// DuplicateGroups maps a key to the paths sharing it. Each group has at least
// two paths and a path belongs to at most one group. Callers may mutate path
// slices but must not mutate keys.
type DuplicateGroups map[HashKey][]string

// Prune returns only the groups with two or more paths
func (g DuplicateGroups) Prune() DuplicateGroups {
	out := make(DuplicateGroups, len(g))
	for k, paths := range g {
		if len(paths) > 1 {
			out[k] = paths
		}
	}
	return out
}

// Keys returns the group keys ordered by size descending, then digest
func (g DuplicateGroups) Keys() []HashKey {
	keys := make([]HashKey, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Size != keys[j].Size {
			return keys[i].Size > keys[j].Size
		}
		return keys[i].Digest < keys[j].Digest
	})
	return keys
}

// FileCount returns the total number of paths across all groups
func (g DuplicateGroups) FileCount() int {
	n := 0
	for _, paths := range g {
		n += len(paths)
	}
	return n
}

// PathSets returns every group as a sorted path list, with the lists themselves
// sorted. Two runs over the same tree compare equal under PathSets even when
// discovery order differs.
func (g DuplicateGroups) PathSets() [][]string {
	sets := make([][]string, 0, len(g))
	for _, paths := range g {
		set := slices.Clone(paths)
		slices.Sort(set)
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool {
		return strings.Join(sets[i], "\x00") < strings.Join(sets[j], "\x00")
	})
	return sets
}

// ProgressEvent is one advisory progress update
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// ProgressReporter receives progress updates. Percent is non-decreasing within a
// run. Implementations may be called from worker goroutines but never concurrently.
type ProgressReporter interface {
	Report(percent int, message string)
}

// ProgressFunc adapts a plain function to ProgressReporter
type ProgressFunc func(percent int, message string)

func (f ProgressFunc) Report(percent int, message string) { f(percent, message) }

// NopProgress discards progress updates
var NopProgress ProgressReporter = ProgressFunc(func(int, string) {})

// ProgressChannel forwards updates to ch without blocking; updates are dropped
// when ch is full. The caller owns ch and closes it after the run returns.
func ProgressChannel(ch chan<- ProgressEvent) ProgressReporter {
	return ProgressFunc(func(percent int, message string) {
		select {
		case ch <- ProgressEvent{Percent: percent, Message: message}:
		default:
		}
	})
}

// Summary aggregates a duplicate mapping for reporting
type Summary struct {
	Groups           int    `json:"groups"`
	Files            int    `json:"files"`
	TotalBytes       uint64 `json:"total_bytes"`
	ReclaimableBytes uint64 `json:"reclaimable_bytes"`
}

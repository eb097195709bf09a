package report

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"

	"github.com/armon/go-radix"
)

// DirStats aggregates duplicate files whose parent is Dir
type DirStats struct {
	Dir         string `json:"dir"`
	Files       int    `json:"files"`
	Bytes       uint64 `json:"bytes"`
	Reclaimable uint64 `json:"reclaimable_bytes"`
}

// DirectoryRollup indexes duplicate files by parent directory in a patricia tree
// so whole subtrees can be summed with one prefix walk. The first path of every
// group is the one kept; the rest count towards Reclaimable.
type DirectoryRollup struct {
	tree *radix.Tree
}

// NewDirectoryRollup builds the index for groups
func NewDirectoryRollup(groups types.DuplicateGroups) *DirectoryRollup {
	r := &DirectoryRollup{tree: radix.New()}
	for key, paths := range groups {
		for i, path := range paths {
			stats := r.entry(normalizeDir(filepath.Dir(path)))
			stats.Files++
			stats.Bytes += key.Size
			if i > 0 {
				stats.Reclaimable += key.Size
			}
		}
	}
	return r
}

func (r *DirectoryRollup) entry(dir string) *DirStats {
	if v, ok := r.tree.Get(dir); ok {
		return v.(*DirStats)
	}
	stats := &DirStats{Dir: dir}
	r.tree.Insert(dir, stats)
	return stats
}

// Len returns the number of directories holding at least one duplicate
func (r *DirectoryRollup) Len() int {
	return r.tree.Len()
}

// Get returns the stats of exactly dir, excluding its subdirectories
func (r *DirectoryRollup) Get(dir string) (DirStats, bool) {
	v, ok := r.tree.Get(normalizeDir(dir))
	if !ok {
		return DirStats{}, false
	}
	return *v.(*DirStats), true
}

// Under sums dir and every directory below it. Sibling directories sharing a
// name prefix ("/a/b" and "/a/bc") are kept apart.
func (r *DirectoryRollup) Under(dir string) DirStats {
	prefix := normalizeDir(dir)
	total := DirStats{Dir: prefix}
	r.tree.WalkPrefix(prefix, func(key string, value interface{}) bool {
		if key != prefix && !strings.HasPrefix(key[len(prefix):], "/") && !strings.HasSuffix(prefix, "/") {
			return false
		}
		stats := value.(*DirStats)
		total.Files += stats.Files
		total.Bytes += stats.Bytes
		total.Reclaimable += stats.Reclaimable
		return false
	})
	return total
}

// Top returns up to n directories ordered by reclaimable bytes, largest first.
// n <= 0 returns all of them.
func (r *DirectoryRollup) Top(n int) []DirStats {
	all := make([]DirStats, 0, r.tree.Len())
	r.tree.Walk(func(_ string, value interface{}) bool {
		all = append(all, *value.(*DirStats))
		return false
	})
	slices.SortStableFunc(all, func(a, b DirStats) int {
		switch {
		case a.Reclaimable > b.Reclaimable:
			return -1
		case a.Reclaimable < b.Reclaimable:
			return 1
		}
		return strings.Compare(a.Dir, b.Dir)
	})
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// normalizeDir produces the slash-separated key form used by the tree
func normalizeDir(dir string) string {
	normalized := filepath.ToSlash(filepath.Clean(dir))
	if len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

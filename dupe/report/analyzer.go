package report

import (
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"
)

// AnalyzeSpaceSavings returns the bytes held by every file in groups and the
// bytes freed by keeping one file per group
func AnalyzeSpaceSavings(groups types.DuplicateGroups) (total, reclaimable uint64) {
	for key, paths := range groups {
		n := uint64(len(paths))
		total += key.Size * n
		if n > 1 {
			reclaimable += key.Size * (n - 1)
		}
	}
	return total, reclaimable
}

// Summarize collects the headline numbers of a scan
func Summarize(groups types.DuplicateGroups) types.Summary {
	total, reclaimable := AnalyzeSpaceSavings(groups)
	return types.Summary{
		Groups:           len(groups),
		Files:            groups.FileCount(),
		TotalBytes:       total,
		ReclaimableBytes: reclaimable,
	}
}

package filesystem

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/common"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/options"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
)

// Progress windows for each phase of a run
const (
	progressScanDone  = 15
	progressCheapDone = 65
	progressFullDone  = 100
)

// Engine finds groups of byte-identical files. It holds no state between calls;
// one Engine may serve concurrent FindDuplicates calls when its progress
// reporter tolerates that.
type Engine struct {
	logger   common.Logger
	progress types.ProgressReporter
}

// NewEngine creates an engine. Nil arguments are replaced with no-op implementations.
func NewEngine(logger common.Logger, progress types.ProgressReporter) *Engine {
	if progress == nil {
		progress = types.NopProgress
	}
	return &Engine{logger: common.OrNop(logger), progress: progress}
}

// FindDuplicates runs the engine once with a fresh Engine
func FindDuplicates(ctx context.Context, opts options.DedupeOptions, logger common.Logger, progress types.ProgressReporter) (types.DuplicateGroups, error) {
	return NewEngine(logger, progress).FindDuplicates(ctx, opts)
}

// FindDuplicates scans opts.Root and returns the duplicate groups. Phases run
// strictly in sequence: discovery with the size filter, a cheap hash of every
// file sharing a size, then (unless QuickMode) a full hash of every file still
// sharing a (size, digest) key. Per-file failures are logged and dropped. The
// only errors are cancellation and programmer errors; partial results are never
// returned.
func (e *Engine) FindDuplicates(ctx context.Context, opts options.DedupeOptions) (types.DuplicateGroups, error) {
	runID := uuid.NewString()
	workers := options.NormalizeWorkers(opts.Workers)
	rp := newRunProgress(e.progress)

	e.logger.Info("Starting duplicate scan",
		"run_id", runID,
		"root", opts.Root,
		"min_size", opts.MinSize,
		"max_size", opts.MaxSize,
		"quick", opts.QuickMode,
		"multi_region", opts.MultiRegion,
		"workers", workers)

	// Phase 1: discovery
	rp.Report(0, "Scanning for files...")
	scanOpts := opts.ScanOptions()
	scanOpts.Workers = workers
	scanner := NewScanner(e.logger, scanOpts)
	found, err := scanner.Scan(ctx, opts.Root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", opts.Root, err)
	}
	rp.Report(progressScanDone, fmt.Sprintf("Found %d files to process...", len(found)))

	if len(found) == 0 {
		rp.Report(progressFullDone, "No files found matching criteria.")
		return types.DuplicateGroups{}, nil
	}

	candidates := types.BucketBySize(found).Prune().Candidates()
	e.logger.Debug("Size bucketing completed",
		"run_id", runID,
		"discovered", len(found),
		"sharing_size", len(candidates))
	if len(candidates) == 0 {
		rp.Report(progressFullDone, "Scan complete. No duplicates found.")
		return types.DuplicateGroups{}, nil
	}

	// Phase 2: cheap hash
	hasher := NewHasher(e.logger)
	batch := NewBatchHasher(hasher, e.logger, workers)

	cheapOpts := options.HashOptions{Policy: options.Auto(), MultiRegion: opts.MultiRegion}
	if opts.QuickMode {
		cheapOpts = options.HashOptions{Policy: options.FixedPrefix(QuickPrefixSize)}
	}
	cheap, err := batch.HashAll(ctx, candidates, cheapOpts,
		rp.phase(progressScanDone, progressCheapDone, "Hashing..."))
	if err != nil {
		return nil, err
	}
	cheapGroups := groupByDigest(candidates, cheap)

	if opts.QuickMode {
		result := toDuplicateGroups(candidates, cheapGroups)
		rp.Report(progressFullDone, "Scan complete.")
		e.logSummary(runID, result, batch)
		return result, nil
	}

	// Phase 3: full verification of ambiguous buckets
	rp.Report(progressCheapDone, "Verifying full file hashes...")
	ambiguous := roaring.New()
	for _, idx := range cheapGroups {
		if len(idx) > 1 {
			ambiguous.AddMany(idx)
		}
	}
	if ambiguous.IsEmpty() {
		rp.Report(progressFullDone, "Scan complete. No duplicates found.")
		e.logSummary(runID, types.DuplicateGroups{}, batch)
		return types.DuplicateGroups{}, nil
	}

	verify := make([]types.FileCandidate, 0, ambiguous.GetCardinality())
	it := ambiguous.Iterator()
	for it.HasNext() {
		verify = append(verify, candidates[it.Next()])
	}

	full, err := batch.HashAll(ctx, verify, options.HashOptions{Policy: options.WholeFile()},
		rp.phase(progressCheapDone, progressFullDone, "Verifying..."))
	if err != nil {
		return nil, err
	}

	result := toDuplicateGroups(verify, groupByDigest(verify, full))
	rp.Report(progressFullDone, "Scan complete.")
	e.logSummary(runID, result, batch)
	return result, nil
}

// groupByDigest buckets candidate indices by (size, digest), skipping files
// without a digest. Indices keep discovery order within each bucket.
func groupByDigest(files []types.FileCandidate, digests map[string]string) map[types.HashKey][]uint32 {
	groups := make(map[types.HashKey][]uint32)
	for i, f := range files {
		digest, ok := digests[f.Path]
		if !ok {
			continue
		}
		key := types.HashKey{Size: f.Size, Digest: digest}
		groups[key] = append(groups[key], uint32(i))
	}
	return groups
}

// toDuplicateGroups resolves indices to paths, keeping only groups of two or more
func toDuplicateGroups(files []types.FileCandidate, groups map[types.HashKey][]uint32) types.DuplicateGroups {
	out := make(types.DuplicateGroups)
	for key, idx := range groups {
		if len(idx) < 2 {
			continue
		}
		paths := make([]string, len(idx))
		for i, j := range idx {
			paths[i] = files[j].Path
		}
		out[key] = paths
	}
	return out
}

func (e *Engine) logSummary(runID string, groups types.DuplicateGroups, batch *BatchHasher) {
	args := []any{
		"run_id", runID,
		"groups", len(groups),
		"files", groups.FileCount(),
	}
	args = append(args, common.KeyValues(batch.Metrics())...)
	e.logger.Info("Duplicate scan completed", args...)
}

package filesystem

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/common"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/options"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"

	"github.com/sourcegraph/conc/pool"
)

// BatchHasher hashes many files with bounded concurrency
type BatchHasher struct {
	hasher     *Hasher
	logger     common.Logger
	maxWorkers int
	metrics    *common.HashMetrics
}

// NewBatchHasher creates a batch hasher. Non-positive worker counts fall back to
// the default.
func NewBatchHasher(hasher *Hasher, logger common.Logger, maxWorkers int) *BatchHasher {
	logger = common.OrNop(logger)
	if hasher == nil {
		hasher = NewHasher(logger)
	}
	return &BatchHasher{
		hasher:     hasher,
		logger:     logger,
		maxWorkers: options.NormalizeWorkers(maxWorkers),
		metrics:    &common.HashMetrics{},
	}
}

// Metrics returns counters accumulated across every HashAll call
func (bh *BatchHasher) Metrics() *common.HashMetrics {
	return bh.metrics
}

// HashAll returns path -> digest for every file that hashed successfully. Files
// that fail are logged and left out. Work is dispatched largest first so long
// reads start early. Cancelling ctx stops dispatch, waits for in-flight reads and
// returns ctx.Err() with no results.
func (bh *BatchHasher) HashAll(ctx context.Context, files []types.FileCandidate, opts options.HashOptions, progress types.ProgressReporter) (map[string]string, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidBufferPolicy, err)
	}

	tracker := newBatchProgress(len(files), progress)
	if len(files) == 0 {
		tracker.finish()
		return map[string]string{}, nil
	}

	timeUtils := common.NewTimeUtils()
	start := timeUtils.GetCurrentTime()

	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, func(a, b types.FileCandidate) int {
		switch {
		case a.Size > b.Size:
			return -1
		case a.Size < b.Size:
			return 1
		}
		return 0
	})

	results := make(map[string]string, len(sorted))
	var mu sync.Mutex
	var successCount, errorCount int64

	p := pool.New().WithMaxGoroutines(bh.maxWorkers).WithContext(ctx)
	for _, file := range sorted {
		if ctx.Err() != nil {
			break
		}
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			digest, n, err := bh.hasher.hash(file.Path, opts)
			atomic.AddInt64(&bh.metrics.BytesRead, n)
			if err != nil {
				atomic.AddInt64(&errorCount, 1)
				atomic.AddInt64(&bh.metrics.Failures, 1)
				if common.IsHashError(err) {
					bh.logger.Warn("Could not hash file", "path", file.Path, "error", err)
				} else {
					bh.logger.Error("Unexpected hashing failure", "path", file.Path, "error", err)
				}
			} else {
				atomic.AddInt64(&successCount, 1)
				atomic.AddInt64(&bh.metrics.FilesHashed, 1)
				mu.Lock()
				results[file.Path] = digest
				mu.Unlock()
			}
			tracker.complete()
			return nil
		})
	}

	poolErr := p.Wait()
	end := timeUtils.GetCurrentTime()
	bh.metrics.StartTime, bh.metrics.EndTime = start, end

	if err := ctx.Err(); err != nil {
		bh.logger.Warn("Batch hashing cancelled",
			"completed", atomic.LoadInt64(&successCount)+atomic.LoadInt64(&errorCount),
			"total", len(sorted))
		return nil, err
	}
	if poolErr != nil {
		return nil, poolErr
	}
	tracker.finish()

	bh.logger.Info("Batch hashing completed",
		"total", len(sorted),
		"successful", successCount,
		"failed", errorCount,
		"policy", opts.Policy.String(),
		"multi_region", opts.MultiRegion,
		"duration_ms", end-start)

	return results, nil
}

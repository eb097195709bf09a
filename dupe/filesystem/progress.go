package filesystem

import (
	"fmt"
	"sync"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"
)

// progressStepDivisor sets batch throttling: one update per 1/20th of the work
const progressStepDivisor = 20

// runProgress serialises updates for one run and keeps percent non-decreasing
type runProgress struct {
	mu   sync.Mutex
	last int
	out  types.ProgressReporter
}

func newRunProgress(out types.ProgressReporter) *runProgress {
	if out == nil {
		out = types.NopProgress
	}
	return &runProgress{out: out, last: -1}
}

// Report forwards percent, clamped to [0,100] and to the last value sent
func (rp *runProgress) Report(percent int, message string) {
	percent = min(max(percent, 0), 100)

	rp.mu.Lock()
	defer rp.mu.Unlock()
	if percent < rp.last {
		percent = rp.last
	}
	rp.last = percent
	rp.out.Report(percent, message)
}

// phase maps a sub-task's 0..100 onto the [lo,hi] window of the run
func (rp *runProgress) phase(lo, hi int, label string) types.ProgressReporter {
	return types.ProgressFunc(func(p int, _ string) {
		rp.Report(lo+p*(hi-lo)/100, fmt.Sprintf("%s (%d%%)", label, p))
	})
}

// batchProgress throttles per-item completions into coarse percent updates
type batchProgress struct {
	mu       sync.Mutex
	total    int
	step     int
	done     int
	last     int
	reporter types.ProgressReporter
}

func newBatchProgress(total int, reporter types.ProgressReporter) *batchProgress {
	if reporter == nil {
		reporter = types.NopProgress
	}
	return &batchProgress{
		total:    total,
		step:     max(1, total/progressStepDivisor),
		last:     -1,
		reporter: reporter,
	}
}

// complete records one finished item and reports when a step boundary is crossed
func (bp *batchProgress) complete() {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	bp.done++
	if bp.done%bp.step != 0 && bp.done != bp.total {
		return
	}
	percent := bp.done * 100 / max(bp.total, 1)
	if percent > bp.last {
		bp.last = percent
		bp.reporter.Report(percent, fmt.Sprintf("%d/%d", bp.done, bp.total))
	}
}

// finish guarantees a final 100 even when the batch was empty
func (bp *batchProgress) finish() {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.last < 100 {
		bp.last = 100
		bp.reporter.Report(100, fmt.Sprintf("%d/%d", bp.done, bp.total))
	}
}

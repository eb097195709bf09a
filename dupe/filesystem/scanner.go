package filesystem

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/common"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/options"
	"github.com/ZanzyTHEbar/dupescan/dupe/filesystem/types"

	"github.com/sourcegraph/conc/pool"
)

// Scanner walks a directory tree with a fixed pool of workers draining a shared
// directory queue. Symlinks are never followed or reported.
type Scanner struct {
	logger      common.Logger
	opts        options.ScanOptions
	excludeDirs map[string]struct{}
	pathUtils   *common.PathUtils
	metrics     *common.ScanMetrics

	mu          sync.Mutex
	visitedDirs map[string]struct{}
}

// NewScanner creates a scanner. Non-positive worker counts fall back to the default.
func NewScanner(logger common.Logger, opts options.ScanOptions) *Scanner {
	opts.Workers = options.NormalizeWorkers(opts.Workers)
	if opts.BufferSize <= 0 {
		opts.BufferSize = options.DefaultScanOptions().BufferSize
	}

	excludeDirs := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, name := range opts.ExcludeDirs {
		excludeDirs[name] = struct{}{}
	}

	return &Scanner{
		logger:      common.OrNop(logger),
		opts:        opts,
		excludeDirs: excludeDirs,
		pathUtils:   common.NewPathUtils(),
		metrics:     &common.ScanMetrics{},
	}
}

// Metrics returns the counters of the most recent walk
func (s *Scanner) Metrics() *common.ScanMetrics {
	return s.metrics
}

// Scan collects every candidate under root
func (s *Scanner) Scan(ctx context.Context, root string) ([]types.FileCandidate, error) {
	var files []types.FileCandidate
	err := s.Walk(ctx, root, func(fc types.FileCandidate) error {
		files = append(files, fc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Walk streams candidates under root to yield. yield runs on the calling
// goroutine only; returning an error stops the walk and Walk returns it.
// Unreadable directories are logged and skipped. Order is unspecified.
func (s *Scanner) Walk(ctx context.Context, root string, yield func(types.FileCandidate) error) error {
	globs, err := compileGlobs(s.opts.ExcludeGlobs)
	if err != nil {
		return err
	}

	root = filepath.Clean(root)
	matcher, err := loadIgnoreFile(root, s.opts.IgnoreFile)
	if err != nil {
		s.logger.Warn("Failed to load ignore file", "root", root, "file", s.opts.IgnoreFile, "error", err)
	}

	timeUtils := common.NewTimeUtils()
	s.metrics = &common.ScanMetrics{StartTime: timeUtils.GetCurrentTime()}
	s.mu.Lock()
	s.visitedDirs = map[string]struct{}{root: {}}
	s.mu.Unlock()

	walkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := newDirQueue()
	stop := context.AfterFunc(walkCtx, queue.close)
	defer stop()

	w := &walk{
		scanner: s,
		root:    root,
		ignore:  matcher,
		globs:   globs,
		queue:   queue,
		out:     make(chan types.FileCandidate, s.opts.BufferSize),
	}

	queue.push(root)
	p := pool.New().WithMaxGoroutines(s.opts.Workers).WithContext(walkCtx)
	for range s.opts.Workers {
		p.Go(func(ctx context.Context) error {
			for {
				dir, ok := queue.pop()
				if !ok {
					return nil
				}
				w.scanDir(ctx, dir)
				queue.done()
			}
		})
	}
	go func() {
		_ = p.Wait()
		close(w.out)
	}()

	var yieldErr error
	for fc := range w.out {
		if yieldErr != nil {
			continue
		}
		if err := yield(fc); err != nil {
			yieldErr = err
			cancel()
		}
	}

	s.metrics.EndTime = timeUtils.GetCurrentTime()
	if yieldErr != nil {
		return yieldErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("Traversal completed", common.KeyValues(s.metrics)...)
	return nil
}

// markVisited records dir and reports whether it was new
func (s *Scanner) markVisited(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.visitedDirs[dir]; seen {
		return false
	}
	s.visitedDirs[dir] = struct{}{}
	return true
}

// matchesExclude reports whether a file name matches any exclude glob
func (w *walk) matchesExclude(name string) bool {
	for _, g := range w.globs {
		if g.match(name) {
			return true
		}
	}
	return false
}

// walk holds the per-call state shared by the workers of one Walk
type walk struct {
	scanner *Scanner
	root    string
	ignore  ignoreMatcher
	globs   []nameGlob
	queue   *dirQueue
	out     chan types.FileCandidate
}

// scanDir lists one directory, queues its subdirectories and emits its files
func (w *walk) scanDir(ctx context.Context, dir string) {
	s := w.scanner
	entries, err := os.ReadDir(dir)
	if err != nil {
		atomic.AddInt64(&s.metrics.DirErrors, 1)
		s.logger.Warn("Cannot scan directory", "path", dir, "error", err)
		if len(entries) == 0 {
			return
		}
	}
	atomic.AddInt64(&s.metrics.DirsScanned, 1)

	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)

		if entry.Type()&fs.ModeSymlink != 0 {
			atomic.AddInt64(&s.metrics.SymlinksSkipped, 1)
			s.logger.Debug("Skipping symlink", "path", path)
			continue
		}
		if s.opts.ExcludeHidden && s.pathUtils.IsHidden(name) {
			continue
		}

		if entry.IsDir() {
			if _, excluded := s.excludeDirs[name]; excluded {
				s.logger.Debug("Excluded directory", "path", path)
				continue
			}
			if w.ignored(path, true) {
				s.logger.Debug("Ignored directory", "path", path)
				continue
			}
			if s.markVisited(path) {
				w.queue.push(path)
			}
			continue
		}

		if !entry.Type().IsRegular() {
			s.logger.Debug("Skipping non-regular file", "path", path, "mode", entry.Type().String())
			continue
		}
		if w.matchesExclude(name) {
			s.logger.Debug("Excluded file", "path", path)
			continue
		}
		if w.ignored(path, false) {
			s.logger.Debug("Ignored file", "path", path)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			atomic.AddInt64(&s.metrics.EntryErrors, 1)
			s.logger.Warn("Cannot get size", "path", path, "error", err)
			continue
		}
		size := uint64(info.Size())
		if s.opts.SizeFilter != nil && !s.opts.SizeFilter.Contains(size) {
			atomic.AddInt64(&s.metrics.FilesFiltered, 1)
			continue
		}

		select {
		case w.out <- types.FileCandidate{Path: path, Size: size}:
			atomic.AddInt64(&s.metrics.FilesYielded, 1)
		case <-ctx.Done():
			return
		}
	}
}

func (w *walk) ignored(path string, isDir bool) bool {
	if w.ignore == nil {
		return false
	}
	rel, ok := w.scanner.pathUtils.RelativeSlash(w.root, path)
	if !ok {
		return false
	}
	return w.ignore.matches(rel, isDir)
}

// FilterBySize applies r to files after the fact. Scanning with a SizeFilter
// yields the same set.
func FilterBySize(files []types.FileCandidate, r options.SizeRange) []types.FileCandidate {
	out := make([]types.FileCandidate, 0, len(files))
	for _, f := range files {
		if r.Contains(f.Size) {
			out = append(out, f)
		}
	}
	return out
}

// dirQueue is an unbounded LIFO of directories awaiting a worker. pending counts
// directories pushed but not yet finished; the queue closes itself when it drops
// to zero, which releases every idle worker.
type dirQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []string
	pending int
	closed  bool
}

func newDirQueue() *dirQueue {
	q := &dirQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *dirQueue) push(dir string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, dir)
	q.pending++
	q.cond.Signal()
}

func (q *dirQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return "", false
	}
	last := len(q.items) - 1
	dir := q.items[last]
	q.items = q.items[:last]
	return dir, true
}

// done marks one popped directory as fully processed
func (q *dirQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending <= 0 {
		q.closed = true
		q.cond.Broadcast()
	}
}

// close abandons queued work, used on cancellation
func (q *dirQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = nil
	q.cond.Broadcast()
}

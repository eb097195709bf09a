package options

import (
	"fmt"
	"math"
	"runtime"
)

// MaxWorkers caps every worker pool
const MaxWorkers = 32

// DefaultWorkerCount derives a worker count from available parallelism. Hashing and
// traversal are I/O bound, so the count runs a little above the core count.
func DefaultWorkerCount() int {
	return min(max(runtime.NumCPU()+4, 4), MaxWorkers)
}

// NormalizeWorkers maps non-positive values to the default and clamps the rest
func NormalizeWorkers(n int) int {
	if n <= 0 {
		return DefaultWorkerCount()
	}
	return min(n, MaxWorkers)
}

// PolicyKind selects how much of a file the hasher reads
type PolicyKind int

const (
	// PolicyAuto reads whole small files and a fixed prefix of larger ones
	PolicyAuto PolicyKind = iota
	// PolicyWholeFile always reads every byte
	PolicyWholeFile
	// PolicyFixedPrefix reads at most Prefix bytes from the start
	PolicyFixedPrefix
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyAuto:
		return "auto"
	case PolicyWholeFile:
		return "whole"
	case PolicyFixedPrefix:
		return "prefix"
	default:
		return fmt.Sprintf("PolicyKind(%d)", int(k))
	}
}

// BufferPolicy is the read-size policy for one hash request. The zero value is Auto.
type BufferPolicy struct {
	Kind   PolicyKind
	Prefix int64 // bytes; only meaningful for PolicyFixedPrefix
}

// Auto returns the size-driven policy
func Auto() BufferPolicy { return BufferPolicy{Kind: PolicyAuto} }

// WholeFile returns the full-content policy
func WholeFile() BufferPolicy { return BufferPolicy{Kind: PolicyWholeFile} }

// FixedPrefix returns a policy reading the first n bytes
func FixedPrefix(n int64) BufferPolicy { return BufferPolicy{Kind: PolicyFixedPrefix, Prefix: n} }

func (p BufferPolicy) String() string {
	if p.Kind == PolicyFixedPrefix {
		return fmt.Sprintf("prefix(%d)", p.Prefix)
	}
	return p.Kind.String()
}

// Validate reports whether the policy is well formed
func (p BufferPolicy) Validate() error {
	switch p.Kind {
	case PolicyAuto, PolicyWholeFile:
		return nil
	case PolicyFixedPrefix:
		if p.Prefix <= 0 {
			return fmt.Errorf("prefix must be positive, got %d", p.Prefix)
		}
		return nil
	default:
		return fmt.Errorf("unknown policy kind %d", int(p.Kind))
	}
}

// HashOptions configures a single digest computation
type HashOptions struct {
	Policy      BufferPolicy
	MultiRegion bool // sample start, middle and end instead of only the prefix
}

// SizeRange is an exclusive size window: Min < size < Max
type SizeRange struct {
	Min uint64
	Max uint64
}

// Contains applies the strict bounds
func (r SizeRange) Contains(size uint64) bool {
	return r.Min < size && size < r.Max
}

// ScanOptions configures directory traversal
type ScanOptions struct {
	ExcludeGlobs  []string   // file name globs (shell pattern syntax)
	ExcludeDirs   []string   // directory names pruned wherever they appear
	ExcludeHidden bool       // skip entries whose name starts with "."
	IgnoreFile    string     // gitignore-style file looked up at the root; empty disables
	SizeFilter    *SizeRange // filter during traversal; nil keeps every size
	Workers       int        // traversal goroutines
	BufferSize    int        // result channel buffer
}

// DefaultScanOptions returns sensible defaults for traversal
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Workers:    DefaultWorkerCount(),
		BufferSize: 256,
	}
}

// DedupeOptions configures one duplicate search
type DedupeOptions struct {
	Root          string
	MinSize       uint64 // exclusive
	MaxSize       uint64 // exclusive
	QuickMode     bool   // accept prefix digests without full verification
	MultiRegion   bool   // sample three regions in the cheap pass
	ExcludeGlobs  []string
	ExcludeDirs   []string
	ExcludeHidden bool
	IgnoreFile    string
	Workers       int
}

// DefaultDedupeOptions returns options that consider every non-empty file under
// root and verify candidates with full digests.
func DefaultDedupeOptions(root string) DedupeOptions {
	return DedupeOptions{
		Root:    root,
		MinSize: 0,
		MaxSize: math.MaxUint64,
		Workers: DefaultWorkerCount(),
	}
}

// ScanOptions derives traversal options, size filter included
func (o DedupeOptions) ScanOptions() ScanOptions {
	so := DefaultScanOptions()
	so.ExcludeGlobs = o.ExcludeGlobs
	so.ExcludeDirs = o.ExcludeDirs
	so.ExcludeHidden = o.ExcludeHidden
	so.IgnoreFile = o.IgnoreFile
	so.SizeFilter = &SizeRange{Min: o.MinSize, Max: o.MaxSize}
	so.Workers = NormalizeWorkers(o.Workers)
	return so
}

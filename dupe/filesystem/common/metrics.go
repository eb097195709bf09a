package common

import (
	"fmt"
	"sync/atomic"
	"time"
)

// PerformanceMetrics defines the interface for performance tracking
type PerformanceMetrics interface {
	GetMetrics() map[string]interface{}
}

// ScanMetrics tracks directory traversal counters. Fields are updated with
// atomic operations from scanner workers.
type ScanMetrics struct {
	DirsScanned     int64
	FilesYielded    int64
	FilesFiltered   int64
	SymlinksSkipped int64
	DirErrors       int64
	EntryErrors     int64
	StartTime       int64
	EndTime         int64
}

// GetMetrics returns scan metrics as a map
func (sm *ScanMetrics) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"dirs_scanned":     atomic.LoadInt64(&sm.DirsScanned),
		"files_yielded":    atomic.LoadInt64(&sm.FilesYielded),
		"files_filtered":   atomic.LoadInt64(&sm.FilesFiltered),
		"symlinks_skipped": atomic.LoadInt64(&sm.SymlinksSkipped),
		"dir_errors":       atomic.LoadInt64(&sm.DirErrors),
		"entry_errors":     atomic.LoadInt64(&sm.EntryErrors),
		"duration_ms":      sm.EndTime - sm.StartTime,
	}
}

// HashMetrics tracks batch hashing counters
type HashMetrics struct {
	FilesHashed int64
	Failures    int64
	BytesRead   int64
	StartTime   int64
	EndTime     int64
}

// GetMetrics returns hash metrics as a map
func (hm *HashMetrics) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"files_hashed": atomic.LoadInt64(&hm.FilesHashed),
		"failures":     atomic.LoadInt64(&hm.Failures),
		"bytes_read":   atomic.LoadInt64(&hm.BytesRead),
		"duration_ms":  hm.EndTime - hm.StartTime,
	}
}

// KeyValues flattens a metrics map into alternating key/value pairs for Logger calls
func KeyValues(m PerformanceMetrics) []any {
	metrics := m.GetMetrics()
	kv := make([]any, 0, len(metrics)*2)
	for k, v := range metrics {
		kv = append(kv, k, v)
	}
	return kv
}

// TimeUtils provides time-related utilities used across packages
type TimeUtils struct{}

// NewTimeUtils creates a new TimeUtils instance
func NewTimeUtils() *TimeUtils {
	return &TimeUtils{}
}

// GetCurrentTime returns current time in milliseconds for performance tracking
func (tu TimeUtils) GetCurrentTime() int64 {
	return time.Now().UnixMilli()
}

// FormatDuration formats a duration for human-readable display
func (tu TimeUtils) FormatDuration(duration time.Duration) string {
	if duration < time.Millisecond {
		return fmt.Sprintf("%.2fµs", float64(duration.Nanoseconds())/1000)
	} else if duration < time.Second {
		return fmt.Sprintf("%.2fms", float64(duration.Nanoseconds())/1000000)
	} else if duration < time.Minute {
		return fmt.Sprintf("%.2fs", duration.Seconds())
	} else if duration < time.Hour {
		return fmt.Sprintf("%.2fm", duration.Minutes())
	}
	return fmt.Sprintf("%.2fh", duration.Hours())
}

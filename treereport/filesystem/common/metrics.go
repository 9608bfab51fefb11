package common

import (
	"math"
	"sync"
	"time"
)

// BaseMetrics provides common fields used across different metrics types
type BaseMetrics struct {
	TotalOperations int64
	SuccessfulOps   int64
	FailedOps       int64
	LastOperation   time.Time
	Mu              sync.RWMutex
}

// UpdateBaseMetrics updates common metrics fields
func (bm *BaseMetrics) UpdateBaseMetrics(success bool) {
	bm.Mu.Lock()
	defer bm.Mu.Unlock()

	bm.TotalOperations++
	if success {
		bm.SuccessfulOps++
	} else {
		bm.FailedOps++
	}
	bm.LastOperation = time.Now()
}

// GetBaseMetrics returns the common metrics as a map
func (bm *BaseMetrics) GetBaseMetrics() map[string]interface{} {
	bm.Mu.RLock()
	defer bm.Mu.RUnlock()

	return map[string]interface{}{
		"total_operations": bm.TotalOperations,
		"successful_ops":   bm.SuccessfulOps,
		"failed_ops":       bm.FailedOps,
		"last_operation":   bm.LastOperation,
	}
}

// EntryOutcome describes how one chunk directory was resolved.
type EntryOutcome struct {
	Trees  int64
	Capped bool
	Hidden bool
	Failed bool
}

// ScanTotals is a point-in-time copy of ScanMetrics counters.
type ScanTotals struct {
	Folders int64
	Trees   int64
	Capped  int64
	Hidden  int64
	Errors  int64
}

// ScanMetrics tracks counters for one scan run
type ScanMetrics struct {
	BaseMetrics
	TreesTotal    int64
	CappedEntries int64
	HiddenEntries int64
	TotalDuration time.Duration
}

// RecordEntry adds the outcome of one chunk directory.
func (sm *ScanMetrics) RecordEntry(start time.Time, out EntryOutcome) {
	sm.UpdateBaseMetrics(!out.Failed)

	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	sm.TotalDuration += time.Since(start)
	if out.Failed {
		return
	}
	sm.TreesTotal = addSaturating(sm.TreesTotal, out.Trees)
	if out.Capped {
		sm.CappedEntries++
	}
	if out.Hidden {
		sm.HiddenEntries++
	}
}

// Totals returns the counters needed for the run summary.
func (sm *ScanMetrics) Totals() ScanTotals {
	sm.Mu.RLock()
	defer sm.Mu.RUnlock()

	return ScanTotals{
		Folders: sm.TotalOperations,
		Trees:   sm.TreesTotal,
		Capped:  sm.CappedEntries,
		Hidden:  sm.HiddenEntries,
		Errors:  sm.FailedOps,
	}
}

// GetMetrics returns scan metrics as a map
func (sm *ScanMetrics) GetMetrics() map[string]interface{} {
	metrics := sm.GetBaseMetrics()

	sm.Mu.RLock()
	defer sm.Mu.RUnlock()

	metrics["trees_total"] = sm.TreesTotal
	metrics["capped"] = sm.CappedEntries
	metrics["hidden"] = sm.HiddenEntries
	metrics["duration"] = sm.TotalDuration
	return metrics
}

// addSaturating adds without wrapping; oversized counts pin the total at the
// int64 bounds.
func addSaturating(a, b int64) int64 {
	sum := a + b
	switch {
	case a > 0 && b > 0 && sum < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && sum >= 0:
		return math.MinInt64
	}
	return sum
}

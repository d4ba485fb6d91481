package build

import (
	"sync"
	"time"

	"github.com/conneroisu/brandkit/internal/types"
)

// PipelineMetrics tracks pipeline runs across invocations.
type PipelineMetrics struct {
	TotalRuns       int64
	SuccessfulRuns  int64
	FailedRuns      int64
	AssetsProcessed int64
	AssetsFailed    int64
	Variants        int64
	CacheHits       int64
	AverageDuration time.Duration
	TotalDuration   time.Duration
	mutex           sync.RWMutex
}

// MetricsSnapshot is a copy of PipelineMetrics safe to serialize.
type MetricsSnapshot struct {
	TotalRuns       int64   `json:"totalRuns"`
	SuccessfulRuns  int64   `json:"successfulRuns"`
	FailedRuns      int64   `json:"failedRuns"`
	AssetsProcessed int64   `json:"assetsProcessed"`
	AssetsFailed    int64   `json:"assetsFailed"`
	Variants        int64   `json:"variants"`
	CacheHits       int64   `json:"cacheHits"`
	CacheHitRate    float64 `json:"cacheHitRate"`
	SuccessRate     float64 `json:"successRate"`
	AverageDuration int64   `json:"averageDurationMs"`
	TotalDuration   int64   `json:"totalDurationMs"`
}

// NewPipelineMetrics creates a metrics tracker.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{}
}

// RecordAsset records one finished transform.
func (pm *PipelineMetrics) RecordAsset(variants, cacheHits int, failed bool) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if failed {
		pm.AssetsFailed++
		return
	}
	pm.AssetsProcessed++
	pm.Variants += int64(variants)
	pm.CacheHits += int64(cacheHits)
}

// RecordRun records a finished pipeline run.
func (pm *PipelineMetrics) RecordRun(result types.PipelineResult, duration time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.TotalRuns++
	pm.TotalDuration += duration
	if result.Success {
		pm.SuccessfulRuns++
	} else {
		pm.FailedRuns++
	}
	pm.AverageDuration = pm.TotalDuration / time.Duration(pm.TotalRuns)
}

// Snapshot returns the current counters.
func (pm *PipelineMetrics) Snapshot() MetricsSnapshot {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	snap := MetricsSnapshot{
		TotalRuns:       pm.TotalRuns,
		SuccessfulRuns:  pm.SuccessfulRuns,
		FailedRuns:      pm.FailedRuns,
		AssetsProcessed: pm.AssetsProcessed,
		AssetsFailed:    pm.AssetsFailed,
		Variants:        pm.Variants,
		CacheHits:       pm.CacheHits,
		AverageDuration: pm.AverageDuration.Milliseconds(),
		TotalDuration:   pm.TotalDuration.Milliseconds(),
	}
	if pm.Variants > 0 {
		snap.CacheHitRate = float64(pm.CacheHits) / float64(pm.Variants) * 100.0
	}
	if pm.TotalRuns > 0 {
		snap.SuccessRate = float64(pm.SuccessfulRuns) / float64(pm.TotalRuns) * 100.0
	}
	return snap
}

// Reset zeroes all counters.
func (pm *PipelineMetrics) Reset() {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.TotalRuns = 0
	pm.SuccessfulRuns = 0
	pm.FailedRuns = 0
	pm.AssetsProcessed = 0
	pm.AssetsFailed = 0
	pm.Variants = 0
	pm.CacheHits = 0
	pm.AverageDuration = 0
	pm.TotalDuration = 0
}

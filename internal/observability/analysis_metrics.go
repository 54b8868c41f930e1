package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

const (
	metricCommitsTotal      = "codecouple.analysis.commits.total"
	metricStageDuration     = "codecouple.analysis.stage.duration.seconds"
	metricEntityCacheHits   = "codecouple.analysis.entity_cache.hits.total"
	metricEntityCacheMisses = "codecouple.analysis.entity_cache.misses.total"

	attrStage = "stage"
)

// AnalysisMetrics holds OTel instruments for pipeline-specific metrics:
// commits processed, per-stage duration, and EntityResolver cache
// effectiveness.
type AnalysisMetrics struct {
	commitsTotal      metric.Int64Counter
	stageDuration     metric.Float64Histogram
	entityCacheHits   metric.Int64Counter
	entityCacheMisses metric.Int64Counter
}

// AnalysisStats holds the statistics for one Orchestrator.Run pass.
type AnalysisStats struct {
	Commits           int64
	StageDurations    map[model.TaskStage]time.Duration
	EntityCacheHits   int64
	EntityCacheMisses int64
}

// NewAnalysisMetrics creates analysis metric instruments from the given meter.
func NewAnalysisMetrics(mt metric.Meter) (*AnalysisMetrics, error) {
	b := newMetricBuilder(mt)

	am := &AnalysisMetrics{
		commitsTotal:      b.counter(metricCommitsTotal, "Total commits analyzed", "{commit}"),
		stageDuration:     b.histogram(metricStageDuration, "Per-stage pipeline duration in seconds", "s", durationBucketBoundaries...),
		entityCacheHits:   b.counter(metricEntityCacheHits, "EntityResolver cache hits", "{hit}"),
		entityCacheMisses: b.counter(metricEntityCacheMisses, "EntityResolver cache misses", "{miss}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return am, nil
}

// RecordRun records analysis statistics for a completed (or failed)
// Orchestrator.Run pass. Safe to call on a nil receiver (no-op).
func (am *AnalysisMetrics) RecordRun(ctx context.Context, stats AnalysisStats) {
	if am == nil {
		return
	}

	am.commitsTotal.Add(ctx, stats.Commits)

	for stage, d := range stats.StageDurations {
		am.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrStage, string(stage))))
	}

	am.entityCacheHits.Add(ctx, stats.EntityCacheHits)
	am.entityCacheMisses.Add(ctx, stats.EntityCacheMisses)
}

package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/internal/observability"
)

func setupAnalysisMeter(t *testing.T) (*observability.AnalysisMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	am, err := observability.NewAnalysisMetrics(meter)
	require.NoError(t, err)

	return am, reader
}

func TestNewAnalysisMetrics(t *testing.T) {
	t.Parallel()

	am, _ := setupAnalysisMeter(t)
	assert.NotNil(t, am)
}

func TestAnalysisMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	am, reader := setupAnalysisMeter(t)
	ctx := context.Background()

	am.RecordRun(ctx, observability.AnalysisStats{
		Commits: 100,
		StageDurations: map[model.TaskStage]time.Duration{
			model.StageExtract:   time.Second,
			model.StageChangeset: 2 * time.Second,
			model.StageEdge:      3 * time.Second,
		},
		EntityCacheHits:   50,
		EntityCacheMisses: 10,
	})

	rm := collectMetrics(t, reader)

	commits := findMetric(rm, "codecouple.analysis.commits.total")
	require.NotNil(t, commits, "commits counter should exist")

	stageDur := findMetric(rm, "codecouple.analysis.stage.duration.seconds")
	require.NotNil(t, stageDur, "stage duration histogram should exist")

	// Verify histogram has data points with correct count.
	hist, ok := stageDur.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected Histogram data type")
	require.Len(t, hist.DataPoints, 3, "should have one data point per recorded stage")

	cacheHits := findMetric(rm, "codecouple.analysis.entity_cache.hits.total")
	require.NotNil(t, cacheHits, "entity cache hits counter should exist")

	cacheMisses := findMetric(rm, "codecouple.analysis.entity_cache.misses.total")
	require.NotNil(t, cacheMisses, "entity cache misses counter should exist")
}

func TestAnalysisMetrics_RecordRun_NilReceiver(t *testing.T) {
	t.Parallel()

	var am *observability.AnalysisMetrics

	// Should not panic.
	am.RecordRun(context.Background(), observability.AnalysisStats{Commits: 10})
}

package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/sumatoshi-tech/codecouple/internal/observability"
)

func newTestProvider() (*tracetest.InMemoryExporter, trace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	return exporter, tp
}

func TestFilteringProvider_SuppressedTracer(t *testing.T) {
	t.Parallel()

	exporter, base := newTestProvider()
	fp := observability.NewFilteringTracerProvider(base)

	// codecouple.gitlib is suppressed — spans should not be recorded.
	tracer := fp.Tracer("codecouple.gitlib")
	_, span := tracer.Start(context.Background(), "git.lookup_commit")
	span.End()

	assert.Empty(t, exporter.GetSpans(), "suppressed tracer should produce no exported spans")
}

func TestFilteringProvider_SuppressedSpan(t *testing.T) {
	t.Parallel()

	exporter, base := newTestProvider()
	fp := observability.NewFilteringTracerProvider(base)

	tracer := fp.Tracer("codecouple.edge")

	// Structural span should pass through.
	_, structSpan := tracer.Start(context.Background(), "codecouple.edge.build")
	structSpan.End()

	// Hot-path span should be suppressed.
	_, hotSpan := tracer.Start(context.Background(), "codecouple.edge.accumulate")
	hotSpan.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "only structural span should be exported")
	assert.Equal(t, "codecouple.edge.build", spans[0].Name)
}

func TestFilteringProvider_PassThrough(t *testing.T) {
	t.Parallel()

	exporter, base := newTestProvider()
	fp := observability.NewFilteringTracerProvider(base)

	// Root "codecouple" tracer is not suppressed — spans pass through,
	// but span-level filtering still applies (codecouple.edge.accumulate).
	tracer := fp.Tracer("codecouple")
	_, span := tracer.Start(context.Background(), "codecouple.analyze")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "codecouple.analyze", spans[0].Name)
}

func TestFilteringProvider_GitlibRevwalkSuppressed(t *testing.T) {
	t.Parallel()

	exporter, base := newTestProvider()
	fp := observability.NewFilteringTracerProvider(base)

	tracer := fp.Tracer("codecouple.gitlib")
	_, span := tracer.Start(context.Background(), "git.diff_tree_to_tree")
	span.End()

	assert.Empty(t, exporter.GetSpans(), "gitlib per-commit spans should be suppressed")
}

func TestFilteringProvider_NoopSpanIsValid(t *testing.T) {
	t.Parallel()

	fp := observability.NewFilteringTracerProvider(nooptrace.NewTracerProvider())

	tracer := fp.Tracer("codecouple.gitlib")
	ctx, span := tracer.Start(context.Background(), "git.lookup_blob")

	// Noop span should still be usable without panicking.
	span.SetName("renamed")
	span.End()

	assert.NotNil(t, ctx)
}

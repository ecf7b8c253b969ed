package oteladapters_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/tpcb-benchmark-go/testutil/storefake"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/oteladapters"
)

func Test_BenchmarkRunner_WithOpenTelemetry(t *testing.T) {
	// arrange
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter := tracetest.NewInMemoryExporter()
	tracerProvider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	recorder := &recordingLogger{}

	runner, err := tpcb.NewBenchmarkRunner(storefake.NewSessionProvider(), tpcb.DefaultScaleParameters(1),
		tpcb.WithClients(3),
		tpcb.WithTransactionsPerClient(4),
		tpcb.WithReportWriter(&bytes.Buffer{}),
		tpcb.WithMetrics(oteladapters.NewMetricsCollector(meterProvider.Meter("tpcb"))),
		tpcb.WithTracing(oteladapters.NewTracingCollector(tracerProvider.Tracer("tpcb"))),
		tpcb.WithContextualLogger(oteladapters.NewOTelLogger(recorder)),
	)
	require.NoError(t, err)

	// act
	require.NoError(t, runner.Start(context.Background()))

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 5, "one session span and four sub-run spans")

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	transactions, ok := findMetric(t, resourceMetrics, "tpcb_transactions_total").Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dataPoint := range transactions.DataPoints {
		total += dataPoint.Value
	}
	assert.Equal(t, int64(48), total)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.NotEmpty(t, recorder.records)
}

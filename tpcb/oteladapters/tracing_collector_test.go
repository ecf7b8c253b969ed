package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/oteladapters"
)

func givenTracingCollector() (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, value string) {
	t.Helper()

	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) {
			assert.Equal(t, value, attr.Value.AsString(), "attribute %s", key)
			return
		}
	}

	assert.Failf(t, "attribute not found", "span %s has no attribute %s", span.Name, key)
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	// arrange
	collector, exporter := givenTracingCollector()

	// act
	_, spanCtx := collector.StartSpan(context.Background(), "tpcb.subrun", map[string]string{
		"transactions": "on",
		"prepared":     "off",
	})
	collector.FinishSpan(spanCtx, "success", map[string]string{"total_count": "1000"})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "tpcb.subrun", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assertSpanHasAttribute(t, spans[0], "transactions", "on")
	assertSpanHasAttribute(t, spans[0], "prepared", "off")
	assertSpanHasAttribute(t, spans[0], "total_count", "1000")
}

func Test_TracingCollector_SubRunSpanIsChildOfSessionSpan(t *testing.T) {
	// arrange
	collector, exporter := givenTracingCollector()

	// act
	ctx, sessionSpan := collector.StartSpan(context.Background(), "tpcb.session", nil)
	_, subRunSpan := collector.StartSpan(ctx, "tpcb.subrun", nil)
	collector.FinishSpan(subRunSpan, "success", nil)
	collector.FinishSpan(sessionSpan, "success", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "tpcb.subrun", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func Test_TracingCollector_StatusMapping(t *testing.T) {
	tests := []struct {
		status       string
		expectedCode codes.Code
	}{
		{status: "success", expectedCode: codes.Ok},
		{status: "error", expectedCode: codes.Error},
		{status: "timeout", expectedCode: codes.Error},
		{status: "something_else", expectedCode: codes.Unset},
	}

	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			collector, exporter := givenTracingCollector()

			_, spanCtx := collector.StartSpan(context.Background(), "tpcb.session", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.expectedCode, spans[0].Status.Code)
		})
	}
}

func Test_OTelSpanContext_AddAttribute(t *testing.T) {
	// arrange
	collector, exporter := givenTracingCollector()
	_, spanCtx := collector.StartSpan(context.Background(), "tpcb.session", nil)

	// act
	spanCtx.AddAttribute("session_id", "abc")
	collector.FinishSpan(spanCtx, "success", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assertSpanHasAttribute(t, spans[0], "session_id", "abc")
}

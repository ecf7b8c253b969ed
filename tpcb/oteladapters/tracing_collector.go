package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
)

const (
	statusSuccess        = "success"
	statusError          = "error"
	statusTimeout        = "timeout"
	statusAttributeKey   = "status"
	statusDescError      = "benchmark run failed"
	statusDescJoinTimeout = "client workers did not finish in time"
)

// TracingCollector implements tpcb.TracingCollector using the OpenTelemetry tracing API.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a tracing collector that starts its spans from tracer.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span as a child of the span in ctx, if any.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, tpcb.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan adds the final attributes, sets the status, and ends the span.
func (t *TracingCollector) FinishSpan(spanCtx tpcb.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(attributes(attrs)...)
	otelSpanCtx.SetStatus(status)
	otelSpanCtx.span.End()
}

var _ tpcb.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext implements tpcb.SpanContext by wrapping an OpenTelemetry span.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus maps the benchmark status strings to OpenTelemetry status codes.
// Unknown statuses are recorded as a span attribute.
func (s *OTelSpanContext) SetStatus(status string) {
	switch status {
	case statusSuccess:
		s.span.SetStatus(codes.Ok, "")
	case statusError:
		s.span.SetStatus(codes.Error, statusDescError)
	case statusTimeout:
		s.span.SetStatus(codes.Error, statusDescJoinTimeout)
	default:
		s.span.SetAttributes(attribute.String(statusAttributeKey, status))
	}
}

// AddAttribute adds a string attribute to the span.
func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ tpcb.SpanContext = (*OTelSpanContext)(nil)

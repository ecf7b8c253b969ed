// Package oteladapters provides OpenTelemetry adapters for the tpcb observability interfaces.
//
// MetricsCollector maps the benchmark metrics to OpenTelemetry instruments, TracingCollector
// creates one span per session and per sub-run, and SlogBridgeLogger and OTelLogger provide
// context-aware logging with trace correlation.
//
//	runner, err := tpcb.NewBenchmarkRunner(provider, scale,
//		tpcb.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter("tpcb"))),
//		tpcb.WithTracing(oteladapters.NewTracingCollector(otel.Tracer("tpcb"))),
//		tpcb.WithContextualLogger(oteladapters.NewSlogBridgeLogger("tpcb")),
//	)
package oteladapters

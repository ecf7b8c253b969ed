// Package helper provides test spies for the tpcb observability interfaces.
//
// MetricsCollectorSpy and TracingCollectorSpy capture metrics and tracing calls,
// LogHandlerSpy captures slog records. All spies are safe for concurrent use, because the
// benchmark reports from many worker goroutines at once.
package helper

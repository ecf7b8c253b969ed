package tpcb

import (
	"context"
	"fmt"
	"time"
)

// Logger interface for SQL statement logging, run progress, warnings, and error reporting.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// It follows the same dependency-free pattern as MetricsCollector and TracingCollector.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting benchmark metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods.
// The runner uses the context-aware methods when available.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting tracing information of sessions and sub-runs.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

const (
	metricTransactionDuration = "tpcb_transaction_duration_seconds"
	metricTransactionsTotal   = "tpcb_transactions_total"
	metricRollbacksTotal      = "tpcb_rollbacks_total"
	metricSubRunDuration      = "tpcb_subrun_duration_seconds"
	metricSubRunThroughput    = "tpcb_subrun_throughput_tps"
	metricWorkerErrors        = "tpcb_worker_errors_total"

	spanNameSession = "tpcb.session"
	spanNameSubRun  = "tpcb.subrun"

	labelTransactions = "transactions"
	labelPrepared     = "prepared"
	labelStatus       = "status"
	labelErrorType    = "error_type"

	spanAttrSessionID   = "session_id"
	spanAttrClients     = "clients"
	spanAttrTxPerClient = "tx_per_client"
	spanAttrTotal       = "total_count"
	spanAttrFailed      = "failed_count"
	spanAttrErrorType   = "error_type"
	spanAttrDurationMS  = "duration_ms"

	statusSuccess = "success"
	statusError   = "error"
	statusTimeout = "timeout"

	errorTypeConnect  = "connect"
	errorTypePrepare  = "prepare"
	errorTypeNoWorker = "no_worker_started"
	errorTypeJoin     = "join_timeout"
)

// observer bundles the optional observability collaborators. All methods are no-ops for unset ones.
type observer struct {
	logger           Logger
	contextualLogger ContextualLogger
	metricsCollector MetricsCollector
	tracingCollector TracingCollector
}

func (o observer) logDebug(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (o observer) logInfo(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (o observer) logWarn(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if o.logger != nil {
		o.logger.Warn(msg, allArgs...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.WarnContext(ctx, msg, allArgs...)
	}
}

func (o observer) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if o.logger != nil {
		o.logger.Error(msg, allArgs...)
	}

	if o.contextualLogger != nil {
		o.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

// recordDuration records a duration metric, with context if the collector supports it.
func (o observer) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
	} else {
		o.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

// incrementCounter increments a counter metric, with context if the collector supports it.
func (o observer) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		o.metricsCollector.IncrementCounter(metric, labels)
	}
}

// recordValue records a gauge metric, with context if the collector supports it.
func (o observer) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if o.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := o.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
	} else {
		o.metricsCollector.RecordValue(metric, value, labels)
	}
}

func (o observer) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if o.tracingCollector == nil {
		return ctx, nil
	}

	return o.tracingCollector.StartSpan(ctx, name, attrs)
}

func (o observer) finishSpan(span SpanContext, status string, attrs map[string]string) {
	if o.tracingCollector == nil || span == nil {
		return
	}

	o.tracingCollector.FinishSpan(span, status, attrs)
}

// modeLabels returns the metric labels describing the mode of a sub-run.
func modeLabels(config RunConfig) map[string]string {
	return map[string]string{
		labelTransactions: onOff(config.UseTransactions),
		labelPrepared:     onOff(config.UsePreparedStatements),
	}
}

func formatDurationMS(d time.Duration) string {
	return fmt.Sprintf("%.2f", toMilliseconds(d))
}

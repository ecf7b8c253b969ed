package tpcb

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Option defines a functional option for configuring a BenchmarkRunner.
type Option func(*BenchmarkRunner) error

// WithClients sets the number of concurrent client workers per sub-run.
func WithClients(numClients int) Option {
	return func(r *BenchmarkRunner) error {
		if numClients <= 0 {
			return errors.Join(ErrInvalidRunConfig, fmt.Errorf("number of clients must be positive, got %d", numClients))
		}

		r.numClients = numClients

		return nil
	}
}

// WithTransactionsPerClient sets the number of transactions every client worker executes per sub-run.
func WithTransactionsPerClient(txPerClient int) Option {
	return func(r *BenchmarkRunner) error {
		if txPerClient <= 0 {
			return errors.Join(ErrInvalidRunConfig, fmt.Errorf("transactions per client must be positive, got %d", txPerClient))
		}

		r.txPerClient = txPerClient

		return nil
	}
}

// WithJoinTimeout bounds how long the runner waits for the workers of one sub-run.
// When the timeout expires the session is aborted with ErrJoinTimeout. Stalled workers are not
// cancelled. Zero, the default, waits indefinitely.
func WithJoinTimeout(timeout time.Duration) Option {
	return func(r *BenchmarkRunner) error {
		if timeout < 0 {
			return errors.Join(ErrInvalidRunConfig, fmt.Errorf("join timeout must not be negative, got %s", timeout))
		}

		r.joinTimeout = timeout

		return nil
	}
}

// WithTableNames sets the names of the TPC-B tables.
func WithTableNames(tables TableNames) Option {
	return func(r *BenchmarkRunner) error {
		if err := tables.Validate(); err != nil {
			return err
		}

		r.tableNames = tables

		return nil
	}
}

// WithReportWriter sets where sub-run reports are written. Defaults to os.Stdout.
func WithReportWriter(w io.Writer) Option {
	return func(r *BenchmarkRunner) error {
		if w == nil {
			return ErrNilReportWriter
		}

		r.reportWriter = w

		return nil
	}
}

// WithJSONReports writes reports as JSON lines instead of text.
func WithJSONReports() Option {
	return func(r *BenchmarkRunner) error {
		r.jsonReports = true
		return nil
	}
}

// WithMemorySampler sets the sampler for the memory bounds of a sub-run. Defaults to RuntimeMemorySampler.
func WithMemorySampler(sampler MemorySampler) Option {
	return func(r *BenchmarkRunner) error {
		r.memorySampler = sampler
		return nil
	}
}

// WithMemorySampleInterval sets how often memory is sampled while a sub-run is active.
// Zero samples only at the start and the end of a sub-run.
func WithMemorySampleInterval(interval time.Duration) Option {
	return func(r *BenchmarkRunner) error {
		if interval < 0 {
			return errors.Join(ErrInvalidRunConfig, fmt.Errorf("memory sample interval must not be negative, got %s", interval))
		}

		r.memorySampleInterval = interval

		return nil
	}
}

// WithSeed makes the drawn transaction operands reproducible. Every worker gets its own PCG stream.
// Zero, the default, seeds randomly.
func WithSeed(seed uint64) Option {
	return func(r *BenchmarkRunner) error {
		r.seed = seed
		return nil
	}
}

// WithLogger sets the logger for the BenchmarkRunner.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: failed transactions
// Info level: session and sub-run progress with counts and throughput
// Warn level: swallowed rollback and cleanup failures
// Error level: worker start failures and aborted sub-runs.
func WithLogger(logger Logger) Option {
	return func(r *BenchmarkRunner) error {
		r.observer.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the BenchmarkRunner.
// Log messages carry the session and sub-run span context when tracing is enabled.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(r *BenchmarkRunner) error {
		r.observer.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the BenchmarkRunner.
// It receives transaction durations and counts, rollbacks, worker errors, and sub-run throughput.
func WithMetrics(collector MetricsCollector) Option {
	return func(r *BenchmarkRunner) error {
		r.observer.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the BenchmarkRunner.
// It receives one span per session and one child span per sub-run.
func WithTracing(collector TracingCollector) Option {
	return func(r *BenchmarkRunner) error {
		r.observer.tracingCollector = collector
		return nil
	}
}

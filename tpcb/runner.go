package tpcb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Defaults of a BenchmarkRunner.
const (
	DefaultNumClients  = 10
	DefaultTxPerClient = 100
)

const (
	logMsgSessionStarted        = "benchmark session started"
	logMsgSessionCompleted      = "benchmark session completed"
	logMsgSessionAborted        = "benchmark session aborted"
	logMsgSubRunStarted         = "sub-run started"
	logMsgSubRunCompleted       = "sub-run completed"
	logMsgSubRunAborted         = "sub-run aborted"
	logMsgWorkerConnectFailed   = "client worker could not connect"
	logMsgWorkerPrepareFailed   = "client worker could not prepare statements"
	logMsgTransactionFailed     = "transaction failed"
	logMsgRollbackFailed        = "rollback failed"
	logMsgCloseStatementsFailed = "failed to close prepared statements"
	logMsgCloseConnectionFailed = "failed to close store connection"
	logMsgCloseProviderFailed   = "failed to close session provider"
	logMsgWriteReportFailed     = "failed to write sub-run report"
	logAttrError                = "error"
	logAttrSessionID            = "session_id"
	logAttrWorkerID             = "worker_id"
	logAttrClients              = "clients"
	logAttrTxPerClient          = "tx_per_client"
	logAttrTransactions         = "transactions"
	logAttrPrepared             = "prepared"
	logAttrTotal                = "total_count"
	logAttrFailed               = "failed_count"
	logAttrThroughput           = "throughput_tps"
	logAttrDurationMS           = "duration_ms"
)

type runnerState int

const (
	stateIdle runnerState = iota
	stateRunning
	stateStopped
)

// SubRunResult is the outcome of one sub-run of a session.
type SubRunResult struct {
	Config RunConfig
	Stats  RunStatistics
	Report Report
	Err    error
}

// BenchmarkRunner orchestrates benchmark sessions against one SessionProvider.
//
// Lifecycle: Idle -> Running (Start) -> Idle (session completed or aborted) -> Stopped (Stop).
// A stopped runner cannot be started again.
type BenchmarkRunner struct {
	provider             SessionProvider
	scale                ScaleParameters
	numClients           int
	txPerClient          int
	joinTimeout          time.Duration
	tableNames           TableNames
	reportWriter         io.Writer
	jsonReports          bool
	memorySampler        MemorySampler
	memorySampleInterval time.Duration
	seed                 uint64
	observer             observer

	mu            sync.Mutex
	state         runnerState
	stopRequested bool
	results       []SubRunResult
}

// NewBenchmarkRunner creates a BenchmarkRunner with optional configuration.
func NewBenchmarkRunner(provider SessionProvider, scale ScaleParameters, options ...Option) (*BenchmarkRunner, error) {
	if provider == nil {
		return nil, ErrNilSessionProvider
	}

	if err := scale.Validate(); err != nil {
		return nil, err
	}

	r := &BenchmarkRunner{
		provider:      provider,
		scale:         scale,
		numClients:    DefaultNumClients,
		txPerClient:   DefaultTxPerClient,
		tableNames:    DefaultTableNames(),
		reportWriter:  os.Stdout,
		memorySampler: RuntimeMemorySampler{},
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	if _, err := NewStatementBuilder(provider.Dialect(), r.tableNames); err != nil {
		return nil, err
	}

	return r, nil
}

// Start runs one benchmark session and blocks until it is completed or aborted.
//
// The four sub-runs are executed in the order returned by SubRunConfigs. A report is written for
// every sub-run. An unrecoverable error aborts the remaining sub-runs and is returned joined with
// ErrUnrecoverableRun. Start fails with ErrAlreadyRunning while a session is active and with
// ErrRunnerStopped after Stop.
func (r *BenchmarkRunner) Start(ctx context.Context) error {
	if err := r.enterRunning(); err != nil {
		return err
	}

	results, err := r.runSession(ctx, uuid.NewString())

	r.leaveRunning(ctx, results)

	return err
}

// Stop releases the store session and moves the runner to its terminal state.
// It never interrupts an active session: when called while running, the release happens once the
// session ends. Calling Stop again is a no-op.
func (r *BenchmarkRunner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateStopped:
		return nil
	case stateRunning:
		r.stopRequested = true
		return nil
	default:
		r.state = stateStopped
		return r.provider.Close()
	}
}

// IsRunning reports whether a session is active.
func (r *BenchmarkRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state == stateRunning
}

// Results returns the sub-run results of the last session.
func (r *BenchmarkRunner) Results() []SubRunResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]SubRunResult, len(r.results))
	copy(results, r.results)

	return results
}

func (r *BenchmarkRunner) enterRunning() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateRunning:
		return errors.Join(ErrLifecycle, ErrAlreadyRunning)
	case stateStopped:
		return errors.Join(ErrLifecycle, ErrRunnerStopped)
	default:
		r.state = stateRunning
		return nil
	}
}

func (r *BenchmarkRunner) leaveRunning(ctx context.Context, results []SubRunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results = results

	if !r.stopRequested {
		r.state = stateIdle
		return
	}

	r.state = stateStopped
	if err := r.provider.Close(); err != nil {
		r.observer.logWarn(ctx, logMsgCloseProviderFailed, err)
	}
}

func (r *BenchmarkRunner) runSession(ctx context.Context, sessionID string) ([]SubRunResult, error) {
	ctx, span := r.observer.startSpan(ctx, spanNameSession, map[string]string{
		spanAttrSessionID:   sessionID,
		spanAttrClients:     strconv.Itoa(r.numClients),
		spanAttrTxPerClient: strconv.Itoa(r.txPerClient),
	})

	r.observer.logInfo(ctx, logMsgSessionStarted,
		logAttrSessionID, sessionID,
		logAttrClients, r.numClients,
		logAttrTxPerClient, r.txPerClient,
	)

	configs := SubRunConfigs(r.numClients, r.txPerClient)
	results := make([]SubRunResult, 0, len(configs))

	for index, config := range configs {
		result := r.runSubRun(ctx, sessionID, index, config)
		results = append(results, result)
		r.writeReport(ctx, result.Report)

		if result.Err != nil {
			r.observer.logError(ctx, logMsgSessionAborted, result.Err, logAttrSessionID, sessionID)
			r.observer.finishSpan(span, statusOf(result.Err), map[string]string{spanAttrErrorType: errorTypeOf(result.Err)})

			return results, result.Err
		}
	}

	r.observer.logInfo(ctx, logMsgSessionCompleted, logAttrSessionID, sessionID)
	r.observer.finishSpan(span, statusSuccess, nil)

	return results, nil
}

func (r *BenchmarkRunner) runSubRun(ctx context.Context, sessionID string, index int, config RunConfig) SubRunResult {
	ctx, span := r.observer.startSpan(ctx, spanNameSubRun, map[string]string{
		spanAttrSessionID: sessionID,
		labelTransactions: onOff(config.UseTransactions),
		labelPrepared:     onOff(config.UsePreparedStatements),
	})

	r.observer.logInfo(ctx, logMsgSubRunStarted,
		logAttrTransactions, config.UseTransactions,
		logAttrPrepared, config.UsePreparedStatements,
	)

	// Workers abandoned by a join timeout keep their collector, so every sub-run gets its own.
	collector := NewStatisticsCollector()

	workers, err := r.newWorkers(index, config, collector)
	if err != nil {
		return r.abortSubRun(ctx, span, sessionID, config, RunStatistics{}, errors.Join(ErrUnrecoverableRun, err))
	}

	r.sampleMemory(collector)
	collector.MarkStart(time.Now())
	stopSampling := r.startMemorySampling(collector)

	workerErrs := make([]error, len(workers))
	wg := sync.WaitGroup{}

	for i, worker := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workerErrs[i] = worker.Run(ctx)
		}()
	}

	joinErr := r.join(&wg)

	stopSampling()
	collector.MarkEnd(time.Now())
	r.sampleMemory(collector)
	stats := collector.Snapshot()

	if joinErr != nil {
		return r.abortSubRun(ctx, span, sessionID, config, stats, joinErr)
	}

	if err = noWorkerStarted(workerErrs); err != nil {
		return r.abortSubRun(ctx, span, sessionID, config, stats, err)
	}

	report := NewReport(config, stats)
	report.SessionID = sessionID

	labels := modeLabels(config)
	r.observer.recordDuration(ctx, metricSubRunDuration, stats.Elapsed(), labels)
	if report.Throughput != nil {
		r.observer.recordValue(ctx, metricSubRunThroughput, *report.Throughput, labels)
	}

	r.observer.logInfo(ctx, logMsgSubRunCompleted,
		logAttrTransactions, config.UseTransactions,
		logAttrPrepared, config.UsePreparedStatements,
		logAttrTotal, stats.TotalCount,
		logAttrFailed, stats.FailedCount,
		logAttrThroughput, report.ThroughputText(),
		logAttrDurationMS, toMilliseconds(stats.Elapsed()),
	)

	r.observer.finishSpan(span, statusSuccess, map[string]string{
		spanAttrTotal:      strconv.FormatInt(stats.TotalCount, 10),
		spanAttrFailed:     strconv.FormatInt(stats.FailedCount, 10),
		spanAttrDurationMS: formatDurationMS(stats.Elapsed()),
	})

	return SubRunResult{Config: config, Stats: stats, Report: report}
}

func (r *BenchmarkRunner) abortSubRun(
	ctx context.Context,
	span SpanContext,
	sessionID string,
	config RunConfig,
	stats RunStatistics,
	err error,
) SubRunResult {
	report := NewAbortReport(config, err)
	report.SessionID = sessionID

	r.observer.logError(ctx, logMsgSubRunAborted, err,
		logAttrTransactions, config.UseTransactions,
		logAttrPrepared, config.UsePreparedStatements,
	)

	r.observer.finishSpan(span, statusOf(err), map[string]string{spanAttrErrorType: errorTypeOf(err)})

	return SubRunResult{Config: config, Stats: stats, Report: report, Err: err}
}

func (r *BenchmarkRunner) newWorkers(
	index int,
	config RunConfig,
	collector *StatisticsCollector,
) ([]*ClientWorker, error) {
	workers := make([]*ClientWorker, 0, config.NumClients)

	for i := range config.NumClients {
		stream := uint64(index*config.NumClients + i) //nolint:gosec // both are small and positive

		worker, err := NewClientWorker(
			r.provider,
			r.scale,
			config,
			collector,
			WithWorkerID(i),
			WithWorkerRand(newRand(r.seed, stream)),
			WithWorkerTableNames(r.tableNames),
			withWorkerObserver(r.observer),
		)
		if err != nil {
			return nil, err
		}

		workers = append(workers, worker)
	}

	return workers, nil
}

// join waits for all workers, bounded by the join timeout if one is configured.
func (r *BenchmarkRunner) join(wg *sync.WaitGroup) error {
	if r.joinTimeout <= 0 {
		wg.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(r.joinTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return errors.Join(ErrUnrecoverableRun, ErrJoinTimeout, fmt.Errorf("waited %s", r.joinTimeout))
	}
}

func (r *BenchmarkRunner) sampleMemory(collector *StatisticsCollector) {
	if r.memorySampler != nil {
		collector.ObserveMemory(r.memorySampler.SampleMemory())
	}
}

// startMemorySampling samples memory periodically until the returned stop function is called.
func (r *BenchmarkRunner) startMemorySampling(collector *StatisticsCollector) func() {
	if r.memorySampler == nil || r.memorySampleInterval <= 0 {
		return func() {}
	}

	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(r.memorySampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.sampleMemory(collector)
			case <-stopChan:
				return
			}
		}
	}()

	return func() {
		close(stopChan)
		<-done
	}
}

func (r *BenchmarkRunner) writeReport(ctx context.Context, report Report) {
	var err error

	if r.jsonReports {
		var payload []byte
		if payload, err = report.JSON(); err == nil {
			_, err = fmt.Fprintf(r.reportWriter, "%s\n", payload)
		}
	} else {
		_, err = fmt.Fprintln(r.reportWriter, report.Text())
	}

	if err != nil {
		r.observer.logWarn(ctx, logMsgWriteReportFailed, err)
	}
}

// noWorkerStarted returns an unrecoverable error if every worker failed to start.
func noWorkerStarted(workerErrs []error) error {
	if len(workerErrs) == 0 {
		return nil
	}

	for _, err := range workerErrs {
		if err == nil {
			return nil
		}
	}

	return errors.Join(ErrUnrecoverableRun, ErrNoWorkerStarted, workerErrs[0])
}

func statusOf(err error) string {
	if errors.Is(err, ErrJoinTimeout) {
		return statusTimeout
	}

	return statusError
}

func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, ErrJoinTimeout):
		return errorTypeJoin
	case errors.Is(err, ErrNoWorkerStarted):
		return errorTypeNoWorker
	default:
		return statusError
	}
}

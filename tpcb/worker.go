package tpcb

import (
	"context"
	"errors"
	"math/rand/v2"
)

// ClientWorker simulates one benchmark client. It owns one store connection for its whole lifetime
// and executes its transactions strictly sequentially.
type ClientWorker struct {
	id         int
	provider   SessionProvider
	builder    StatementBuilder
	scale      ScaleParameters
	config     RunConfig
	collector  *StatisticsCollector
	executor   TransactionExecutor
	rng        *rand.Rand
	observer   observer
	tableNames TableNames
}

// WorkerOption defines a functional option for configuring a ClientWorker.
type WorkerOption func(*ClientWorker) error

// WithWorkerID sets the ID used in log messages.
func WithWorkerID(id int) WorkerOption {
	return func(w *ClientWorker) error {
		w.id = id
		return nil
	}
}

// WithWorkerRand sets the random source used to draw transaction operands.
func WithWorkerRand(rng *rand.Rand) WorkerOption {
	return func(w *ClientWorker) error {
		if rng != nil {
			w.rng = rng
		}

		return nil
	}
}

// WithWorkerTableNames sets the table names the worker's statements address.
func WithWorkerTableNames(tables TableNames) WorkerOption {
	return func(w *ClientWorker) error {
		if err := tables.Validate(); err != nil {
			return err
		}

		w.tableNames = tables

		return nil
	}
}

// WithWorkerLogger sets the logger for the worker and its transaction executor.
func WithWorkerLogger(logger Logger) WorkerOption {
	return func(w *ClientWorker) error {
		w.observer.logger = logger
		return nil
	}
}

func withWorkerObserver(obs observer) WorkerOption {
	return func(w *ClientWorker) error {
		w.observer = obs
		return nil
	}
}

// NewClientWorker creates a worker that executes config.TxPerClient transactions.
func NewClientWorker(
	provider SessionProvider,
	scale ScaleParameters,
	config RunConfig,
	collector *StatisticsCollector,
	options ...WorkerOption,
) (*ClientWorker, error) {
	if provider == nil {
		return nil, ErrNilSessionProvider
	}

	if collector == nil {
		return nil, ErrNilStatisticsCollector
	}

	if err := scale.Validate(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	w := &ClientWorker{
		provider:   provider,
		scale:      scale,
		config:     config,
		collector:  collector,
		tableNames: DefaultTableNames(),
	}

	for _, option := range options {
		if err := option(w); err != nil {
			return nil, err
		}
	}

	builder, err := NewStatementBuilder(provider.Dialect(), w.tableNames)
	if err != nil {
		return nil, err
	}

	w.builder = builder
	w.executor = newTransactionExecutor(w.observer)

	if w.rng == nil {
		w.rng = newRand(0, 0)
	}

	return w, nil
}

// Run executes the worker's transactions and blocks until all of them are done.
//
// Every iteration is counted as total, every failed transaction additionally as failed.
// Transaction errors never escape Run. If no connection can be obtained, or the statements cannot
// be prepared, all iterations are counted as failed and the error is returned.
func (w *ClientWorker) Run(ctx context.Context) error {
	conn, err := w.provider.Connect(ctx)
	if err != nil {
		w.countUnstarted()
		w.observer.logError(ctx, logMsgWorkerConnectFailed, err, logAttrWorkerID, w.id)
		w.observer.incrementCounter(ctx, metricWorkerErrors, map[string]string{labelErrorType: errorTypeConnect})

		return errors.Join(ErrConnectionFailed, err)
	}
	defer w.closeConnection(ctx, conn)

	statements, err := w.openStatements(ctx, conn)
	if err != nil {
		w.countUnstarted()
		w.observer.logError(ctx, logMsgWorkerPrepareFailed, err, logAttrWorkerID, w.id)
		w.observer.incrementCounter(ctx, metricWorkerErrors, map[string]string{labelErrorType: errorTypePrepare})

		return errors.Join(ErrPreparingStatementsFailed, err)
	}
	defer w.closeStatements(ctx, statements)

	for range w.config.TxPerClient {
		w.runOne(ctx, conn, statements)
	}

	return nil
}

func (w *ClientWorker) runOne(ctx context.Context, conn Connection, statements StatementSet) {
	w.collector.IncrementTotal()

	operands, err := DrawOperands(w.scale, w.rng)
	if err != nil {
		w.collector.IncrementFailed()
		return
	}

	if _, err = w.executor.Execute(ctx, conn, statements, operands, w.config); err != nil {
		w.collector.IncrementFailed()
		w.observer.logDebug(ctx, logMsgTransactionFailed, logAttrWorkerID, w.id, logAttrError, err.Error())
	}
}

func (w *ClientWorker) openStatements(ctx context.Context, conn Connection) (StatementSet, error) {
	if w.config.UsePreparedStatements {
		return PrepareStatements(ctx, conn, w.builder)
	}

	return LiteralStatements(conn, w.builder), nil
}

// countUnstarted counts all iterations of a worker that could not start as failed.
func (w *ClientWorker) countUnstarted() {
	for range w.config.TxPerClient {
		w.collector.IncrementTotal()
		w.collector.IncrementFailed()
	}
}

func (w *ClientWorker) closeStatements(ctx context.Context, statements StatementSet) {
	if err := statements.Close(); err != nil {
		w.observer.logWarn(ctx, logMsgCloseStatementsFailed, err, logAttrWorkerID, w.id)
	}
}

func (w *ClientWorker) closeConnection(ctx context.Context, conn Connection) {
	if err := conn.Close(); err != nil {
		w.observer.logWarn(ctx, logMsgCloseConnectionFailed, err, logAttrWorkerID, w.id)
	}
}

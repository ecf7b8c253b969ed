package tpcb

import (
	"context"
	"errors"
	"time"
)

// TransactionExecutor executes single TPC-B transactions.
type TransactionExecutor struct {
	observer observer
	now      func() time.Time
}

// NewTransactionExecutor creates a TransactionExecutor that logs to the given logger, which may be nil.
func NewTransactionExecutor(logger Logger) TransactionExecutor {
	return newTransactionExecutor(observer{logger: logger})
}

func newTransactionExecutor(obs observer) TransactionExecutor {
	return TransactionExecutor{
		observer: obs,
		now:      time.Now,
	}
}

// Execute runs one TPC-B transaction and returns the account balance read back after the update.
//
// The steps are: account update, account read-back, teller update, branch update, history insert.
// The first failing step aborts the remaining ones. With config.UseTransactions the steps run inside
// one explicit transaction that is committed at the end or rolled back on failure. A failing
// rollback is logged and swallowed. Without transactions every statement commits on its own.
//
// Errors are joined with ErrTransactionFailed. Failed transactions are not retried.
func (e TransactionExecutor) Execute(
	ctx context.Context,
	conn Connection,
	statements StatementSet,
	operands TransactionOperands,
	config RunConfig,
) (int64, error) {
	start := time.Now()
	balance, err := e.execute(ctx, conn, statements, operands, config)
	duration := time.Since(start)

	labels := modeLabels(config)
	labels[labelStatus] = statusSuccess
	if err != nil {
		labels[labelStatus] = statusError
	}

	e.observer.recordDuration(ctx, metricTransactionDuration, duration, labels)
	e.observer.incrementCounter(ctx, metricTransactionsTotal, labels)

	return balance, err
}

func (e TransactionExecutor) execute(
	ctx context.Context,
	conn Connection,
	statements StatementSet,
	operands TransactionOperands,
	config RunConfig,
) (int64, error) {
	if config.UseTransactions {
		if err := conn.Begin(ctx); err != nil {
			return 0, errors.Join(ErrTransactionFailed, err)
		}
	}

	balance, err := e.runSteps(ctx, statements, operands)

	if err == nil && config.UseTransactions {
		err = conn.Commit(ctx)
	}

	if err != nil {
		if config.UseTransactions {
			e.rollback(ctx, conn, config)
		}

		return 0, errors.Join(ErrTransactionFailed, err)
	}

	return balance, nil
}

func (e TransactionExecutor) runSteps(
	ctx context.Context,
	statements StatementSet,
	operands TransactionOperands,
) (int64, error) {
	if err := statements.Exec(ctx, AccountUpdate, operands, time.Time{}); err != nil {
		return 0, err
	}

	balance, err := statements.QueryInt(ctx, AccountSelect, operands)
	if err != nil {
		return 0, err
	}

	if err = statements.Exec(ctx, TellerUpdate, operands, time.Time{}); err != nil {
		return 0, err
	}

	if err = statements.Exec(ctx, BranchUpdate, operands, time.Time{}); err != nil {
		return 0, err
	}

	if err = statements.Exec(ctx, HistoryInsert, operands, e.clock()); err != nil {
		return 0, err
	}

	return balance, nil
}

func (e TransactionExecutor) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}

	return e.now()
}

// rollback issues a best-effort rollback.
func (e TransactionExecutor) rollback(ctx context.Context, conn Connection, config RunConfig) {
	e.observer.incrementCounter(ctx, metricRollbacksTotal, modeLabels(config))

	if err := conn.Rollback(ctx); err != nil {
		e.observer.logWarn(ctx, logMsgRollbackFailed, err)
	}
}

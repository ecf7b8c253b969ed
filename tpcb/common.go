package tpcb

import (
	"errors"
)

// Errors returned by worker and transaction execution.
var (
	ErrConnectionFailed          = errors.New("could not obtain a store connection")
	ErrPreparingStatementsFailed = errors.New("could not prepare statements")
	ErrTransactionFailed         = errors.New("transaction failed")
)

// Lifecycle errors. ErrAlreadyRunning and ErrRunnerStopped are always joined with ErrLifecycle.
var (
	ErrLifecycle      = errors.New("invalid benchmark lifecycle transition")
	ErrAlreadyRunning = errors.New("benchmark is already running")
	ErrRunnerStopped  = errors.New("benchmark runner is stopped")
)

// Errors that abort the remaining sub-runs of a session. ErrNoWorkerStarted and ErrJoinTimeout
// are always joined with ErrUnrecoverableRun.
var (
	ErrUnrecoverableRun = errors.New("unrecoverable benchmark run error")
	ErrNoWorkerStarted  = errors.New("no client worker could start")
	ErrJoinTimeout      = errors.New("client workers did not finish within the join timeout")
)

// Configuration errors.
var (
	ErrInvalidScaleParameters = errors.New("invalid scale parameters")
	ErrInvalidRunConfig       = errors.New("invalid run config")
	ErrUnknownEntityKind      = errors.New("unknown entity kind")
	ErrUnknownStatementKind   = errors.New("unknown statement kind")
	ErrUnsupportedDialect     = errors.New("unsupported sql dialect")
	ErrNilSessionProvider     = errors.New("nil session provider supplied")
	ErrNilDatabaseConnection  = errors.New("nil database connection supplied")
	ErrNilStatisticsCollector = errors.New("nil statistics collector supplied")
	ErrNilReportWriter        = errors.New("nil report writer supplied")
	ErrEmptyTableName         = errors.New("empty table name supplied")
)

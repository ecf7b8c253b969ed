package sqlengine

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/sqlengine/internal/adapters"
)

const (
	logMsgSQLExecuted  = "executed sql for: "
	logMsgSQLFailed    = "sql execution failed for: "
	logAttrError       = "error"
	logAttrQuery       = "query"
	logAttrDurationMS  = "duration_ms"
	logAttrRows        = "rows_affected"
	logActionExec      = "exec"
	logActionQuery     = "query"
	logActionPrepare   = "prepare"
	logActionBegin     = "begin"
	logActionCommit    = "commit"
	logActionRollback  = "rollback"
	driverNameSQLite   = "sqlite"
	driverNameSQLite3  = "sqlite3"
	defaultDialectName = tpcb.DialectPostgres
)

// SessionProvider implements tpcb.SessionProvider for SQL databases.
type SessionProvider struct {
	db      adapters.DBAdapter
	dialect string
	logger  tpcb.Logger
}

// NewSessionProviderFromPGXPool creates a new SessionProvider using a pgx Pool with optional configuration.
func NewSessionProviderFromPGXPool(db *pgxpool.Pool, options ...Option) (*SessionProvider, error) {
	if db == nil {
		return nil, tpcb.ErrNilDatabaseConnection
	}

	return newSessionProvider(adapters.NewPGXAdapter(db), defaultDialectName, options...)
}

// NewSessionProviderFromSQLDB creates a new SessionProvider using a sql.DB with optional configuration.
func NewSessionProviderFromSQLDB(db *sql.DB, options ...Option) (*SessionProvider, error) {
	if db == nil {
		return nil, tpcb.ErrNilDatabaseConnection
	}

	return newSessionProvider(adapters.NewSQLAdapter(db), defaultDialectName, options...)
}

// NewSessionProviderFromSQLX creates a new SessionProvider using a sqlx.DB with optional configuration.
// The dialect is derived from the sqlx driver name unless WithDialect is given.
func NewSessionProviderFromSQLX(db *sqlx.DB, options ...Option) (*SessionProvider, error) {
	if db == nil {
		return nil, tpcb.ErrNilDatabaseConnection
	}

	dialect := defaultDialectName
	switch db.DriverName() {
	case driverNameSQLite, driverNameSQLite3:
		dialect = tpcb.DialectSQLite3
	}

	return newSessionProvider(adapters.NewSQLXAdapter(db), dialect, options...)
}

func newSessionProvider(db adapters.DBAdapter, dialect string, options ...Option) (*SessionProvider, error) {
	p := &SessionProvider{
		db:      db,
		dialect: dialect,
	}

	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Connect takes a dedicated connection from the pool.
func (p *SessionProvider) Connect(ctx context.Context) (tpcb.Connection, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, errors.Join(tpcb.ErrConnectionFailed, err)
	}

	return &connection{conn: conn, logger: p.logger}, nil
}

// Dialect returns the goqu dialect name of the database.
func (p *SessionProvider) Dialect() string {
	return p.dialect
}

// Close closes the underlying pool.
func (p *SessionProvider) Close() error {
	return p.db.Close()
}

type connection struct {
	conn   adapters.DBConn
	logger tpcb.Logger
}

func (c *connection) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	start := time.Now()
	rows, err := c.conn.Exec(ctx, query, args...)
	logSQL(c.logger, logActionExec, query, time.Since(start), err, logAttrRows, rows)

	return rows, err
}

func (c *connection) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	start := time.Now()
	value, err := c.conn.QueryInt(ctx, query, args...)
	logSQL(c.logger, logActionQuery, query, time.Since(start), err)

	return value, err
}

func (c *connection) Prepare(ctx context.Context, query string) (tpcb.Statement, error) {
	start := time.Now()
	stmt, err := c.conn.Prepare(ctx, query)
	logSQL(c.logger, logActionPrepare, query, time.Since(start), err)

	if err != nil {
		return nil, err
	}

	return &statement{stmt: stmt, query: query, logger: c.logger}, nil
}

func (c *connection) Begin(ctx context.Context) error {
	start := time.Now()
	err := c.conn.Begin(ctx)
	logSQL(c.logger, logActionBegin, "", time.Since(start), err)

	return err
}

func (c *connection) Commit(ctx context.Context) error {
	start := time.Now()
	err := c.conn.Commit(ctx)
	logSQL(c.logger, logActionCommit, "", time.Since(start), err)

	return err
}

func (c *connection) Rollback(ctx context.Context) error {
	start := time.Now()
	err := c.conn.Rollback(ctx)
	logSQL(c.logger, logActionRollback, "", time.Since(start), err)

	return err
}

func (c *connection) Close() error {
	return c.conn.Close()
}

type statement struct {
	stmt   adapters.DBStmt
	query  string
	logger tpcb.Logger
}

func (s *statement) Exec(ctx context.Context, args ...any) (int64, error) {
	start := time.Now()
	rows, err := s.stmt.Exec(ctx, args...)
	logSQL(s.logger, logActionExec, s.query, time.Since(start), err, logAttrRows, rows)

	return rows, err
}

func (s *statement) QueryInt(ctx context.Context, args ...any) (int64, error) {
	start := time.Now()
	value, err := s.stmt.QueryInt(ctx, args...)
	logSQL(s.logger, logActionQuery, s.query, time.Since(start), err)

	return value, err
}

func (s *statement) Close() error {
	return s.stmt.Close()
}

// logSQL logs an executed statement at debug level if a logger is configured.
func logSQL(logger tpcb.Logger, action, query string, duration time.Duration, err error, args ...any) {
	if logger == nil {
		return
	}

	allArgs := append([]any{logAttrQuery, query, logAttrDurationMS, toMilliseconds(duration)}, args...)

	if err != nil {
		logger.Debug(logMsgSQLFailed+action, append(allArgs, logAttrError, err.Error())...)
		return
	}

	logger.Debug(logMsgSQLExecuted+action, allArgs...)
}

// toMilliseconds converts to milliseconds rounded to microseconds.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

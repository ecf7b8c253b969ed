package tpcb

import (
	"context"
)

// SessionProvider hands out store connections. The connection profile (DSN, pool) is bound when
// the provider is constructed.
type SessionProvider interface {
	// Connect returns a dedicated connection. Errors are joined with ErrConnectionFailed.
	Connect(ctx context.Context) (Connection, error)
	// Dialect returns the goqu dialect name of the store, see DialectPostgres and DialectSQLite3.
	Dialect() string
	// Close releases the shared store session.
	Close() error
}

// Connection is one store connection. It is used by a single goroutine at a time.
// Without an open transaction every statement commits on its own.
type Connection interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	QueryInt(ctx context.Context, query string, args ...any) (int64, error)
	Prepare(ctx context.Context, query string) (Statement, error)
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}

// Statement is a prepared statement bound to the Connection that prepared it.
// It participates in the connection's open transaction, if any.
type Statement interface {
	Exec(ctx context.Context, args ...any) (int64, error)
	QueryInt(ctx context.Context, args ...any) (int64, error)
	Close() error
}

package adapters

import "context"

// DBAdapter defines the interface for handing out dedicated database connections.
type DBAdapter interface {
	Conn(ctx context.Context) (DBConn, error)
	Close() error
}

// DBConn defines the interface for one dedicated database connection.
// Without an open transaction every statement commits on its own.
type DBConn interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	QueryInt(ctx context.Context, query string, args ...any) (int64, error)
	Prepare(ctx context.Context, query string) (DBStmt, error)
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}

// DBStmt defines the interface for a statement prepared on a DBConn.
type DBStmt interface {
	Exec(ctx context.Context, args ...any) (int64, error)
	QueryInt(ctx context.Context, args ...any) (int64, error)
	Close() error
}

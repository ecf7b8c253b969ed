package adapters

import (
	"context"
	"database/sql"
	"errors"
)

// SQLAdapter implements DBAdapter for sql.DB
type SQLAdapter struct {
	db *sql.DB
}

// NewSQLAdapter creates a new SQL adapter
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

func (s *SQLAdapter) Conn(ctx context.Context) (DBConn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return &sqlConn{conn: conn}, nil
}

func (s *SQLAdapter) Close() error {
	return s.db.Close()
}

type sqlConn struct {
	conn *sql.Conn
	tx   txState
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return rowsAffected(c.conn.ExecContext(ctx, query, args...))
}

func (c *sqlConn) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	return scanInt(c.conn.QueryRowContext(ctx, query, args...))
}

func (c *sqlConn) Prepare(ctx context.Context, query string) (DBStmt, error) {
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &sqlStmt{stmt: stmt}, nil
}

func (c *sqlConn) Begin(ctx context.Context) error {
	if err := c.tx.begin(); err != nil {
		return err
	}

	if _, err := c.conn.ExecContext(ctx, sqlBegin); err != nil {
		c.tx.open = false
		return err
	}

	return nil
}

func (c *sqlConn) Commit(ctx context.Context) error {
	if err := c.tx.requireOpen(); err != nil {
		return err
	}

	// a failed COMMIT may leave the transaction open, it stays available for Rollback
	if _, err := c.conn.ExecContext(ctx, sqlCommit); err != nil {
		return err
	}

	return c.tx.end()
}

func (c *sqlConn) Rollback(ctx context.Context) error {
	if err := c.tx.end(); err != nil {
		return err
	}

	_, err := c.conn.ExecContext(ctx, sqlRollback)

	return err
}

func (c *sqlConn) Close() error {
	var rollbackErr error
	if c.tx.open {
		rollbackErr = c.Rollback(context.Background())
	}

	return errors.Join(rollbackErr, c.conn.Close())
}

type sqlStmt struct {
	stmt *sql.Stmt
}

func (s *sqlStmt) Exec(ctx context.Context, args ...any) (int64, error) {
	return rowsAffected(s.stmt.ExecContext(ctx, args...))
}

func (s *sqlStmt) QueryInt(ctx context.Context, args ...any) (int64, error) {
	return scanInt(s.stmt.QueryRowContext(ctx, args...))
}

func (s *sqlStmt) Close() error {
	return s.stmt.Close()
}

package adapters

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

// SQLXAdapter implements DBAdapter for sqlx.DB.
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter creates a new SQLX adapter.
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

// Conn takes a dedicated connection from the sqlx.DB pool.
func (s *SQLXAdapter) Conn(ctx context.Context) (DBConn, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}

	return &sqlxConn{conn: conn}, nil
}

// Close closes the sqlx.DB.
func (s *SQLXAdapter) Close() error {
	return s.db.Close()
}

type sqlxConn struct {
	conn *sqlx.Conn
	tx   txState
}

func (c *sqlxConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return rowsAffected(c.conn.ExecContext(ctx, query, args...))
}

func (c *sqlxConn) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var value int64
	if err := c.conn.GetContext(ctx, &value, query, args...); err != nil {
		return 0, err
	}

	return value, nil
}

func (c *sqlxConn) Prepare(ctx context.Context, query string) (DBStmt, error) {
	stmt, err := c.conn.PreparexContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return &sqlxStmt{stmt: stmt}, nil
}

func (c *sqlxConn) Begin(ctx context.Context) error {
	if err := c.tx.begin(); err != nil {
		return err
	}

	if _, err := c.conn.ExecContext(ctx, sqlBegin); err != nil {
		c.tx.open = false
		return err
	}

	return nil
}

func (c *sqlxConn) Commit(ctx context.Context) error {
	if err := c.tx.requireOpen(); err != nil {
		return err
	}

	// a failed COMMIT may leave the transaction open, it stays available for Rollback
	if _, err := c.conn.ExecContext(ctx, sqlCommit); err != nil {
		return err
	}

	return c.tx.end()
}

func (c *sqlxConn) Rollback(ctx context.Context) error {
	if err := c.tx.end(); err != nil {
		return err
	}

	_, err := c.conn.ExecContext(ctx, sqlRollback)

	return err
}

func (c *sqlxConn) Close() error {
	var rollbackErr error
	if c.tx.open {
		rollbackErr = c.Rollback(context.Background())
	}

	return errors.Join(rollbackErr, c.conn.Close())
}

type sqlxStmt struct {
	stmt *sqlx.Stmt
}

func (s *sqlxStmt) Exec(ctx context.Context, args ...any) (int64, error) {
	return rowsAffected(s.stmt.ExecContext(ctx, args...))
}

func (s *sqlxStmt) QueryInt(ctx context.Context, args ...any) (int64, error) {
	var value int64
	if err := s.stmt.GetContext(ctx, &value, args...); err != nil {
		return 0, err
	}

	return value, nil
}

func (s *sqlxStmt) Close() error {
	return s.stmt.Close()
}

package adapters

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const preparedStatementPrefix = "tpcb_"

// PGXAdapter implements DBAdapter for pgxpool.Pool.
type PGXAdapter struct {
	pool *pgxpool.Pool
}

// NewPGXAdapter creates a new PGX adapter.
func NewPGXAdapter(pool *pgxpool.Pool) *PGXAdapter {
	return &PGXAdapter{pool: pool}
}

// Conn acquires a dedicated connection from the pool.
func (p *PGXAdapter) Conn(ctx context.Context) (DBConn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return &pgxConn{conn: conn}, nil
}

// Close closes the pool.
func (p *PGXAdapter) Close() error {
	p.pool.Close()
	return nil
}

// pgxQuerier is implemented by both pgxpool.Conn and pgx.Tx.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxConn struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

func (c *pgxConn) querier() pgxQuerier {
	if c.tx != nil {
		return c.tx
	}

	return c.conn
}

// Exec executes a statement. Statements without arguments are sent with the simple protocol,
// so that literal SQL never ends up in the statement cache.
func (c *pgxConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.querier().Exec(ctx, query, withSimpleProtocol(args)...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (c *pgxConn) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var value int64
	if err := c.querier().QueryRow(ctx, query, withSimpleProtocol(args)...).Scan(&value); err != nil {
		return 0, err
	}

	return value, nil
}

// Prepare prepares a named statement on the connection.
func (c *pgxConn) Prepare(ctx context.Context, query string) (DBStmt, error) {
	name := preparedStatementPrefix + uuid.NewString()

	if _, err := c.conn.Conn().Prepare(ctx, name, query); err != nil {
		return nil, err
	}

	return &pgxStmt{conn: c, name: name}, nil
}

func (c *pgxConn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return ErrTransactionAlreadyOpen
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return err
	}

	c.tx = tx

	return nil
}

func (c *pgxConn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return ErrNoOpenTransaction
	}

	tx := c.tx
	c.tx = nil

	return tx.Commit(ctx)
}

func (c *pgxConn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return ErrNoOpenTransaction
	}

	tx := c.tx
	c.tx = nil

	return tx.Rollback(ctx)
}

// Close rolls back an open transaction and returns the connection to the pool.
func (c *pgxConn) Close() error {
	var err error
	if c.tx != nil {
		err = c.Rollback(context.Background())
	}

	c.conn.Release()

	return err
}

type pgxStmt struct {
	conn *pgxConn
	name string
}

// Exec executes the prepared statement by its name, inside the connection's transaction if one is open.
func (s *pgxStmt) Exec(ctx context.Context, args ...any) (int64, error) {
	tag, err := s.conn.querier().Exec(ctx, s.name, args...)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}

func (s *pgxStmt) QueryInt(ctx context.Context, args ...any) (int64, error) {
	var value int64
	if err := s.conn.querier().QueryRow(ctx, s.name, args...).Scan(&value); err != nil {
		return 0, err
	}

	return value, nil
}

// Close deallocates the prepared statement.
func (s *pgxStmt) Close() error {
	return s.conn.conn.Conn().Deallocate(context.Background(), s.name)
}

func withSimpleProtocol(args []any) []any {
	if len(args) > 0 {
		return args
	}

	return []any{pgx.QueryExecModeSimpleProtocol}
}

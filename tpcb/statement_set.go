package tpcb

import (
	"context"
	"errors"
	"time"
)

// StatementSet executes the five TPC-B statements on one connection.
type StatementSet interface {
	Exec(ctx context.Context, kind StatementKind, operands TransactionOperands, mtime time.Time) error
	QueryInt(ctx context.Context, kind StatementKind, operands TransactionOperands) (int64, error)
	Close() error
}

// LiteralStatements returns a StatementSet that renders a fresh SQL string with interpolated values
// for every execution.
func LiteralStatements(conn Connection, builder StatementBuilder) StatementSet {
	return &literalStatements{conn: conn, builder: builder}
}

type literalStatements struct {
	conn    Connection
	builder StatementBuilder
}

func (s *literalStatements) Exec(ctx context.Context, kind StatementKind, operands TransactionOperands, mtime time.Time) error {
	sqlQuery, err := s.builder.LiteralSQL(kind, operands, mtime)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx, sqlQuery)

	return err
}

func (s *literalStatements) QueryInt(ctx context.Context, kind StatementKind, operands TransactionOperands) (int64, error) {
	sqlQuery, err := s.builder.LiteralSQL(kind, operands, time.Time{})
	if err != nil {
		return 0, err
	}

	return s.conn.QueryInt(ctx, sqlQuery)
}

func (s *literalStatements) Close() error {
	return nil
}

// PrepareStatements prepares all five statements on conn. Statements prepared before a failure
// are closed again.
func PrepareStatements(ctx context.Context, conn Connection, builder StatementBuilder) (StatementSet, error) {
	set := &preparedStatements{
		builder:    builder,
		statements: make(map[StatementKind]Statement, len(StatementKinds)),
	}

	for _, kind := range StatementKinds {
		sqlQuery, err := builder.PreparedSQL(kind)
		if err != nil {
			return nil, errors.Join(err, set.Close())
		}

		statement, err := conn.Prepare(ctx, sqlQuery)
		if err != nil {
			return nil, errors.Join(err, set.Close())
		}

		set.statements[kind] = statement
	}

	return set, nil
}

type preparedStatements struct {
	builder    StatementBuilder
	statements map[StatementKind]Statement
}

func (s *preparedStatements) Exec(ctx context.Context, kind StatementKind, operands TransactionOperands, mtime time.Time) error {
	args, err := s.builder.Args(kind, operands, mtime)
	if err != nil {
		return err
	}

	_, err = s.statements[kind].Exec(ctx, args...)

	return err
}

func (s *preparedStatements) QueryInt(ctx context.Context, kind StatementKind, operands TransactionOperands) (int64, error) {
	args, err := s.builder.Args(kind, operands, time.Time{})
	if err != nil {
		return 0, err
	}

	return s.statements[kind].QueryInt(ctx, args...)
}

// Close closes every prepared statement and joins their errors.
func (s *preparedStatements) Close() error {
	var errs []error
	for _, kind := range StatementKinds {
		if statement, ok := s.statements[kind]; ok {
			errs = append(errs, statement.Close())
		}
	}

	clear(s.statements)

	return errors.Join(errs...)
}

package adapters

import (
	"database/sql"
	"errors"
)

const (
	sqlBegin    = "BEGIN"
	sqlCommit   = "COMMIT"
	sqlRollback = "ROLLBACK"
)

// Errors returned by the connection transaction handling.
var (
	ErrTransactionAlreadyOpen = errors.New("transaction already open on this connection")
	ErrNoOpenTransaction      = errors.New("no open transaction on this connection")
)

// rowsAffected unwraps a sql.Result into the number of affected rows.
func rowsAffected(result sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// scanInt reads a single integer from a row.
func scanInt(row *sql.Row) (int64, error) {
	var value int64
	if err := row.Scan(&value); err != nil {
		return 0, err
	}

	return value, nil
}

// txState tracks the explicit transaction of a database/sql connection.
// Transactions are opened with plain BEGIN/COMMIT/ROLLBACK statements, so that statements
// prepared on the connection take part in them without being prepared again.
type txState struct {
	open bool
}

func (s *txState) begin() error {
	if s.open {
		return ErrTransactionAlreadyOpen
	}

	s.open = true

	return nil
}

func (s *txState) requireOpen() error {
	if !s.open {
		return ErrNoOpenTransaction
	}

	return nil
}

func (s *txState) end() error {
	if !s.open {
		return ErrNoOpenTransaction
	}

	s.open = false

	return nil
}

package tpcb

import (
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
)

// Supported goqu dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite3  = "sqlite3"
)

const (
	colAccountID      = "aid"
	colBranchID       = "bid"
	colTellerID       = "tid"
	colAccountBalance = "abalance"
	colTellerBalance  = "tbalance"
	colBranchBalance  = "bbalance"
	colDelta          = "delta"
	colMTime          = "mtime"
	exprIncrement     = "? + ?"
)

// StatementKind identifies one of the five statements of a TPC-B transaction.
type StatementKind int

// The statements of a TPC-B transaction in execution order.
const (
	AccountUpdate StatementKind = iota
	AccountSelect
	TellerUpdate
	BranchUpdate
	HistoryInsert
)

// StatementKinds lists all statement kinds in execution order.
var StatementKinds = []StatementKind{AccountUpdate, AccountSelect, TellerUpdate, BranchUpdate, HistoryInsert}

func (k StatementKind) String() string {
	switch k {
	case AccountUpdate:
		return "account_update"
	case AccountSelect:
		return "account_select"
	case TellerUpdate:
		return "teller_update"
	case BranchUpdate:
		return "branch_update"
	case HistoryInsert:
		return "history_insert"
	default:
		return fmt.Sprintf("statement_kind(%d)", int(k))
	}
}

// StatementBuilder renders the TPC-B statements for one SQL dialect.
// Prepared SQL uses dialect placeholders, literal SQL has all values interpolated.
type StatementBuilder struct {
	dialect     goqu.DialectWrapper
	dialectName string
	tables      TableNames
}

// NewStatementBuilder creates a StatementBuilder for the given goqu dialect and table names.
func NewStatementBuilder(dialect string, tables TableNames) (StatementBuilder, error) {
	switch dialect {
	case DialectPostgres, DialectSQLite3:
	default:
		return StatementBuilder{}, errors.Join(ErrUnsupportedDialect, fmt.Errorf("got %q", dialect))
	}

	if err := tables.Validate(); err != nil {
		return StatementBuilder{}, err
	}

	return StatementBuilder{
		dialect:     goqu.Dialect(dialect),
		dialectName: dialect,
		tables:      tables,
	}, nil
}

// Dialect returns the goqu dialect name.
func (b StatementBuilder) Dialect() string {
	return b.dialectName
}

// PreparedSQL renders the statement with placeholders for its arguments.
// The placeholders are bound in the order returned by Args.
func (b StatementBuilder) PreparedSQL(kind StatementKind) (string, error) {
	sqlQuery, _, err := b.build(kind, TransactionOperands{}, time.Time{}, true)

	return sqlQuery, err
}

// LiteralSQL renders the statement with all values interpolated.
func (b StatementBuilder) LiteralSQL(kind StatementKind, operands TransactionOperands, mtime time.Time) (string, error) {
	sqlQuery, _, err := b.build(kind, operands, mtime, false)

	return sqlQuery, err
}

// Args returns the arguments to bind to the prepared form of the statement.
func (b StatementBuilder) Args(kind StatementKind, operands TransactionOperands, mtime time.Time) ([]any, error) {
	switch kind {
	case AccountUpdate:
		return []any{operands.Delta, operands.AccountID}, nil
	case AccountSelect:
		return []any{operands.AccountID}, nil
	case TellerUpdate:
		return []any{operands.Delta, operands.TellerID}, nil
	case BranchUpdate:
		return []any{operands.Delta, operands.BranchID}, nil
	case HistoryInsert:
		return []any{operands.TellerID, operands.BranchID, operands.AccountID, operands.Delta, mtime.UTC()}, nil
	default:
		return nil, errors.Join(ErrUnknownStatementKind, fmt.Errorf("got %s", kind))
	}
}

func (b StatementBuilder) build(
	kind StatementKind,
	operands TransactionOperands,
	mtime time.Time,
	prepared bool,
) (string, []any, error) {
	switch kind {
	case AccountUpdate:
		return b.increment(b.tables.Accounts, colAccountBalance, colAccountID, operands.AccountID, operands.Delta, prepared)

	case AccountSelect:
		return b.dialect.
			From(b.tables.Accounts).
			Select(colAccountBalance).
			Where(goqu.C(colAccountID).Eq(operands.AccountID)).
			Prepared(prepared).
			ToSQL()

	case TellerUpdate:
		return b.increment(b.tables.Tellers, colTellerBalance, colTellerID, operands.TellerID, operands.Delta, prepared)

	case BranchUpdate:
		return b.increment(b.tables.Branches, colBranchBalance, colBranchID, operands.BranchID, operands.Delta, prepared)

	case HistoryInsert:
		return b.dialect.
			Insert(b.tables.History).
			Cols(colTellerID, colBranchID, colAccountID, colDelta, colMTime).
			Vals(goqu.Vals{operands.TellerID, operands.BranchID, operands.AccountID, operands.Delta, mtime}).
			Prepared(prepared).
			ToSQL()

	default:
		return "", nil, errors.Join(ErrUnknownStatementKind, fmt.Errorf("got %s", kind))
	}
}

// increment renders "UPDATE table SET balance = balance + delta WHERE id = ?".
func (b StatementBuilder) increment(
	table, balanceColumn, idColumn string,
	id, delta int64,
	prepared bool,
) (string, []any, error) {
	return b.dialect.
		Update(table).
		Set(goqu.Record{balanceColumn: goqu.L(exprIncrement, goqu.C(balanceColumn), delta)}).
		Where(goqu.C(idColumn).Eq(id)).
		Prepared(prepared).
		ToSQL()
}

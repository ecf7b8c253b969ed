package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
)

// DefaultBatchSize is the default number of rows per insert statement.
const DefaultBatchSize = 1000

const (
	logMsgTablesDropped      = "tpcb tables dropped"
	logMsgTablesCreated      = "tpcb tables created"
	logMsgTablePopulated     = "tpcb table populated"
	logMsgSchemaProvisioned  = "tpcb schema provisioned"
	logMsgCloseConnFailed    = "failed to close provisioning connection"
	logAttrTable             = "table"
	logAttrRows              = "rows"
	logAttrDurationMS        = "duration_ms"
	logAttrError             = "error"
	colAccountID             = "aid"
	colBranchID              = "bid"
	colTellerID              = "tid"
	colAccountBalance        = "abalance"
	colTellerBalance         = "tbalance"
	colBranchBalance         = "bbalance"
	colDelta                 = "delta"
	exprSumAsBigint          = "COALESCE(CAST(SUM(?) AS BIGINT), 0)"
	ddlDropTable             = "DROP TABLE IF EXISTS %s"
	ddlCreateBranches        = "CREATE TABLE %s (bid BIGINT NOT NULL PRIMARY KEY, bbalance BIGINT NOT NULL, filler CHAR(88))"
	ddlCreateTellers         = "CREATE TABLE %s (tid BIGINT NOT NULL PRIMARY KEY, bid BIGINT NOT NULL, tbalance BIGINT NOT NULL, filler CHAR(84))"
	ddlCreateAccounts        = "CREATE TABLE %s (aid BIGINT NOT NULL PRIMARY KEY, bid BIGINT NOT NULL, abalance BIGINT NOT NULL, filler CHAR(84))"
	ddlCreateHistory         = "CREATE TABLE %s (tid BIGINT NOT NULL, bid BIGINT NOT NULL, aid BIGINT NOT NULL, delta BIGINT NOT NULL, mtime %s NOT NULL, filler CHAR(22))"
	typeTimestampPostgres    = "TIMESTAMP WITH TIME ZONE"
	typeTimestampSQLite      = "TIMESTAMP"
	errMsgCouldNotBuildQuery = "could not build query for table %s"
)

// ErrProvisioningFailed is joined to every error returned by a Provisioner.
var ErrProvisioningFailed = errors.New("provisioning the tpcb schema failed")

// ErrInvalidBatchSize is returned by WithBatchSize for sizes smaller than one.
var ErrInvalidBatchSize = errors.New("batch size must be positive")

// Balances are the sums of all balances and history deltas.
type Balances struct {
	Accounts    int64
	Tellers     int64
	Branches    int64
	History     int64
	HistoryRows int64
}

// Consistent reports whether all four sums are equal.
func (b Balances) Consistent() bool {
	return b.Accounts == b.Tellers && b.Tellers == b.Branches && b.Branches == b.History
}

// Option defines a functional option for configuring a Provisioner.
type Option func(*Provisioner) error

// WithTableNames sets the names of the tables to provision.
func WithTableNames(tables tpcb.TableNames) Option {
	return func(p *Provisioner) error {
		if err := tables.Validate(); err != nil {
			return err
		}

		p.tables = tables

		return nil
	}
}

// WithBatchSize sets the number of rows per insert statement.
func WithBatchSize(batchSize int) Option {
	return func(p *Provisioner) error {
		if batchSize <= 0 {
			return ErrInvalidBatchSize
		}

		p.batchSize = batchSize

		return nil
	}
}

// WithLogger sets the logger for the Provisioner.
// Info level: created tables, row counts, durations
// Warn level: cleanup failures.
func WithLogger(logger tpcb.Logger) Option {
	return func(p *Provisioner) error {
		p.logger = logger
		return nil
	}
}

// Provisioner sets up the TPC-B tables through a tpcb.SessionProvider.
type Provisioner struct {
	provider  tpcb.SessionProvider
	scale     tpcb.ScaleParameters
	tables    tpcb.TableNames
	batchSize int
	logger    tpcb.Logger
	dialect   goqu.DialectWrapper
}

// NewProvisioner creates a Provisioner with optional configuration.
func NewProvisioner(provider tpcb.SessionProvider, scale tpcb.ScaleParameters, options ...Option) (*Provisioner, error) {
	if provider == nil {
		return nil, tpcb.ErrNilSessionProvider
	}

	if err := scale.Validate(); err != nil {
		return nil, err
	}

	// validates the dialect
	if _, err := tpcb.NewStatementBuilder(provider.Dialect(), tpcb.DefaultTableNames()); err != nil {
		return nil, err
	}

	p := &Provisioner{
		provider:  provider,
		scale:     scale,
		tables:    tpcb.DefaultTableNames(),
		batchSize: DefaultBatchSize,
		dialect:   goqu.Dialect(provider.Dialect()),
	}

	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Provision drops the tables if they exist, creates them, and populates branches, tellers, and accounts.
func (p *Provisioner) Provision(ctx context.Context) error {
	start := time.Now()

	err := p.withConnection(ctx, func(conn tpcb.Connection) error {
		if err := p.dropTables(ctx, conn); err != nil {
			return err
		}

		if err := p.createTables(ctx, conn); err != nil {
			return err
		}

		return p.populate(ctx, conn)
	})
	if err != nil {
		return err
	}

	p.logInfo(logMsgSchemaProvisioned, logAttrDurationMS, time.Since(start).Milliseconds())

	return nil
}

// Drop drops the tables if they exist.
func (p *Provisioner) Drop(ctx context.Context) error {
	return p.withConnection(ctx, func(conn tpcb.Connection) error {
		return p.dropTables(ctx, conn)
	})
}

// Verify returns the sums of all balances and history deltas.
func (p *Provisioner) Verify(ctx context.Context) (Balances, error) {
	var balances Balances

	err := p.withConnection(ctx, func(conn tpcb.Connection) error {
		sums := []struct {
			table  string
			column string
			target *int64
		}{
			{p.tables.Accounts, colAccountBalance, &balances.Accounts},
			{p.tables.Tellers, colTellerBalance, &balances.Tellers},
			{p.tables.Branches, colBranchBalance, &balances.Branches},
			{p.tables.History, colDelta, &balances.History},
		}

		for _, sum := range sums {
			sqlQuery, _, err := p.dialect.
				From(sum.table).
				Select(goqu.L(exprSumAsBigint, goqu.C(sum.column))).
				ToSQL()
			if err != nil {
				return errors.Join(fmt.Errorf(errMsgCouldNotBuildQuery, sum.table), err)
			}

			if *sum.target, err = conn.QueryInt(ctx, sqlQuery); err != nil {
				return err
			}
		}

		sqlQuery, _, err := p.dialect.From(p.tables.History).Select(goqu.COUNT(goqu.Star())).ToSQL()
		if err != nil {
			return errors.Join(fmt.Errorf(errMsgCouldNotBuildQuery, p.tables.History), err)
		}

		balances.HistoryRows, err = conn.QueryInt(ctx, sqlQuery)

		return err
	})

	return balances, err
}

func (p *Provisioner) withConnection(ctx context.Context, fn func(conn tpcb.Connection) error) error {
	conn, err := p.provider.Connect(ctx)
	if err != nil {
		return errors.Join(ErrProvisioningFailed, err)
	}

	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			p.logWarn(logMsgCloseConnFailed, logAttrError, closeErr.Error())
		}
	}()

	if err = fn(conn); err != nil {
		return errors.Join(ErrProvisioningFailed, err)
	}

	return nil
}

func (p *Provisioner) dropTables(ctx context.Context, conn tpcb.Connection) error {
	for _, table := range []string{p.tables.History, p.tables.Accounts, p.tables.Tellers, p.tables.Branches} {
		if _, err := conn.Exec(ctx, fmt.Sprintf(ddlDropTable, table)); err != nil {
			return err
		}
	}

	p.logInfo(logMsgTablesDropped)

	return nil
}

func (p *Provisioner) createTables(ctx context.Context, conn tpcb.Connection) error {
	timestampType := typeTimestampPostgres
	if p.provider.Dialect() == tpcb.DialectSQLite3 {
		timestampType = typeTimestampSQLite
	}

	statements := []string{
		fmt.Sprintf(ddlCreateBranches, p.tables.Branches),
		fmt.Sprintf(ddlCreateTellers, p.tables.Tellers),
		fmt.Sprintf(ddlCreateAccounts, p.tables.Accounts),
		fmt.Sprintf(ddlCreateHistory, p.tables.History, timestampType),
	}

	for _, statement := range statements {
		if _, err := conn.Exec(ctx, statement); err != nil {
			return err
		}
	}

	p.logInfo(logMsgTablesCreated)

	return nil
}

// populate inserts all branches, tellers, and accounts inside one transaction.
func (p *Provisioner) populate(ctx context.Context, conn tpcb.Connection) error {
	branches, err := p.scale.IDRange(tpcb.Branch)
	if err != nil {
		return err
	}

	tellers, err := p.scale.IDRange(tpcb.Teller)
	if err != nil {
		return err
	}

	accounts, err := p.scale.IDRange(tpcb.Account)
	if err != nil {
		return err
	}

	if err = conn.Begin(ctx); err != nil {
		return err
	}

	err = p.insertRows(ctx, conn, p.tables.Branches, []any{colBranchID, colBranchBalance}, branches, func(id, _ int64) []any {
		return []any{id, 0}
	})

	if err == nil {
		err = p.insertRows(ctx, conn, p.tables.Tellers, []any{colTellerID, colBranchID, colTellerBalance}, tellers, func(id, index int64) []any {
			return []any{id, owningBranch(branches, index, tellers.Size()), 0}
		})
	}

	if err == nil {
		err = p.insertRows(ctx, conn, p.tables.Accounts, []any{colAccountID, colBranchID, colAccountBalance}, accounts, func(id, index int64) []any {
			return []any{id, owningBranch(branches, index, accounts.Size()), 0}
		})
	}

	if err != nil {
		return errors.Join(err, conn.Rollback(ctx))
	}

	return conn.Commit(ctx)
}

// insertRows inserts one row per ID of idRange in batches.
func (p *Provisioner) insertRows(
	ctx context.Context,
	conn tpcb.Connection,
	table string,
	columns []any,
	idRange tpcb.IDRange,
	row func(id, index int64) []any,
) error {
	start := time.Now()
	batch := make([][]any, 0, p.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		sqlQuery, _, err := p.dialect.Insert(table).Cols(columns...).Vals(batch...).ToSQL()
		if err != nil {
			return errors.Join(fmt.Errorf(errMsgCouldNotBuildQuery, table), err)
		}

		if _, err = conn.Exec(ctx, sqlQuery); err != nil {
			return err
		}

		batch = batch[:0]

		return nil
	}

	for id := idRange.Min; id <= idRange.Max; id++ {
		batch = append(batch, row(id, id-idRange.Min))

		if len(batch) == p.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	p.logInfo(logMsgTablePopulated, logAttrTable, table, logAttrRows, idRange.Size(), logAttrDurationMS, time.Since(start).Milliseconds())

	return nil
}

// owningBranch spreads count rows evenly across the branches.
func owningBranch(branches tpcb.IDRange, index, count int64) int64 {
	return branches.Min + index*branches.Size()/count
}

func (p *Provisioner) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Provisioner) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

package sqlengine_test

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/tpcb-benchmark-go/config"
	"github.com/AntonStoeckl/tpcb-benchmark-go/testutil/helper"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/schema"
	. "github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/sqlengine"
)

func givenSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := config.SQLiteDB(context.Background(), filepath.Join(t.TempDir(), "tpcb.db"), 2)
	require.NoError(t, err, "opening the sqlite database failed")

	return db
}

func testScale(t *testing.T) tpcb.ScaleParameters {
	t.Helper()

	scale, err := tpcb.NewScaleParameters(1, 2, 4, 40)
	require.NoError(t, err)

	return scale
}

func givenProvisioned(t *testing.T, provider tpcb.SessionProvider, scale tpcb.ScaleParameters) *schema.Provisioner {
	t.Helper()

	provisioner, err := schema.NewProvisioner(provider, scale)
	require.NoError(t, err)
	require.NoError(t, provisioner.Provision(context.Background()), "provisioning failed")

	return provisioner
}

func runSession(t *testing.T, provider tpcb.SessionProvider, scale tpcb.ScaleParameters, numClients int) []tpcb.SubRunResult {
	t.Helper()

	runner, err := tpcb.NewBenchmarkRunner(provider, scale,
		tpcb.WithClients(numClients),
		tpcb.WithTransactionsPerClient(10),
		tpcb.WithReportWriter(&bytes.Buffer{}),
		tpcb.WithSeed(7),
	)
	require.NoError(t, err)
	require.NoError(t, runner.Start(context.Background()))

	return runner.Results()
}

func assertSessionSucceeded(t *testing.T, results []tpcb.SubRunResult, numClients int) {
	t.Helper()

	require.Len(t, results, 4)
	for _, result := range results {
		assert.Equal(t, int64(numClients*10), result.Stats.TotalCount, result.Config.Label())
		assert.Equal(t, int64(0), result.Stats.FailedCount, result.Config.Label())
	}
}

func Test_SessionProvider_SQLDB_SQLite_RunsASession(t *testing.T) {
	// arrange
	ctx := context.Background()
	provider, err := NewSessionProviderFromSQLDB(givenSQLiteDB(t), WithDialect(tpcb.DialectSQLite3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	scale := testScale(t)
	provisioner := givenProvisioned(t, provider, scale)

	// act
	results := runSession(t, provider, scale, 1)

	// assert
	assertSessionSucceeded(t, results, 1)

	balances, err := provisioner.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, balances.Consistent(), "balances: %+v", balances)
	assert.Equal(t, int64(40), balances.HistoryRows)
}

func Test_SessionProvider_SQLX_SQLite_RunsASession(t *testing.T) {
	// arrange
	ctx := context.Background()
	db := sqlx.NewDb(givenSQLiteDB(t), config.SQLiteDriverName)
	provider, err := NewSessionProviderFromSQLX(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	scale := testScale(t)
	provisioner := givenProvisioned(t, provider, scale)

	// act
	results := runSession(t, provider, scale, 1)

	// assert
	assert.Equal(t, tpcb.DialectSQLite3, provider.Dialect(), "dialect derived from the driver name")
	assertSessionSucceeded(t, results, 1)

	balances, err := provisioner.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, balances.Consistent(), "balances: %+v", balances)
}

func Test_Connection_PreparedStatementsTakePartInTheTransaction(t *testing.T) {
	// arrange
	ctx := context.Background()
	provider, err := NewSessionProviderFromSQLDB(givenSQLiteDB(t), WithDialect(tpcb.DialectSQLite3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	scale := testScale(t)
	givenProvisioned(t, provider, scale)

	builder, err := tpcb.NewStatementBuilder(provider.Dialect(), tpcb.DefaultTableNames())
	require.NoError(t, err)

	conn, err := provider.Connect(ctx)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	statements, err := tpcb.PrepareStatements(ctx, conn, builder)
	require.NoError(t, err)
	defer func() { _ = statements.Close() }()

	operands := tpcb.TransactionOperands{AccountID: 3, BranchID: 40, TellerID: 43, Delta: 17}

	// act
	require.NoError(t, conn.Begin(ctx))
	require.NoError(t, statements.Exec(ctx, tpcb.AccountUpdate, operands, time.Time{}))
	balanceInTx, err := statements.QueryInt(ctx, tpcb.AccountSelect, operands)
	require.NoError(t, err)
	require.NoError(t, conn.Rollback(ctx))

	balanceAfterRollback, err := statements.QueryInt(ctx, tpcb.AccountSelect, operands)
	require.NoError(t, err)

	// assert
	assert.Equal(t, int64(17), balanceInTx)
	assert.Equal(t, int64(0), balanceAfterRollback)
}

func Test_Connection_LiteralStatementsCommitWithoutTransaction(t *testing.T) {
	// arrange
	ctx := context.Background()
	provider, err := NewSessionProviderFromSQLDB(givenSQLiteDB(t), WithDialect(tpcb.DialectSQLite3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	scale := testScale(t)
	provisioner := givenProvisioned(t, provider, scale)

	builder, err := tpcb.NewStatementBuilder(provider.Dialect(), tpcb.DefaultTableNames())
	require.NoError(t, err)

	conn, err := provider.Connect(ctx)
	require.NoError(t, err)

	operands := tpcb.TransactionOperands{AccountID: 5, BranchID: 41, TellerID: 44, Delta: 9}
	executor := tpcb.NewTransactionExecutor(nil)

	// act
	balance, err := executor.Execute(ctx, conn, tpcb.LiteralStatements(conn, builder), operands, tpcb.RunConfig{NumClients: 1, TxPerClient: 1})
	require.NoError(t, conn.Close())

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(9), balance)

	balances, err := provisioner.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.Balances{Accounts: 9, Tellers: 9, Branches: 9, History: 9, HistoryRows: 1}, balances)
}

func Test_Connection_CommitWithoutBegin_Fails(t *testing.T) {
	// arrange
	ctx := context.Background()
	provider, err := NewSessionProviderFromSQLDB(givenSQLiteDB(t), WithDialect(tpcb.DialectSQLite3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	conn, err := provider.Connect(ctx)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	// act
	commitErr := conn.Commit(ctx)
	rollbackErr := conn.Rollback(ctx)

	// assert
	assert.Error(t, commitErr)
	assert.Error(t, rollbackErr)
}

func Test_Connection_FailedCommit_CanBeRolledBackAndReused(t *testing.T) {
	newProviders := map[string]func(db *sql.DB) (*SessionProvider, error){
		"database/sql": func(db *sql.DB) (*SessionProvider, error) {
			return NewSessionProviderFromSQLDB(db, WithDialect(tpcb.DialectSQLite3))
		},
		"sqlx": func(db *sql.DB) (*SessionProvider, error) {
			return NewSessionProviderFromSQLX(sqlx.NewDb(db, config.SQLiteDriverName))
		},
	}

	for name, newProvider := range newProviders {
		t.Run(name, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			provider, err := newProvider(givenSQLiteDB(t))
			require.NoError(t, err)
			t.Cleanup(func() { _ = provider.Close() })

			conn, err := provider.Connect(ctx)
			require.NoError(t, err)
			defer func() { _ = conn.Close() }()

			// SQLite keeps the transaction open when COMMIT fails on a deferred foreign key
			for _, ddl := range []string{
				"PRAGMA foreign_keys = ON",
				"CREATE TABLE parent (id INTEGER PRIMARY KEY)",
				"CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER REFERENCES parent(id) DEFERRABLE INITIALLY DEFERRED)",
			} {
				_, err = conn.Exec(ctx, ddl)
				require.NoError(t, err, ddl)
			}

			require.NoError(t, conn.Begin(ctx))
			_, err = conn.Exec(ctx, "INSERT INTO child (id, parent_id) VALUES (1, 99)")
			require.NoError(t, err)

			// act
			commitErr := conn.Commit(ctx)
			rollbackErr := conn.Rollback(ctx)
			beginErr := conn.Begin(ctx)
			_, insertErr := conn.Exec(ctx, "INSERT INTO child (id, parent_id) VALUES (2, NULL)")
			secondCommitErr := conn.Commit(ctx)

			// assert
			assert.Error(t, commitErr, "deferred foreign key violation")
			assert.NoError(t, rollbackErr, "rollback after the failed commit")
			assert.NoError(t, beginErr, "the connection accepts a new transaction")
			assert.NoError(t, insertErr)
			assert.NoError(t, secondCommitErr)

			count, err := conn.QueryInt(ctx, "SELECT COUNT(*) FROM child")
			require.NoError(t, err)
			assert.Equal(t, int64(1), count, "only the second transaction is stored")
		})
	}
}

func Test_SessionProvider_WithLogger_LogsStatements(t *testing.T) {
	// arrange
	ctx := context.Background()
	logHandler := helper.NewLogHandlerSpy(false)
	provider, err := NewSessionProviderFromSQLDB(
		givenSQLiteDB(t),
		WithDialect(tpcb.DialectSQLite3),
		WithLogger(slog.New(logHandler)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	conn, err := provider.Connect(ctx)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	// act
	_, execErr := conn.Exec(ctx, "CREATE TABLE scratch (id BIGINT)")
	_, queryErr := conn.QueryInt(ctx, "SELECT COUNT(*) FROM missing_table")

	// assert
	require.NoError(t, execErr)
	assert.Error(t, queryErr)
	assert.True(t, logHandler.HasLogWithAttr(slog.LevelDebug, "executed sql for: exec", "duration_ms"))
	assert.True(t, logHandler.HasLogWithAttr(slog.LevelDebug, "sql execution failed for: query", "error"))
}

func Test_NewSessionProvider_NilDatabase(t *testing.T) {
	_, pgxErr := NewSessionProviderFromPGXPool(nil)
	_, sqlErr := NewSessionProviderFromSQLDB(nil)
	_, sqlxErr := NewSessionProviderFromSQLX(nil)

	assert.ErrorIs(t, pgxErr, tpcb.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlErr, tpcb.ErrNilDatabaseConnection)
	assert.ErrorIs(t, sqlxErr, tpcb.ErrNilDatabaseConnection)
}

func Test_NewSessionProvider_UnsupportedDialect(t *testing.T) {
	_, err := NewSessionProviderFromSQLDB(givenSQLiteDB(t), WithDialect("mysql"))

	assert.ErrorIs(t, err, tpcb.ErrUnsupportedDialect)
}

func Test_SessionProvider_ConnectAfterClose_FailsWithConnectionError(t *testing.T) {
	provider, err := NewSessionProviderFromSQLDB(givenSQLiteDB(t), WithDialect(tpcb.DialectSQLite3))
	require.NoError(t, err)
	require.NoError(t, provider.Close())

	_, err = provider.Connect(context.Background())

	assert.ErrorIs(t, err, tpcb.ErrConnectionFailed)
}

// The PostgreSQL tests need a running database, see config.EnvPostgresDSN.
func Test_SessionProvider_Postgres_AllAdapters(t *testing.T) {
	dsn := os.Getenv(config.EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s is not set", config.EnvPostgresDSN)
	}

	ctx := context.Background()
	scale := testScale(t)

	factories := map[string]func(t *testing.T) tpcb.SessionProvider{
		"pgx.Pool": func(t *testing.T) tpcb.SessionProvider {
			pool, err := config.PostgresPGXPool(ctx, dsn, 4)
			require.NoError(t, err)
			provider, err := NewSessionProviderFromPGXPool(pool)
			require.NoError(t, err)

			return provider
		},
		"sql.DB": func(t *testing.T) tpcb.SessionProvider {
			db, err := config.PostgresSQLDB(ctx, dsn, 4)
			require.NoError(t, err)
			provider, err := NewSessionProviderFromSQLDB(db)
			require.NoError(t, err)

			return provider
		},
		"sqlx.DB": func(t *testing.T) tpcb.SessionProvider {
			db, err := config.PostgresSQLX(ctx, dsn, 4)
			require.NoError(t, err)
			provider, err := NewSessionProviderFromSQLX(db)
			require.NoError(t, err)

			return provider
		},
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			provider := factory(t)
			t.Cleanup(func() { _ = provider.Close() })

			provisioner := givenProvisioned(t, provider, scale)

			results := runSession(t, provider, scale, 3)

			assertSessionSucceeded(t, results, 3)
			balances, err := provisioner.Verify(ctx)
			require.NoError(t, err)
			assert.True(t, balances.Consistent(), "balances: %+v", balances)
			assert.Equal(t, int64(120), balances.HistoryRows)
		})
	}
}

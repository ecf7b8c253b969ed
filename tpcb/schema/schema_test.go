package schema_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/tpcb-benchmark-go/config"
	"github.com/AntonStoeckl/tpcb-benchmark-go/testutil/storefake"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
	. "github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/schema"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/sqlengine"
)

func givenSQLiteProvider(t *testing.T) *sqlengine.SessionProvider {
	t.Helper()

	db, err := config.SQLiteDB(context.Background(), filepath.Join(t.TempDir(), "tpcb.db"), 2)
	require.NoError(t, err, "opening the sqlite database failed")

	provider, err := sqlengine.NewSessionProviderFromSQLDB(db, sqlengine.WithDialect(tpcb.DialectSQLite3))
	require.NoError(t, err, "creating the session provider failed")

	t.Cleanup(func() { _ = provider.Close() })

	return provider
}

func smallScale(t *testing.T) tpcb.ScaleParameters {
	t.Helper()

	scale, err := tpcb.NewScaleParameters(2, 2, 3, 25)
	require.NoError(t, err)

	return scale
}

func queryInt(t *testing.T, provider tpcb.SessionProvider, query string) int64 {
	t.Helper()

	conn, err := provider.Connect(context.Background())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	value, err := conn.QueryInt(context.Background(), query)
	require.NoError(t, err, "query failed: %s", query)

	return value
}

func Test_Provisioner_Provision_CreatesOneRowPerEntity(t *testing.T) {
	// arrange
	ctx := context.Background()
	provider := givenSQLiteProvider(t)
	scale := smallScale(t)
	provisioner, err := NewProvisioner(provider, scale, WithBatchSize(7))
	require.NoError(t, err)

	// act
	err = provisioner.Provision(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, scale.NumBranches(), queryInt(t, provider, "SELECT COUNT(*) FROM branches"))
	assert.Equal(t, scale.NumTellers(), queryInt(t, provider, "SELECT COUNT(*) FROM tellers"))
	assert.Equal(t, scale.NumAccounts(), queryInt(t, provider, "SELECT COUNT(*) FROM accounts"))
	assert.Equal(t, int64(0), queryInt(t, provider, "SELECT COUNT(*) FROM history"))

	accounts, _ := scale.IDRange(tpcb.Account)
	assert.Equal(t, accounts.Min, queryInt(t, provider, "SELECT MIN(aid) FROM accounts"))
	assert.Equal(t, accounts.Max, queryInt(t, provider, "SELECT MAX(aid) FROM accounts"))

	tellers, _ := scale.IDRange(tpcb.Teller)
	assert.Equal(t, tellers.Min, queryInt(t, provider, "SELECT MIN(tid) FROM tellers"))
	assert.Equal(t, tellers.Max, queryInt(t, provider, "SELECT MAX(tid) FROM tellers"))

	branches, _ := scale.IDRange(tpcb.Branch)
	assert.Equal(t, branches.Min, queryInt(t, provider, "SELECT MIN(bid) FROM accounts"))
	assert.Equal(t, branches.Max, queryInt(t, provider, "SELECT MAX(bid) FROM accounts"))
	assert.Equal(t, branches.Min, queryInt(t, provider, "SELECT MIN(bid) FROM tellers"))
	assert.Equal(t, branches.Max, queryInt(t, provider, "SELECT MAX(bid) FROM tellers"))
}

func Test_Provisioner_Provision_IsRepeatable(t *testing.T) {
	// arrange
	ctx := context.Background()
	provider := givenSQLiteProvider(t)
	scale := smallScale(t)
	provisioner, err := NewProvisioner(provider, scale)
	require.NoError(t, err)
	require.NoError(t, provisioner.Provision(ctx))

	// act
	err = provisioner.Provision(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, scale.NumAccounts(), queryInt(t, provider, "SELECT COUNT(*) FROM accounts"))
}

func Test_Provisioner_Verify_SumsAllBalances(t *testing.T) {
	// arrange
	ctx := context.Background()
	provider := givenSQLiteProvider(t)
	provisioner, err := NewProvisioner(provider, smallScale(t))
	require.NoError(t, err)
	require.NoError(t, provisioner.Provision(ctx))

	conn, err := provider.Connect(ctx)
	require.NoError(t, err)
	for _, statement := range []string{
		"UPDATE accounts SET abalance = abalance + 5 WHERE aid = 3",
		"UPDATE tellers SET tbalance = tbalance + 5 WHERE tid = 54",
		"UPDATE branches SET bbalance = bbalance + 5 WHERE bid = 50",
		"INSERT INTO history (tid, bid, aid, delta, mtime) VALUES (54, 50, 3, 5, '2026-01-01T00:00:00Z')",
		"UPDATE accounts SET abalance = abalance + 2 WHERE aid = 4",
	} {
		_, err = conn.Exec(ctx, statement)
		require.NoError(t, err)
	}
	require.NoError(t, conn.Close())

	// act
	balances, err := provisioner.Verify(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, Balances{Accounts: 7, Tellers: 5, Branches: 5, History: 5, HistoryRows: 1}, balances)
	assert.False(t, balances.Consistent())
}

func Test_Provisioner_Drop_RemovesTables(t *testing.T) {
	// arrange
	ctx := context.Background()
	provider := givenSQLiteProvider(t)
	provisioner, err := NewProvisioner(provider, smallScale(t))
	require.NoError(t, err)
	require.NoError(t, provisioner.Provision(ctx))

	// act
	err = provisioner.Drop(ctx)

	// assert
	require.NoError(t, err)
	_, err = provisioner.Verify(ctx)
	assert.ErrorIs(t, err, ErrProvisioningFailed)
}

func Test_Provisioner_WithTableNames(t *testing.T) {
	// arrange
	ctx := context.Background()
	provider := givenSQLiteProvider(t)
	tables := tpcb.TableNames{Branches: "b", Tellers: "t", Accounts: "a", History: "h"}
	provisioner, err := NewProvisioner(provider, smallScale(t), WithTableNames(tables))
	require.NoError(t, err)

	// act
	err = provisioner.Provision(ctx)

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(50), queryInt(t, provider, "SELECT COUNT(*) FROM a"))
	balances, err := provisioner.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, balances.Consistent())
}

func Test_Provisioner_ConnectFailure(t *testing.T) {
	provider := storefake.NewSessionProvider(storefake.WithConnectError(sql.ErrConnDone))
	provisioner, err := NewProvisioner(provider, smallScale(t))
	require.NoError(t, err)

	err = provisioner.Provision(context.Background())

	assert.ErrorIs(t, err, ErrProvisioningFailed)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func Test_NewProvisioner_Validation(t *testing.T) {
	store := storefake.NewSessionProvider()

	tests := []struct {
		name        string
		provider    tpcb.SessionProvider
		scale       tpcb.ScaleParameters
		options     []Option
		expectedErr error
	}{
		{name: "nil provider", provider: nil, scale: tpcb.DefaultScaleParameters(1), expectedErr: tpcb.ErrNilSessionProvider},
		{name: "invalid scale", provider: store, scale: tpcb.ScaleParameters{}, expectedErr: tpcb.ErrInvalidScaleParameters},
		{name: "invalid batch size", provider: store, scale: tpcb.DefaultScaleParameters(1), options: []Option{WithBatchSize(0)}, expectedErr: ErrInvalidBatchSize},
		{name: "empty table name", provider: store, scale: tpcb.DefaultScaleParameters(1), options: []Option{WithTableNames(tpcb.TableNames{})}, expectedErr: tpcb.ErrEmptyTableName},
		{name: "unsupported dialect", provider: storefake.NewSessionProvider(storefake.WithDialect("mssql")), scale: tpcb.DefaultScaleParameters(1), expectedErr: tpcb.ErrUnsupportedDialect},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProvisioner(tc.provider, tc.scale, tc.options...)

			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_Balances_Consistent(t *testing.T) {
	tests := []struct {
		name     string
		balances Balances
		expected bool
	}{
		{name: "all zero", balances: Balances{}, expected: true},
		{name: "all equal", balances: Balances{Accounts: 42, Tellers: 42, Branches: 42, History: 42, HistoryRows: 3}, expected: true},
		{name: "account differs", balances: Balances{Accounts: 41, Tellers: 42, Branches: 42, History: 42}, expected: false},
		{name: "history differs", balances: Balances{Accounts: 42, Tellers: 42, Branches: 42, History: 0}, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.balances.Consistent())
		})
	}
}

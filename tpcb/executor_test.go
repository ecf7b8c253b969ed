package tpcb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
	"github.com/AntonStoeckl/tpcb-benchmark-go/testutil/storefake"
)

func givenFakeConnection(t *testing.T, store *storefake.SessionProvider) Connection {
	t.Helper()

	conn, err := store.Connect(context.Background())
	require.NoError(t, err, "connecting to the fake store failed")
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func givenBuilder(t *testing.T) StatementBuilder {
	t.Helper()

	builder, err := NewStatementBuilder(DialectPostgres, DefaultTableNames())
	require.NoError(t, err)

	return builder
}

var fixedOperands = TransactionOperands{AccountID: 42, BranchID: 100000, TellerID: 100005, Delta: 7}

func Test_TransactionExecutor_Execute_InTransaction_Commits(t *testing.T) {
	for _, prepared := range []bool{false, true} {
		t.Run(map[bool]string{false: "literal", true: "prepared"}[prepared], func(t *testing.T) {
			// arrange
			ctx := context.Background()
			store := storefake.NewSessionProvider(storefake.WithStatementLog())
			conn := givenFakeConnection(t, store)
			statements := LiteralStatements(conn, givenBuilder(t))
			if prepared {
				var err error
				statements, err = PrepareStatements(ctx, conn, givenBuilder(t))
				require.NoError(t, err)
			}
			config := RunConfig{UseTransactions: true, UsePreparedStatements: prepared, NumClients: 1, TxPerClient: 1}

			// act
			balance, err := NewTransactionExecutor(nil).Execute(ctx, conn, statements, fixedOperands, config)

			// assert
			require.NoError(t, err)
			assert.Equal(t, int64(7), balance, "the read-back balance includes the uncommitted update")
			calls := store.Calls()
			assert.Equal(t, int64(1), calls.Begins)
			assert.Equal(t, int64(1), calls.Commits)
			assert.Equal(t, int64(0), calls.Rollbacks)
			assert.Equal(t,
				[]StatementKind{AccountUpdate, AccountSelect, TellerUpdate, BranchUpdate, HistoryInsert},
				store.StatementLog(),
			)
			assert.Equal(t, int64(7), store.BalanceSum(AccountUpdate))
			assert.Equal(t, int64(7), store.BalanceSum(TellerUpdate))
			assert.Equal(t, int64(7), store.BalanceSum(BranchUpdate))
			assert.Equal(t, int64(7), store.HistorySum())
		})
	}
}

func Test_TransactionExecutor_Execute_StepFailure_RollsBackAndSkipsRemainingSteps(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := storefake.NewSessionProvider(
		storefake.WithStatementLog(),
		storefake.WithFailEveryNth(TellerUpdate, 1),
	)
	conn := givenFakeConnection(t, store)
	config := RunConfig{UseTransactions: true, NumClients: 1, TxPerClient: 1}

	// act
	_, err := NewTransactionExecutor(nil).Execute(ctx, conn, LiteralStatements(conn, givenBuilder(t)), fixedOperands, config)

	// assert
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.ErrorIs(t, err, storefake.ErrInjected)
	calls := store.Calls()
	assert.Equal(t, int64(1), calls.Rollbacks)
	assert.Equal(t, int64(0), calls.Commits)
	assert.Equal(t, []StatementKind{AccountUpdate, AccountSelect, TellerUpdate}, store.StatementLog())
	assert.Equal(t, int64(0), store.BalanceSum(AccountUpdate), "the account update must be rolled back")
}

func Test_TransactionExecutor_Execute_WithoutTransaction_StepFailure_KeepsEarlierSteps(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := storefake.NewSessionProvider(storefake.WithFailEveryNth(BranchUpdate, 1))
	conn := givenFakeConnection(t, store)
	config := RunConfig{UseTransactions: false, NumClients: 1, TxPerClient: 1}

	// act
	_, err := NewTransactionExecutor(nil).Execute(ctx, conn, LiteralStatements(conn, givenBuilder(t)), fixedOperands, config)

	// assert
	assert.ErrorIs(t, err, ErrTransactionFailed)
	calls := store.Calls()
	assert.Equal(t, int64(0), calls.Begins)
	assert.Equal(t, int64(0), calls.Rollbacks)
	assert.Equal(t, int64(7), store.BalanceSum(AccountUpdate))
	assert.Equal(t, int64(7), store.BalanceSum(TellerUpdate))
	assert.Equal(t, int64(0), store.HistoryCount())
}

func Test_TransactionExecutor_Execute_RollbackFailure_IsSwallowed(t *testing.T) {
	// arrange
	ctx := context.Background()
	rollbackErr := errors.New("rollback exploded")
	store := storefake.NewSessionProvider(
		storefake.WithFailEveryNth(HistoryInsert, 1),
		storefake.WithRollbackError(rollbackErr),
	)
	conn := givenFakeConnection(t, store)
	config := RunConfig{UseTransactions: true, NumClients: 1, TxPerClient: 1}

	// act
	_, err := NewTransactionExecutor(nil).Execute(ctx, conn, LiteralStatements(conn, givenBuilder(t)), fixedOperands, config)

	// assert
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.ErrorIs(t, err, storefake.ErrInjected)
	assert.NotErrorIs(t, err, rollbackErr)
	assert.Equal(t, int64(1), store.Calls().Rollbacks)
}

func Test_TransactionExecutor_Execute_CommitFailure_FailsTheTransaction(t *testing.T) {
	// arrange
	ctx := context.Background()
	commitErr := errors.New("commit exploded")
	store := storefake.NewSessionProvider(storefake.WithCommitError(commitErr))
	conn := givenFakeConnection(t, store)
	config := RunConfig{UseTransactions: true, NumClients: 1, TxPerClient: 1}

	// act
	_, err := NewTransactionExecutor(nil).Execute(ctx, conn, LiteralStatements(conn, givenBuilder(t)), fixedOperands, config)

	// assert
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.ErrorIs(t, err, commitErr)
	assert.Equal(t, int64(1), store.Calls().Rollbacks)
	assert.Equal(t, int64(0), store.HistoryCount())
}

func Test_PrepareStatements_PreparesAndClosesAllFive(t *testing.T) {
	// arrange
	store := storefake.NewSessionProvider()
	conn := givenFakeConnection(t, store)

	// act
	statements, err := PrepareStatements(context.Background(), conn, givenBuilder(t))
	require.NoError(t, err)
	closeErr := statements.Close()

	// assert
	require.NoError(t, closeErr)
	assert.Equal(t, int64(5), store.Calls().Prepares)
	assert.Equal(t, int64(5), store.Calls().StatementCloses)
}

func Test_PrepareStatements_Failure(t *testing.T) {
	prepareErr := errors.New("prepare exploded")
	store := storefake.NewSessionProvider(storefake.WithPrepareError(prepareErr))
	conn := givenFakeConnection(t, store)

	_, err := PrepareStatements(context.Background(), conn, givenBuilder(t))

	assert.ErrorIs(t, err, prepareErr)
}

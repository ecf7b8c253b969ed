package tpcb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_StatementBuilder_Args_MatchThePlaceholderOrder(t *testing.T) {
	operands := TransactionOperands{AccountID: 42, BranchID: 100000, TellerID: 100005, Delta: 7}
	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, dialect := range []string{DialectPostgres, DialectSQLite3} {
		builder, err := NewStatementBuilder(dialect, DefaultTableNames())
		require.NoError(t, err)

		for _, kind := range StatementKinds {
			t.Run(dialect+"/"+kind.String(), func(t *testing.T) {
				_, goquArgs, buildErr := builder.build(kind, operands, mtime, true)
				require.NoError(t, buildErr)

				args, argsErr := builder.Args(kind, operands, mtime)
				require.NoError(t, argsErr)

				assert.Equal(t, goquArgs, args)
			})
		}
	}
}

package tpcb

import (
	"math/rand/v2"
)

// MaxDelta is the exclusive upper bound of a transaction's balance delta.
const MaxDelta = 1000

// TransactionOperands are the randomly drawn inputs of one TPC-B transaction.
type TransactionOperands struct {
	AccountID int64
	BranchID  int64
	TellerID  int64
	Delta     int64
}

// DrawOperands draws account, branch, and teller IDs from their ranges and a delta in [0, MaxDelta).
func DrawOperands(scale ScaleParameters, rng *rand.Rand) (TransactionOperands, error) {
	accountID, err := scale.RandomID(Account, rng)
	if err != nil {
		return TransactionOperands{}, err
	}

	branchID, err := scale.RandomID(Branch, rng)
	if err != nil {
		return TransactionOperands{}, err
	}

	tellerID, err := scale.RandomID(Teller, rng)
	if err != nil {
		return TransactionOperands{}, err
	}

	return TransactionOperands{
		AccountID: accountID,
		BranchID:  branchID,
		TellerID:  tellerID,
		Delta:     rng.Int64N(MaxDelta),
	}, nil
}

// newRand returns a PCG based generator. A zero seed draws a random one.
func newRand(seed uint64, stream uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return rand.New(rand.NewPCG(seed, stream))
}

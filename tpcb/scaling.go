package tpcb

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Per-unit entity counts as defined by TPC-B.
const (
	DefaultBranchesPerUnit = 1
	DefaultTellersPerUnit  = 10
	DefaultAccountsPerUnit = 100000
)

// EntityKind selects one of the ID sub-ranges of the flat ID space.
type EntityKind int

// The entity kinds in the order their ID ranges are laid out.
const (
	Account EntityKind = iota
	Branch
	Teller
)

func (k EntityKind) String() string {
	switch k {
	case Account:
		return "account"
	case Branch:
		return "branch"
	case Teller:
		return "teller"
	default:
		return fmt.Sprintf("entity_kind(%d)", int(k))
	}
}

// IDRange is an inclusive range of entity IDs.
type IDRange struct {
	Min int64
	Max int64
}

// Contains reports whether id lies inside the range.
func (r IDRange) Contains(id int64) bool {
	return id >= r.Min && id <= r.Max
}

// Size returns the number of IDs in the range.
func (r IDRange) Size() int64 {
	return r.Max - r.Min + 1
}

// ScaleParameters describes the size of the benchmark data set.
// It is an immutable value that is shared by all workers of a session.
type ScaleParameters struct {
	ScaleFactor     int
	BranchesPerUnit int
	TellersPerUnit  int
	AccountsPerUnit int
}

// DefaultScaleParameters returns ScaleParameters with the TPC-B per-unit entity counts.
func DefaultScaleParameters(scaleFactor int) ScaleParameters {
	return ScaleParameters{
		ScaleFactor:     scaleFactor,
		BranchesPerUnit: DefaultBranchesPerUnit,
		TellersPerUnit:  DefaultTellersPerUnit,
		AccountsPerUnit: DefaultAccountsPerUnit,
	}
}

// NewScaleParameters creates validated ScaleParameters.
func NewScaleParameters(scaleFactor, branchesPerUnit, tellersPerUnit, accountsPerUnit int) (ScaleParameters, error) {
	params := ScaleParameters{
		ScaleFactor:     scaleFactor,
		BranchesPerUnit: branchesPerUnit,
		TellersPerUnit:  tellersPerUnit,
		AccountsPerUnit: accountsPerUnit,
	}

	if err := params.Validate(); err != nil {
		return ScaleParameters{}, err
	}

	return params, nil
}

// Validate checks that all parameters are positive.
func (p ScaleParameters) Validate() error {
	switch {
	case p.ScaleFactor <= 0:
		return errors.Join(ErrInvalidScaleParameters, fmt.Errorf("scale factor must be positive, got %d", p.ScaleFactor))
	case p.BranchesPerUnit <= 0:
		return errors.Join(ErrInvalidScaleParameters, fmt.Errorf("branches per unit must be positive, got %d", p.BranchesPerUnit))
	case p.TellersPerUnit <= 0:
		return errors.Join(ErrInvalidScaleParameters, fmt.Errorf("tellers per unit must be positive, got %d", p.TellersPerUnit))
	case p.AccountsPerUnit <= 0:
		return errors.Join(ErrInvalidScaleParameters, fmt.Errorf("accounts per unit must be positive, got %d", p.AccountsPerUnit))
	}

	return nil
}

// NumAccounts returns the number of accounts at this scale.
func (p ScaleParameters) NumAccounts() int64 {
	return int64(p.AccountsPerUnit) * int64(p.ScaleFactor)
}

// NumBranches returns the number of branches at this scale.
func (p ScaleParameters) NumBranches() int64 {
	return int64(p.BranchesPerUnit) * int64(p.ScaleFactor)
}

// NumTellers returns the number of tellers at this scale.
func (p ScaleParameters) NumTellers() int64 {
	return int64(p.TellersPerUnit) * int64(p.ScaleFactor)
}

// TotalIDs returns the size of the flat ID space.
func (p ScaleParameters) TotalIDs() int64 {
	return p.NumAccounts() + p.NumBranches() + p.NumTellers()
}

// IDRange returns the ID range of the given entity kind.
// Accounts occupy the start of the ID space, followed by branches and then tellers.
func (p ScaleParameters) IDRange(kind EntityKind) (IDRange, error) {
	if err := p.Validate(); err != nil {
		return IDRange{}, err
	}

	numAccounts := p.NumAccounts()
	numBranches := p.NumBranches()
	numTellers := p.NumTellers()

	switch kind {
	case Account:
		return IDRange{Min: 0, Max: numAccounts - 1}, nil
	case Branch:
		return IDRange{Min: numAccounts, Max: numAccounts + numBranches - 1}, nil
	case Teller:
		return IDRange{Min: numAccounts + numBranches, Max: numAccounts + numBranches + numTellers - 1}, nil
	default:
		return IDRange{}, errors.Join(ErrUnknownEntityKind, fmt.Errorf("got %s", kind))
	}
}

// RandomID draws a uniformly distributed ID of the given kind.
func (p ScaleParameters) RandomID(kind EntityKind, rng *rand.Rand) (int64, error) {
	idRange, err := p.IDRange(kind)
	if err != nil {
		return 0, err
	}

	return idRange.Min + rng.Int64N(idRange.Size()), nil
}

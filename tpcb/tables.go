package tpcb

// TableNames names the four TPC-B tables.
type TableNames struct {
	Branches string
	Tellers  string
	Accounts string
	History  string
}

// DefaultTableNames returns the conventional TPC-B table names.
func DefaultTableNames() TableNames {
	return TableNames{
		Branches: "branches",
		Tellers:  "tellers",
		Accounts: "accounts",
		History:  "history",
	}
}

// Validate returns ErrEmptyTableName if any table name is empty.
func (t TableNames) Validate() error {
	if t.Branches == "" || t.Tellers == "" || t.Accounts == "" || t.History == "" {
		return ErrEmptyTableName
	}

	return nil
}

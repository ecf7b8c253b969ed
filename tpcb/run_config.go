package tpcb

import (
	"errors"
	"fmt"
)

// RunConfig configures one sub-run. It is passed by value and never changes while the sub-run is active.
type RunConfig struct {
	UseTransactions       bool
	UsePreparedStatements bool
	NumClients            int
	TxPerClient           int
}

// Validate checks that the client and transaction counts are positive.
func (c RunConfig) Validate() error {
	if c.NumClients <= 0 {
		return errors.Join(ErrInvalidRunConfig, fmt.Errorf("number of clients must be positive, got %d", c.NumClients))
	}

	if c.TxPerClient <= 0 {
		return errors.Join(ErrInvalidRunConfig, fmt.Errorf("transactions per client must be positive, got %d", c.TxPerClient))
	}

	return nil
}

// ExpectedTotal returns the number of transactions a completed sub-run has counted.
func (c RunConfig) ExpectedTotal() int64 {
	return int64(c.NumClients) * int64(c.TxPerClient)
}

// Label describes the statement and transaction mode, e.g. "transactions=on prepared=off".
func (c RunConfig) Label() string {
	return fmt.Sprintf("transactions=%s prepared=%s", onOff(c.UseTransactions), onOff(c.UsePreparedStatements))
}

// SubRunConfigs returns the four sub-run configurations of a session in execution order.
func SubRunConfigs(numClients, txPerClient int) []RunConfig {
	combinations := []struct{ transactions, prepared bool }{
		{transactions: false, prepared: false},
		{transactions: true, prepared: false},
		{transactions: false, prepared: true},
		{transactions: true, prepared: true},
	}

	configs := make([]RunConfig, 0, len(combinations))
	for _, combination := range combinations {
		configs = append(configs, RunConfig{
			UseTransactions:       combination.transactions,
			UsePreparedStatements: combination.prepared,
			NumClients:            numClients,
			TxPerClient:           txPerClient,
		})
	}

	return configs
}

func onOff(b bool) string {
	if b {
		return "on"
	}

	return "off"
}

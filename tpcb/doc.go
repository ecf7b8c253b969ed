// Package tpcb provides a TPC-B style benchmark engine for transactional data stores.
//
// A BenchmarkRunner drives a configurable number of concurrent client workers against a
// SessionProvider. Every worker owns one store connection for its lifetime and executes a
// fixed number of TPC-B transactions: an account balance update, a read-back of that
// balance, a teller and a branch balance update, and a history append.
//
// One session consists of four sub-runs, always in this order:
//   - no transactions, literal statements
//   - transactions, literal statements
//   - no transactions, prepared statements
//   - transactions, prepared statements
//
// Account, branch, and teller IDs share one flat ID space. ScaleParameters partitions it into
// disjoint contiguous ranges (accounts first, then branches, then tellers) and draws random IDs
// from them.
//
// Failed transactions never abort a sub-run; they are rolled back (when transactions are enabled)
// and counted. Only a sub-run in which no worker could start, or whose workers did not finish
// within the optional join timeout, aborts the session.
//
// Usage:
//
//	provider, _ := sqlengine.NewSessionProviderFromPGXPool(pool)
//	runner, _ := tpcb.NewBenchmarkRunner(
//		provider,
//		tpcb.DefaultScaleParameters(1),
//		tpcb.WithClients(50),
//		tpcb.WithTransactionsPerClient(1000),
//		tpcb.WithLogger(slog.Default()),
//	)
//
//	if err := runner.Start(ctx); err != nil {
//		// handle error
//	}
//
//	_ = runner.Stop()
package tpcb

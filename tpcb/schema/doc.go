// Package schema creates, populates, and verifies the four TPC-B tables.
//
// A Provisioner works through any tpcb.SessionProvider, so the same code sets up PostgreSQL and
// SQLite databases. Provision drops existing tables, creates them, and inserts one row per
// account, teller, and branch with a zero balance. IDs follow the flat ID space of
// tpcb.ScaleParameters, so the rows match the IDs the benchmark draws.
//
// Verify sums up all balances. After a session in which every transaction either committed
// completely or not at all, all four sums are equal.
package schema

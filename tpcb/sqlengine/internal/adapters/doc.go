// Package adapters provide database adapter implementations for the TPC-B session provider.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters hand out dedicated connections through
// a common DBAdapter interface, so the benchmark can run the same workload through any
// supported library and compare them.
//
// A DBConn owns one physical connection until it is closed. Transactions and prepared
// statements are scoped to that connection.
package adapters

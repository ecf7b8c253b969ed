// Package sqlengine provides tpcb.SessionProvider implementations on top of real SQL databases.
//
// A SessionProvider can be created from a pgx Pool, a database/sql DB, or a sqlx DB. Every
// Connect call takes a dedicated connection from the pool, which the calling client worker
// keeps for its whole lifetime. Closing the provider closes the pool.
//
// Supported databases are PostgreSQL (through pgx or lib/pq) and SQLite (through modernc.org/sqlite).
// The goqu dialect of a provider defaults to PostgreSQL and is set with WithDialect:
//
//	db, _ := sql.Open("sqlite", "file:bench.db?_pragma=busy_timeout(5000)")
//	provider, err := sqlengine.NewSessionProviderFromSQLDB(db, sqlengine.WithDialect(tpcb.DialectSQLite3))
//
// With a logger configured, every executed statement is logged at debug level together with
// its duration.
package sqlengine

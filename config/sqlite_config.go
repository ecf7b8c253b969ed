package config

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteDriverName is the database/sql driver name registered by modernc.org/sqlite.
const SQLiteDriverName = "sqlite"

// SQLiteDB opens and pings a *sql.DB for the SQLite database file at path.
func SQLiteDB(ctx context.Context, path string, maxOpenConns int) (*sql.DB, error) {
	db, err := sql.Open(SQLiteDriverName, SQLiteDSN(path))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpenConns)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		return nil, errors.Join(pingErr, db.Close())
	}

	return db, nil
}

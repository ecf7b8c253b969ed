package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"

	"github.com/AntonStoeckl/tpcb-benchmark-go/config"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/sqlengine"
)

const (
	keyAdapter         = "adapter"
	keyPostgresDSN     = "postgres-dsn"
	keySQLitePath      = "sqlite-path"
	keyScale           = "scale"
	keyBranchesPerUnit = "branches-per-unit"
	keyTellersPerUnit  = "tellers-per-unit"
	keyAccountsPerUnit = "accounts-per-unit"
	keyVerbose         = "verbose"
	keyClients         = "clients"
	keyTxPerClient     = "tx-per-client"
	keyJSON            = "json"
	keySeed            = "seed"
	keyJoinTimeout     = "join-timeout"
	keyMemoryInterval  = "memory-interval"
	keyOTEL            = "otel"
	keyOTELEndpoint    = "otel-endpoint"
	keyBatchSize       = "batch-size"

	adapterPGX    = "pgx"
	adapterSQL    = "sql"
	adapterSQLX   = "sqlx"
	adapterSQLite = "sqlite"

	// connections beyond the client count, for provisioning and verification
	spareConnections = 2
)

// ErrUnknownAdapter is returned for adapter names other than pgx, sql, sqlx, and sqlite.
var ErrUnknownAdapter = errors.New("unknown database adapter")

type settings struct {
	adapter        string
	postgresDSN    string
	sqlitePath     string
	scale          tpcb.ScaleParameters
	verbose        bool
	clients        int
	txPerClient    int
	jsonReports    bool
	seed           uint64
	joinTimeout    time.Duration
	memoryInterval time.Duration
	otel           bool
	otelEndpoint   string
	batchSize      int
}

func loadSettings(v *viper.Viper) (settings, error) {
	scale, err := tpcb.NewScaleParameters(
		v.GetInt(keyScale),
		v.GetInt(keyBranchesPerUnit),
		v.GetInt(keyTellersPerUnit),
		v.GetInt(keyAccountsPerUnit),
	)
	if err != nil {
		return settings{}, err
	}

	s := settings{
		adapter:        v.GetString(keyAdapter),
		postgresDSN:    v.GetString(keyPostgresDSN),
		sqlitePath:     v.GetString(keySQLitePath),
		scale:          scale,
		verbose:        v.GetBool(keyVerbose),
		clients:        v.GetInt(keyClients),
		txPerClient:    v.GetInt(keyTxPerClient),
		jsonReports:    v.GetBool(keyJSON),
		seed:           v.GetUint64(keySeed),
		joinTimeout:    v.GetDuration(keyJoinTimeout),
		memoryInterval: v.GetDuration(keyMemoryInterval),
		otel:           v.GetBool(keyOTEL),
		otelEndpoint:   v.GetString(keyOTELEndpoint),
		batchSize:      v.GetInt(keyBatchSize),
	}

	switch s.adapter {
	case adapterPGX, adapterSQL, adapterSQLX, adapterSQLite:
	default:
		return settings{}, errors.Join(ErrUnknownAdapter, fmt.Errorf("got %q", s.adapter))
	}

	return s, nil
}

func (s settings) maxConnections() int {
	return max(s.clients, 1) + spareConnections
}

// newSessionProvider opens the pool for the configured adapter. The provider owns the pool.
func newSessionProvider(ctx context.Context, s settings, logger tpcb.Logger) (tpcb.SessionProvider, error) {
	var sqlLogger tpcb.Logger
	if s.verbose {
		sqlLogger = logger
	}

	maxConns := s.maxConnections()

	switch s.adapter {
	case adapterPGX:
		pool, err := config.PostgresPGXPool(ctx, s.postgresDSN, int32(min(maxConns, math.MaxInt32))) //nolint:gosec // bounded above
		if err != nil {
			return nil, err
		}

		return sqlengine.NewSessionProviderFromPGXPool(pool, sqlengine.WithLogger(sqlLogger))

	case adapterSQL:
		db, err := config.PostgresSQLDB(ctx, s.postgresDSN, maxConns)
		if err != nil {
			return nil, err
		}

		return sqlengine.NewSessionProviderFromSQLDB(db, sqlengine.WithLogger(sqlLogger))

	case adapterSQLX:
		db, err := config.PostgresSQLX(ctx, s.postgresDSN, maxConns)
		if err != nil {
			return nil, err
		}

		return sqlengine.NewSessionProviderFromSQLX(db, sqlengine.WithLogger(sqlLogger))

	default:
		db, err := config.SQLiteDB(ctx, s.sqlitePath, maxConns)
		if err != nil {
			return nil, err
		}

		return sqlengine.NewSessionProviderFromSQLX(
			sqlx.NewDb(db, config.SQLiteDriverName),
			sqlengine.WithLogger(sqlLogger),
		)
	}
}

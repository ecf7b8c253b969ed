// Package config provides database and observability configuration for the TPC-B benchmark.
//
// It contains factory functions for the connection pools of all supported adapters
// (pgx.Pool, sql.DB, and sqlx.DB on PostgreSQL, sql.DB on SQLite) and for OpenTelemetry
// providers that export metrics and traces over OTLP gRPC.
//
// DSNs and endpoints default to a local setup and can be overridden with environment variables.
package config

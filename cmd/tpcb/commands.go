package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/tpcb-benchmark-go/config"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/oteladapters"
	"github.com/AntonStoeckl/tpcb-benchmark-go/tpcb/schema"
)

const (
	envPrefix           = "TPCB"
	version             = "dev"
	instrumentationName = "github.com/AntonStoeckl/tpcb-benchmark-go"
)

// ErrInconsistentBalances is returned by the verify command if the balance sums differ.
var ErrInconsistentBalances = errors.New("balance sums are inconsistent")

func newRootCmd() *cobra.Command {
	return newRootCmdWithViper(newViper())
}

// newViper resolves settings from flags first, then TPCB_ environment variables, then flag defaults.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

func newRootCmdWithViper(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "tpcb",
		Short: "TPC-B style database benchmark",
		Long: `tpcb provisions the four TPC-B tables and runs benchmark sessions against them.

A session runs four sub-runs with and without explicit transactions and with literal and
prepared statements, and prints one report per sub-run. Every flag can also be set with an
environment variable, e.g. --postgres-dsn as TPCB_POSTGRES_DSN.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String(keyAdapter, adapterPGX,
		"Database adapter: pgx, sql, sqlx, or sqlite")
	flags.String(keyPostgresDSN, config.PostgresDSN(),
		"PostgreSQL DSN for the pgx, sql, and sqlx adapters")
	flags.String(keySQLitePath, "tpcb.db",
		"SQLite database file for the sqlite adapter")
	flags.Int(keyScale, 1,
		"Scale factor")
	flags.Int(keyBranchesPerUnit, tpcb.DefaultBranchesPerUnit,
		"Branches per scale unit")
	flags.Int(keyTellersPerUnit, tpcb.DefaultTellersPerUnit,
		"Tellers per scale unit")
	flags.Int(keyAccountsPerUnit, tpcb.DefaultAccountsPerUnit,
		"Accounts per scale unit")
	flags.Bool(keyVerbose, false,
		"Log at debug level, including every SQL statement")
	_ = v.BindPFlags(flags)

	root.AddCommand(newRunCmd(v), newProvisionCmd(v), newVerifyCmd(v))

	return root
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one benchmark session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}

			return runSession(cmd, s)
		},
	}

	flags := cmd.Flags()
	flags.Int(keyClients, tpcb.DefaultNumClients,
		"Concurrent clients per sub-run")
	flags.Int(keyTxPerClient, tpcb.DefaultTxPerClient,
		"Transactions per client and sub-run")
	flags.Bool(keyJSON, false,
		"Print reports as JSON lines instead of text")
	flags.Uint64(keySeed, 0,
		"Random seed for reproducible operands (0 = random)")
	flags.Duration(keyJoinTimeout, 0,
		"Abort the session if a sub-run takes longer (0 = wait indefinitely)")
	flags.Duration(keyMemoryInterval, 0,
		"Sample memory periodically during a sub-run (0 = only at start and end)")
	flags.Bool(keyOTEL, false,
		"Export metrics and traces over OTLP gRPC")
	flags.String(keyOTELEndpoint, config.OTELCollectorEndpoint(),
		"OTLP gRPC endpoint")
	_ = v.BindPFlags(flags)

	return cmd
}

func newProvisionCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Drop, create, and populate the TPC-B tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}

			logger := newLogger(s.verbose)

			provider, err := newSessionProvider(cmd.Context(), s, logger)
			if err != nil {
				return err
			}
			defer closeProvider(provider, logger)

			provisioner, err := schema.NewProvisioner(provider, s.scale,
				schema.WithBatchSize(s.batchSize),
				schema.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			return provisioner.Provision(cmd.Context())
		},
	}

	cmd.Flags().Int(keyBatchSize, schema.DefaultBatchSize, "Rows per insert statement")
	_ = v.BindPFlags(cmd.Flags())

	return cmd
}

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that account, teller, branch, and history sums are equal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}

			logger := newLogger(s.verbose)

			provider, err := newSessionProvider(cmd.Context(), s, logger)
			if err != nil {
				return err
			}
			defer closeProvider(provider, logger)

			provisioner, err := schema.NewProvisioner(provider, s.scale)
			if err != nil {
				return err
			}

			balances, err := provisioner.Verify(cmd.Context())
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "accounts=%d tellers=%d branches=%d history=%d history_rows=%d\n",
				balances.Accounts, balances.Tellers, balances.Branches, balances.History, balances.HistoryRows)

			if !balances.Consistent() {
				return ErrInconsistentBalances
			}

			return nil
		},
	}
}

func runSession(cmd *cobra.Command, s settings) error {
	ctx := cmd.Context()
	logger := newLogger(s.verbose)

	provider, err := newSessionProvider(ctx, s, logger)
	if err != nil {
		return err
	}

	options := []tpcb.Option{
		tpcb.WithClients(s.clients),
		tpcb.WithTransactionsPerClient(s.txPerClient),
		tpcb.WithJoinTimeout(s.joinTimeout),
		tpcb.WithMemorySampleInterval(s.memoryInterval),
		tpcb.WithSeed(s.seed),
		tpcb.WithReportWriter(cmd.OutOrStdout()),
		tpcb.WithLogger(logger),
	}

	if s.jsonReports {
		options = append(options, tpcb.WithJSONReports())
	}

	if s.otel {
		providers, otelErr := config.NewObservabilityProviders(ctx, s.otelEndpoint, version)
		if otelErr != nil {
			closeProvider(provider, logger)
			return otelErr
		}
		defer func() {
			if shutdownErr := providers.Shutdown(); shutdownErr != nil {
				logger.Warn("failed to shut down observability providers", "error", shutdownErr.Error())
			}
		}()

		options = append(options,
			tpcb.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter(instrumentationName))),
			tpcb.WithTracing(oteladapters.NewTracingCollector(otel.Tracer(instrumentationName))),
		)
	}

	runner, err := tpcb.NewBenchmarkRunner(provider, s.scale, options...)
	if err != nil {
		closeProvider(provider, logger)
		return err
	}

	runErr := runner.Start(ctx)

	return errors.Join(runErr, runner.Stop())
}

func closeProvider(provider tpcb.SessionProvider, logger tpcb.Logger) {
	if err := provider.Close(); err != nil {
		logger.Warn("failed to close session provider", "error", err.Error())
	}
}

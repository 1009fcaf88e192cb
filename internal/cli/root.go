// Package cli implements the starkverify command tree. It is a thin
// consumer of the verification core: flag parsing, config merging and
// rendering live here, the invariants live in internal/verify.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quasarlabs/starkverify/internal/config"
	"github.com/quasarlabs/starkverify/internal/history"
	"github.com/quasarlabs/starkverify/pkg/client"
)

var (
	networkFlag string
	urlFlag     string
)

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "starkverify",
		Short:   "Cairo smart contract verification CLI",
		Long:    `Starkverify submits Cairo contract sources for remote verification against a deployed class hash and tracks the verification job to completion.`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&networkFlag, "network", "", "target network: mainnet, sepolia or dev (default from config)")
	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "", "custom verification service URL (mutually exclusive with --network)")

	// Add subcommands
	rootCmd.AddCommand(createVerifyCmd())
	rootCmd.AddCommand(createStatusCmd())
	rootCmd.AddCommand(createHistoryCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd.Execute()
}

// loadConfig merges the config layers for root and applies the global
// flag overrides on top.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	if urlFlag != "" && networkFlag != "" {
		return nil, fmt.Errorf("--network and --url are mutually exclusive")
	}
	if urlFlag != "" {
		cfg.URL = urlFlag
		cfg.Network = ""
	} else if networkFlag != "" {
		cfg.Network = networkFlag
		cfg.URL = ""
	}

	return cfg, nil
}

// newLogger builds the CLI logger: warnings and errors on stderr, user
// output stays on stdout.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("STARKVERIFY_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newClient builds the service client for the configured endpoint.
func newClient(cfg *config.Config) (*client.Client, error) {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}
	return client.New(endpoint)
}

// openHistory opens the configured history store and runs migrations. A
// broken history store degrades to nil rather than blocking
// verification.
func openHistory(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) history.Store {
	store, err := history.New(history.Config{
		Backend:     cfg.HistoryBackend,
		Path:        cfg.HistoryPath,
		PostgresURL: cfg.HistoryPostgresURL,
	}, logger)
	if err != nil {
		logger.Warn("history store unavailable, continuing without it", "error", err)
		return nil
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		logger.Warn("history migration failed, continuing without it", "error", err)
		store.Close()
		return nil
	}
	return store
}

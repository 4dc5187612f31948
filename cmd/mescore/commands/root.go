// Package commands implements the mescore CLI.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mescore/internal/config"
	"mescore/internal/core"
	"mescore/internal/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mescore",
		Short: "mescore - manufacturing execution core",
		Long: `mescore runs the manufacturing execution core: order, routing, NCR,
kanban and maintenance lifecycles, workstation scheduling, statistical
process control and production statistics.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newRestoreCommand())
	rootCmd.AddCommand(newSnapshotsCommand())

	return rootCmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newService opens the configured persistence backend and wires the core
// service with logging and metrics.
func newService(cfg config.Config) (*core.Service, *telemetry.Logger, *telemetry.Metrics, error) {
	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	metrics := telemetry.NewMetrics(cfg.Metrics)

	location := cfg.Storage.SQLitePath
	if cfg.Storage.Driver == "postgres" {
		location = cfg.Storage.PostgresDSN
	}
	store, err := core.OpenPersistentStoreAt(core.StorageDriver(cfg.Storage.Driver), location, core.DefaultRulesEngine())
	if err != nil {
		return nil, nil, nil, err
	}

	svc := core.NewService(store,
		core.WithLogger(logger),
		core.WithMetrics(metrics),
		core.WithSPCWindow(cfg.SPC.Window),
	)
	return svc, logger, metrics, nil
}

// Package cli provides the command-line interface for lineal.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lineal-dev/lineal/internal/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

var cfg *config.Config

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lineal",
		Short: "lineal - SQL Lineage Engine",
		Long: `lineal resolves table and column lineage from SQL definitions,
builds the dependency graph, and answers impact analysis queries
over the persisted graph.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg, err = config.Load(wd, cmd.Root().PersistentFlags())
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("state-path", "", "Path to the lineage database")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Int("workers", 0, "Parallel extraction workers")
	rootCmd.PersistentFlags().Bool("strict", false, "Fail objects with ambiguous column references")

	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newImpactCommand())
	rootCmd.AddCommand(newObjectsCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() int {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		return 1
	}
	return 0
}

// newLogger builds the CLI logger from the configured level.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

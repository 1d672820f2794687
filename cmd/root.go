package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/config"
)

var (
	cfg *config.Config

	// logLevel overrides config/env when set on the command line.
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "flora",
	Short: "Plant catalog harvest and reconciliation pipeline",
	Long: `Harvests the Perenual and Permapeople plant catalogs into raw source
records, reconciles them into canonical care fields under per-field
precedence rules, and records every pass in a run ledger so interrupted
harvests resume from their last checkpoint.`,
	Example: `  flora harvest perenual --budget 50
  flora merge
  flora runs --job harvest-perenual --limit 5
  flora coverage --diff`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/merge"
	"github.com/verdantlab/flora-cli/internal/model"
)

var mergeBatchSize int

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Reconcile source tables into canonical care fields",
	Long:  "Walks every plant, applies the per-field precedence rules to the harvested source rows, and writes the winning values to the canonical catalog.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := initPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := catalog.Migrate(ctx, pool); err != nil {
			return err
		}

		batch := cfg.Merge.BatchSize
		if mergeBatchSize > 0 {
			batch = mergeBatchSize
		}

		engine := merge.NewEngine(catalog.New(pool), ledger.New(pool), initNotifier(), cfg.Location(), batch)
		return engine.Run(ctx, model.TriggerManual)
	},
}

func init() {
	mergeCmd.Flags().IntVar(&mergeBatchSize, "batch-size", 0, "plants per transaction (default from config)")
	rootCmd.AddCommand(mergeCmd)
}

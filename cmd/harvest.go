package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/harvest"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/model"
)

var (
	harvestSource      string
	harvestFull        bool
	harvestReplay      bool
	harvestTriggeredBy string
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run one harvest against an upstream source",
	Long:  "Fetches plant data from Perenual or Permapeople, resuming from the last committed checkpoint, and mails a report when the run lands.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := initPool(ctx, "harvest")
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := catalog.Migrate(ctx, pool); err != nil {
			return err
		}

		local, err := initLocal(ctx)
		if err != nil {
			return err
		}
		defer local.Close() //nolint:errcheck

		cat := catalog.New(pool)
		led := ledger.New(pool)

		var src harvest.Source
		switch harvestSource {
		case model.JobPerenual:
			if harvestFull {
				return eris.New("--full applies to the permapeople source")
			}
			src, err = newPerenualSource(cat, led, local, harvestReplay)
		case model.JobPermapeople:
			if harvestReplay {
				return eris.New("--replay applies to the perenual source")
			}
			src, err = newPermapeopleSource(cat, led, local, harvestFull)
		default:
			return eris.Errorf("unknown source %q (want perenual or permapeople)", harvestSource)
		}
		if err != nil {
			return err
		}

		engine := harvest.NewEngine(led, initNotifier(), cfg.Location(), cfg.Harvest)
		return engine.Run(ctx, src, harvestTriggeredBy, 0)
	},
}

func init() {
	harvestCmd.Flags().StringVar(&harvestSource, "source", "", "source to harvest: perenual or permapeople (required)")
	harvestCmd.Flags().BoolVar(&harvestFull, "full", false, "force the permapeople discovery pass even when the source table is populated")
	harvestCmd.Flags().BoolVar(&harvestReplay, "replay", false, "re-ingest archived perenual pages without spending API budget")
	harvestCmd.Flags().StringVar(&harvestTriggeredBy, "triggered-by", model.TriggerManual, "trigger recorded on the run")
	_ = harvestCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(harvestCmd)
}

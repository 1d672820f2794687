package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/harvest"
	"github.com/verdantlab/flora-cli/internal/ledger"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the harvest scheduler",
	Long:  "Long-running daemon: harvests Perenual daily at the configured UTC hour, keeps Permapeople available for queued invocations, and replays quota-blocked runs on the retry ladder.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := initPool(ctx, "schedule")
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

		perenualSrc, err := newPerenualSource(cat, led, local, false)
		if err != nil {
			return err
		}
		permapeopleSrc, err := newPermapeopleSource(cat, led, local, false)
		if err != nil {
			return err
		}

		engine := harvest.NewEngine(led, initNotifier(), cfg.Location(), cfg.Harvest)
		daemon := harvest.NewDaemon(engine, cfg.Harvest.CronHourUTC, perenualSrc, permapeopleSrc)
		engine.SetScheduler(daemon)

		zap.L().Info("scheduler starting",
			zap.Int("cron_hour_utc", cfg.Harvest.CronHourUTC),
			zap.Ints("retry_hours_utc", cfg.Harvest.RetryHoursUTC),
		)
		return daemon.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

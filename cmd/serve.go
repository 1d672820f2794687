package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/harvest"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/merge"
	"github.com/verdantlab/flora-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server",
	Long:  "Serves run history, coverage, and manual harvest/merge triggers. Triggered jobs run in-process on the same engines the CLI uses.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := initPool(ctx, "serve")
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
		notifier := initNotifier()

		api := &adminAPI{
			led:    led,
			cat:    cat,
			runner: harvest.NewEngine(led, notifier, cfg.Location(), cfg.Harvest),
			merger: merge.NewEngine(cat, led, notifier, cfg.Location(), cfg.Merge.BatchSize),
			source: func(name string, forceFull bool) (harvest.Source, error) {
				switch name {
				case model.JobPerenual:
					return newPerenualSource(cat, led, local, false)
				case model.JobPermapeople:
					return newPermapeopleSource(cat, led, local, forceFull)
				default:
					return nil, eris.Errorf("unknown source %q", name)
				}
			},
			baseCtx: ctx,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting admin server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

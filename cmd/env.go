package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/harvest"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/notify"
	"github.com/verdantlab/flora-cli/internal/store"
	"github.com/verdantlab/flora-cli/pkg/perenual"
	"github.com/verdantlab/flora-cli/pkg/permapeople"
)

// initPool validates the config for the given mode and opens the catalog
// database. Callers own the returned pool and must Close it.
func initPool(ctx context.Context, mode string) (*pgxpool.Pool, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "connect catalog db")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping catalog db")
	}
	return pool, nil
}

// initLocal opens the sqlite page archive and zone cache.
func initLocal(ctx context.Context) (*store.Local, error) {
	local, err := store.Open(cfg.Local.Path)
	if err != nil {
		return nil, err
	}
	if err := local.Migrate(ctx); err != nil {
		local.Close() //nolint:errcheck
		return nil, err
	}
	return local, nil
}

// initNotifier assembles the report sinks configured for this install. Email
// is always present (it skips itself when unconfigured); the webhook joins
// when a URL is set.
func initNotifier() notify.Notifier {
	sinks := notify.Multi{notify.NewEmail(cfg.Email)}
	if cfg.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.Webhook.URL))
	}
	return sinks
}

// newPerenualSource builds the Perenual harvest source. Replay works entirely
// from the local page archive, so it does not need an API key.
func newPerenualSource(cat *catalog.Catalog, led *ledger.Ledger, local *store.Local, replay bool) (harvest.Source, error) {
	if cfg.Perenual.Key == "" && !replay {
		return nil, eris.New("perenual API key is required (FLORA_PERENUAL_KEY)")
	}

	client := perenual.NewClient(cfg.Perenual.Key, perenual.WithBaseURL(cfg.Perenual.BaseURL))
	return harvest.NewPerenual(cat, led, local, client, cfg.Harvest, replay), nil
}

// newPermapeopleSource builds the Permapeople harvest source. full forces the
// discovery pass even when the source table is already populated.
func newPermapeopleSource(cat *catalog.Catalog, led *ledger.Ledger, local *store.Local, full bool) (harvest.Source, error) {
	if cfg.Permapeople.KeyID == "" || cfg.Permapeople.KeySecret == "" {
		return nil, eris.New("permapeople API credentials are required (FLORA_PERMAPEOPLE_KEY_ID, FLORA_PERMAPEOPLE_KEY_SECRET)")
	}

	client := permapeople.NewClient(cfg.Permapeople.KeyID, cfg.Permapeople.KeySecret,
		permapeople.WithBaseURL(cfg.Permapeople.BaseURL))
	return harvest.NewPermapeople(cat, led, local, client, full), nil
}

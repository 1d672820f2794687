package zonemap

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/store"
	"github.com/verdantlab/flora-cli/pkg/phzmapi"
)

// cacheTTL bounds how long ZIP lookups are served from the local cache. The
// underlying zone map is revised on a multi-year cycle, so a month is safe.
const cacheTTL = 30 * 24 * time.Hour

// Resolver answers zone queries from whichever backends are configured: the
// shapefile map for points, phzmapi (through the local cache) for ZIP codes.
type Resolver struct {
	zones *Map
	api   phzmapi.Client
	cache *store.Local
	log   *zap.Logger
}

// NewResolver builds a resolver. zones and cache may be nil; api may be nil
// when only point lookups are needed.
func NewResolver(zones *Map, api phzmapi.Client, cache *store.Local) *Resolver {
	return &Resolver{
		zones: zones,
		api:   api,
		cache: cache,
		log:   zap.L().With(zap.String("component", "zonemap")),
	}
}

// ByPoint resolves a zone from the loaded shapefile polygons.
func (r *Resolver) ByPoint(lat, lon float64) (string, bool) {
	if r.zones == nil {
		return "", false
	}
	return r.zones.Lookup(lat, lon)
}

// ByZIP resolves a zone for a ZIP code, serving from the cache when it can.
// Cache failures degrade to a live lookup rather than failing the query.
func (r *Resolver) ByZIP(ctx context.Context, zip string) (*phzmapi.ZoneInfo, error) {
	if r.cache != nil {
		info, err := r.cache.CachedZone(ctx, zip)
		if err != nil {
			r.log.Warn("zone cache read failed", zap.String("zip", zip), zap.Error(err))
		} else if info != nil {
			return info, nil
		}
	}

	if r.api == nil {
		return nil, eris.New("zonemap: no zone lookup service configured")
	}
	info, err := r.api.Zone(ctx, zip)
	if err != nil {
		return nil, err
	}
	info.Zone = normalizeZone(info.Zone)

	if r.cache != nil {
		if err := r.cache.SetCachedZone(ctx, zip, info, cacheTTL); err != nil {
			r.log.Warn("zone cache write failed", zap.String("zip", zip), zap.Error(err))
		}
	}
	return info, nil
}

// Package store holds the local sqlite state: the raw page archive that lets
// harvests replay without spending upstream budget, and the hardiness zone
// cache for ZIP lookups.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/verdantlab/flora-cli/pkg/phzmapi"
)

// Local is the sqlite-backed archive and cache.
type Local struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and configures WAL mode.
func Open(path string) (*Local, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &Local{db: db}, nil
}

const localMigration = `
CREATE TABLE IF NOT EXISTS pages (
	source     TEXT NOT NULL,
	page       INTEGER NOT NULL,
	cursor     INTEGER NOT NULL DEFAULT 0,
	payload    BLOB NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (source, page)
);

CREATE TABLE IF NOT EXISTS zone_cache (
	zip        TEXT PRIMARY KEY,
	zone       TEXT NOT NULL,
	temp_range TEXT,
	lat        REAL,
	lon        REAL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_zone_cache_expires_at ON zone_cache(expires_at);
`

func (l *Local) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, localMigration)
	return eris.Wrap(err, "store: migrate")
}

func (l *Local) Close() error {
	return l.db.Close()
}

// Page is one archived upstream page.
type Page struct {
	Page    int
	Cursor  int64
	Payload []byte
}

// SavePage archives one raw upstream page. Saving the same (source, page)
// again replaces the payload, so resumed runs that re-fetch their last page
// stay idempotent.
func (l *Local) SavePage(ctx context.Context, source string, page int, cursor int64, payload []byte) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO pages (source, page, cursor, payload, fetched_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source, page) DO UPDATE SET cursor = excluded.cursor, payload = excluded.payload, fetched_at = excluded.fetched_at`,
		source, page, cursor, payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: save page %d for %s", page, source)
}

// Pages returns all archived pages for a source in page order, for replay.
func (l *Local) Pages(ctx context.Context, source string) ([]Page, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT page, cursor, payload FROM pages WHERE source = ? ORDER BY page`,
		source,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: query pages for %s", source)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.Page, &p.Cursor, &p.Payload); err != nil {
			return nil, eris.Wrap(err, "store: scan page")
		}
		pages = append(pages, p)
	}
	return pages, eris.Wrapf(rows.Err(), "store: iterate pages for %s", source)
}

// CachedZone returns the cached hardiness zone for a ZIP code, or nil when
// absent or expired.
func (l *Local) CachedZone(ctx context.Context, zip string) (*phzmapi.ZoneInfo, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT zone, temp_range, lat, lon FROM zone_cache
		 WHERE zip = ? AND expires_at > datetime('now')`,
		zip,
	)

	var info phzmapi.ZoneInfo
	var tempRange sql.NullString
	var lat, lon sql.NullFloat64
	err := row.Scan(&info.Zone, &tempRange, &lat, &lon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get cached zone")
	}
	info.TemperatureRange = tempRange.String
	info.Coordinates.Lat = lat.Float64
	info.Coordinates.Lon = lon.Float64
	return &info, nil
}

// SetCachedZone stores a zone lookup result for ttl.
func (l *Local) SetCachedZone(ctx context.Context, zip string, info *phzmapi.ZoneInfo, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO zone_cache (zip, zone, temp_range, lat, lon, cached_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(zip) DO UPDATE SET zone = excluded.zone, temp_range = excluded.temp_range,
		   lat = excluded.lat, lon = excluded.lon, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		zip, info.Zone, info.TemperatureRange, info.Coordinates.Lat, info.Coordinates.Lon,
		now, now.Add(ttl),
	)
	return eris.Wrapf(err, "store: set cached zone %s", zip)
}

// PruneExpired deletes expired zone cache rows and reports how many went.
func (l *Local) PruneExpired(ctx context.Context) (int, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM zone_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "store: prune expired zones")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "store: rows affected")
}

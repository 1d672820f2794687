// Package catalog is the Postgres store for canonical plants, their raw
// per-source records, and merge rules, all under the flora schema.
//
// Per-record methods used inside harvest page transactions take a db.Querier
// so lookups see rows written earlier in the same page; aggregate reads run
// directly on the pool.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/db"
	"github.com/verdantlab/flora-cli/internal/model"
)

// Catalog reads and writes the canonical plant tables.
type Catalog struct {
	pool db.Pool
}

// New creates a Catalog on the given pool.
func New(pool db.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g. the run ledger).
func (c *Catalog) Pool() db.Pool {
	return c.pool
}

// Ref identifies a canonical plant row without loading the full record.
type Ref struct {
	ID             int64
	CommonName     string
	ScientificName *string
}

// FindByScientificName looks up a canonical plant by scientific name,
// case-insensitively. Returns nil when no plant matches.
func (c *Catalog) FindByScientificName(ctx context.Context, q db.Querier, sci string) (*Ref, error) {
	return c.findByColumn(ctx, q, "scientific_name", sci)
}

// FindByName matches a canonical plant by scientific name first, then by
// common name. Empty names are skipped. Returns nil when nothing matches.
func (c *Catalog) FindByName(ctx context.Context, q db.Querier, sci, common string) (*Ref, error) {
	if strings.TrimSpace(sci) != "" {
		ref, err := c.findByColumn(ctx, q, "scientific_name", sci)
		if err != nil || ref != nil {
			return ref, err
		}
	}
	if strings.TrimSpace(common) == "" {
		return nil, nil
	}
	return c.findByColumn(ctx, q, "common_name", common)
}

func (c *Catalog) findByColumn(ctx context.Context, q db.Querier, column, name string) (*Ref, error) {
	var ref Ref
	err := q.QueryRow(ctx,
		`SELECT id, common_name, scientific_name FROM flora.plants
		 WHERE lower(`+column+`) = lower($1) ORDER BY id LIMIT 1`,
		name,
	).Scan(&ref.ID, &ref.CommonName, &ref.ScientificName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "catalog: find plant by %s", column)
	}
	return &ref, nil
}

// CreateStub inserts a minimal canonical plant for a harvested record with no
// existing match. Only identity fields are set; care fields stay null until
// the merge engine fills them.
func (c *Catalog) CreateStub(ctx context.Context, q db.Querier, p *model.Plant) (int64, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO flora.plants
		   (common_name, scientific_name, description, image_url, source, external_id, is_user_defined, data_sources)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		p.CommonName, p.ScientificName, p.Description, p.ImageURL,
		string(p.Source), p.ExternalID, p.IsUserDefined, p.DataSources,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrap(err, "catalog: create stub plant")
	}
	return id, nil
}

// CountPlants returns the number of canonical plants.
func (c *Catalog) CountPlants(ctx context.Context) (int64, error) {
	return c.count(ctx, "flora.plants")
}

func (c *Catalog) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := c.pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "catalog: count %s", table)
	}
	return n, nil
}

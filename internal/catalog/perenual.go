package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/db"
	"github.com/verdantlab/flora-cli/internal/model"
)

// PerenualSeen reports whether a Perenual species id has already been
// ingested. Resumed runs re-fetch their last page, so harvest checks this
// before every insert.
func (c *Catalog) PerenualSeen(ctx context.Context, q db.Querier, perenualID int64) (bool, error) {
	var id int64
	err := q.QueryRow(ctx,
		`SELECT id FROM flora.source_perenual WHERE perenual_id = $1`,
		perenualID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrap(err, "catalog: check perenual id")
	}
	return true, nil
}

// InsertPerenual writes one raw species-list row.
func (c *Catalog) InsertPerenual(ctx context.Context, q db.Querier, rec *model.PerenualRecord) error {
	_, err := q.Exec(ctx,
		`INSERT INTO flora.source_perenual
		   (perenual_id, plant_id, common_name, scientific_name, image_url)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.PerenualID, rec.PlantID, rec.CommonName, rec.ScientificName, rec.ImageURL,
	)
	if err != nil {
		return eris.Wrapf(err, "catalog: insert perenual %d", rec.PerenualID)
	}
	return nil
}

// CountPerenual returns the number of raw Perenual rows.
func (c *Catalog) CountPerenual(ctx context.Context) (int64, error) {
	return c.count(ctx, "flora.source_perenual")
}

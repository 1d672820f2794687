package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/db"
	"github.com/verdantlab/flora-cli/internal/model"
)

// permapeopleDataCols lists the flattened data[] columns in scan order. The
// SELECT, INSERT, and scan below are all built from this list so the
// statement and destination order cannot drift apart.
var permapeopleDataCols = []string{
	"water_requirement", "light_requirement", "hardiness_zone", "growth",
	"soil_type", "soil_ph", "layer", "edible", "edible_parts", "edible_uses",
	"family", "genus", "height", "width", "spacing", "life_cycle",
	"days_to_harvest", "days_to_maturity", "propagation_method",
	"propagation_cuttings", "propagation_direct_sowing",
	"propagation_transplanting", "germination_time", "germination_temperature",
	"sow_outdoors", "sow_indoors", "start_indoors_weeks",
	"start_outdoors_weeks", "plant_transplant", "plant_cuttings",
	"plant_division", "seed_planting_depth", "seed_viability",
	"seed_weight_per_1000_g", "nitrogen_fixing", "nitrogen_usage",
	"drought_resistant", "native_to", "introduced_into", "habitat",
	"root_type", "root_depth", "leaves", "pests", "diseases", "pollination",
	"medicinal", "medicinal_parts", "utility", "warning", "alternate_name",
	"wikipedia_url", "pfaf_url", "powo_url",
}

var (
	permapeopleSelectSQL = fmt.Sprintf(
		`SELECT id, permapeople_id, plant_id, scientific_name, common_name, description, image_url, slug, version, %s, fetched_at
		 FROM flora.source_permapeople WHERE permapeople_id = $1`,
		strings.Join(permapeopleDataCols, ", "),
	)
	permapeopleInsertSQL = fmt.Sprintf(
		`INSERT INTO flora.source_permapeople (permapeople_id, plant_id, scientific_name, common_name, description, image_url, slug, version, %s)
		 VALUES (%s)`,
		strings.Join(permapeopleDataCols, ", "),
		placeholders(8+len(permapeopleDataCols)),
	)
)

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(i+1)
	}
	return strings.Join(parts, ", ")
}

// GetPermapeople loads the raw record for an upstream id, or nil when the id
// has never been ingested.
func (c *Catalog) GetPermapeople(ctx context.Context, q db.Querier, permapeopleID int64) (*model.PermapeopleRecord, error) {
	var rec model.PermapeopleRecord
	dest := []any{
		&rec.ID, &rec.PermapeopleID, &rec.PlantID, &rec.ScientificName,
		&rec.CommonName, &rec.Description, &rec.ImageURL, &rec.Slug, &rec.Version,
	}
	for _, col := range permapeopleDataCols {
		dest = append(dest, rec.Field(col))
	}
	dest = append(dest, &rec.FetchedAt)

	err := q.QueryRow(ctx, permapeopleSelectSQL, permapeopleID).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "catalog: get permapeople %d", permapeopleID)
	}
	return &rec, nil
}

// InsertPermapeople writes one raw catalog row. fetched_at defaults to now()
// in the schema, establishing the update-detection watermark.
func (c *Catalog) InsertPermapeople(ctx context.Context, q db.Querier, rec *model.PermapeopleRecord) error {
	args := []any{
		rec.PermapeopleID, rec.PlantID, rec.ScientificName, rec.CommonName,
		rec.Description, rec.ImageURL, rec.Slug, rec.Version,
	}
	for _, col := range permapeopleDataCols {
		args = append(args, *rec.Field(col))
	}
	if _, err := q.Exec(ctx, permapeopleInsertSQL, args...); err != nil {
		return eris.Wrapf(err, "catalog: insert permapeople %d", rec.PermapeopleID)
	}
	return nil
}

// UpdatePermapeople rewrites the named text columns plus version from rec and
// refreshes fetched_at; version and fetched_at are written even with no
// columns, so a bare version bump still lands. Every column name must be
// mapped on the record struct; an unmapped name is an error, which keeps the
// dynamic SQL closed over known identifiers.
func (c *Catalog) UpdatePermapeople(ctx context.Context, q db.Querier, rec *model.PermapeopleRecord, cols []string) error {
	set := make([]string, 0, len(cols)+2)
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		f := rec.Field(col)
		if f == nil {
			return eris.Errorf("catalog: unmapped permapeople column %q", col)
		}
		args = append(args, *f)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, rec.Version)
	set = append(set, fmt.Sprintf("version = $%d", len(args)))
	set = append(set, "fetched_at = now()")

	args = append(args, rec.PermapeopleID)
	sql := fmt.Sprintf(
		"UPDATE flora.source_permapeople SET %s WHERE permapeople_id = $%d",
		strings.Join(set, ", "), len(args),
	)
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return eris.Wrapf(err, "catalog: update permapeople %d", rec.PermapeopleID)
	}
	return nil
}

// MaxPermapeopleFetchedAt returns the update-detection watermark: the newest
// fetched_at over all raw rows, or nil when the table is empty.
func (c *Catalog) MaxPermapeopleFetchedAt(ctx context.Context) (*time.Time, error) {
	var max *time.Time
	err := c.pool.QueryRow(ctx,
		`SELECT max(fetched_at) FROM flora.source_permapeople`,
	).Scan(&max)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: max permapeople fetched_at")
	}
	return max, nil
}

// CountPermapeople returns the number of raw Permapeople rows.
func (c *Catalog) CountPermapeople(ctx context.Context) (int64, error) {
	return c.count(ctx, "flora.source_permapeople")
}

// CountPermapeopleMatched returns how many raw rows are linked to a canonical
// plant.
func (c *Catalog) CountPermapeopleMatched(ctx context.Context) (int64, error) {
	var n int64
	err := c.pool.QueryRow(ctx,
		`SELECT count(*) FROM flora.source_permapeople WHERE plant_id IS NOT NULL`,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "catalog: count matched permapeople")
	}
	return n, nil
}

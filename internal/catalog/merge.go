package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/db"
	"github.com/verdantlab/flora-cli/internal/model"
)

// plantCols lists flora.plants columns in scan order (struct order).
var plantCols = []string{
	"id", "common_name", "scientific_name", "description", "image_url",
	"plant_type", "sun_requirement", "water_needs", "soil_type", "growth_rate",
	"life_cycle", "days_to_maturity", "days_to_harvest", "spacing_inches",
	"planting_depth_inches", "height_inches", "width_inches", "soil_ph_min",
	"soil_ph_max", "germination_days_min", "germination_days_max",
	"germination_temp_min_f", "germination_temp_max_f", "start_indoors_weeks",
	"start_outdoors_weeks", "sow_indoors", "sow_outdoors", "plant_transplant",
	"plant_cuttings", "plant_division", "propagation_method", "edible",
	"edible_parts", "edible_uses", "medicinal", "medicinal_parts", "utility",
	"warning", "pollination", "drought_resistant", "nitrogen_fixing",
	"hardiness_zones", "common_pests", "common_diseases", "native_to",
	"habitat", "family", "genus", "root_type", "root_depth", "wikipedia_url",
	"pfaf_url", "powo_url", "data_sources", "source", "external_id",
	"is_user_defined", "created_at", "updated_at",
}

// plantWritable guards UpdatePlantFields: only merge-managed columns may be
// written dynamically. Identity and provenance columns (id, source,
// external_id, is_user_defined, created_at) stay out.
var plantWritable = func() map[string]bool {
	excluded := map[string]bool{
		"id": true, "source": true, "external_id": true,
		"is_user_defined": true, "created_at": true, "updated_at": true,
	}
	w := make(map[string]bool, len(plantCols))
	for _, col := range plantCols {
		if !excluded[col] {
			w[col] = true
		}
	}
	return w
}()

func scanPlant(row pgx.Row) (*model.Plant, error) {
	var p model.Plant
	err := row.Scan(
		&p.ID, &p.CommonName, &p.ScientificName, &p.Description, &p.ImageURL,
		&p.PlantType, &p.SunRequirement, &p.WaterNeeds, &p.SoilType,
		&p.GrowthRate, &p.LifeCycle, &p.DaysToMaturity, &p.DaysToHarvest,
		&p.SpacingInches, &p.PlantingDepthInches, &p.HeightInches,
		&p.WidthInches, &p.SoilPHMin, &p.SoilPHMax, &p.GerminationDaysMin,
		&p.GerminationDaysMax, &p.GerminationTempMinF, &p.GerminationTempMaxF,
		&p.StartIndoorsWeeks, &p.StartOutdoorsWeeks, &p.SowIndoors,
		&p.SowOutdoors, &p.PlantTransplant, &p.PlantCuttings, &p.PlantDivision,
		&p.PropagationMethod, &p.Edible, &p.EdibleParts, &p.EdibleUses,
		&p.Medicinal, &p.MedicinalParts, &p.Utility, &p.Warning,
		&p.Pollination, &p.DroughtResistant, &p.NitrogenFixing,
		&p.HardinessZones, &p.CommonPests, &p.CommonDiseases, &p.NativeTo,
		&p.Habitat, &p.Family, &p.Genus, &p.RootType, &p.RootDepth,
		&p.WikipediaURL, &p.PfafURL, &p.PowoURL, &p.DataSources, &p.Source,
		&p.ExternalID, &p.IsUserDefined, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MergeBatch loads one batch of canonical plants ordered by id, each joined
// with its linked source records. Three queries per batch: the plant page,
// then one ANY(ids) query per source table. When a plant has several rows in
// one source table the lowest-id row wins.
func (c *Catalog) MergeBatch(ctx context.Context, limit, offset int) ([]model.PlantWithSources, error) {
	sql := fmt.Sprintf(
		"SELECT %s FROM flora.plants ORDER BY id LIMIT $1 OFFSET $2",
		strings.Join(plantCols, ", "),
	)
	rows, err := c.pool.Query(ctx, sql, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: query merge batch")
	}
	defer rows.Close()

	var batch []model.PlantWithSources
	index := make(map[int64]int)
	var ids []int64
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, eris.Wrap(err, "catalog: scan merge batch plant")
		}
		index[p.ID] = len(batch)
		ids = append(ids, p.ID)
		batch = append(batch, model.PlantWithSources{Plant: *p})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "catalog: iterate merge batch")
	}
	if len(batch) == 0 {
		return nil, nil
	}

	if err := c.attachPerenual(ctx, ids, index, batch); err != nil {
		return nil, err
	}
	if err := c.attachPermapeople(ctx, ids, index, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func (c *Catalog) attachPerenual(ctx context.Context, ids []int64, index map[int64]int, batch []model.PlantWithSources) error {
	rows, err := c.pool.Query(ctx,
		`SELECT id, perenual_id, plant_id, common_name, scientific_name, image_url, fetched_at
		 FROM flora.source_perenual WHERE plant_id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return eris.Wrap(err, "catalog: query batch perenual rows")
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.PerenualRecord
		err := rows.Scan(
			&rec.ID, &rec.PerenualID, &rec.PlantID, &rec.CommonName,
			&rec.ScientificName, &rec.ImageURL, &rec.FetchedAt,
		)
		if err != nil {
			return eris.Wrap(err, "catalog: scan batch perenual row")
		}
		if rec.PlantID == nil {
			continue
		}
		if i, ok := index[*rec.PlantID]; ok && batch[i].Perenual == nil {
			batch[i].Perenual = &rec
		}
	}
	return eris.Wrap(rows.Err(), "catalog: iterate batch perenual rows")
}

func (c *Catalog) attachPermapeople(ctx context.Context, ids []int64, index map[int64]int, batch []model.PlantWithSources) error {
	sql := fmt.Sprintf(
		`SELECT id, permapeople_id, plant_id, scientific_name, common_name, description, image_url, slug, version, %s, fetched_at
		 FROM flora.source_permapeople WHERE plant_id = ANY($1) ORDER BY id`,
		strings.Join(permapeopleDataCols, ", "),
	)
	rows, err := c.pool.Query(ctx, sql, ids)
	if err != nil {
		return eris.Wrap(err, "catalog: query batch permapeople rows")
	}
	defer rows.Close()

	for rows.Next() {
		var rec model.PermapeopleRecord
		dest := []any{
			&rec.ID, &rec.PermapeopleID, &rec.PlantID, &rec.ScientificName,
			&rec.CommonName, &rec.Description, &rec.ImageURL, &rec.Slug, &rec.Version,
		}
		for _, col := range permapeopleDataCols {
			dest = append(dest, rec.Field(col))
		}
		dest = append(dest, &rec.FetchedAt)
		if err := rows.Scan(dest...); err != nil {
			return eris.Wrap(err, "catalog: scan batch permapeople row")
		}
		if rec.PlantID == nil {
			continue
		}
		if i, ok := index[*rec.PlantID]; ok && batch[i].Permapeople == nil {
			batch[i].Permapeople = &rec
		}
	}
	return eris.Wrap(rows.Err(), "catalog: iterate batch permapeople rows")
}

// UpdatePlantFields writes the given column/value pairs to one canonical
// plant and refreshes updated_at. Columns outside the merge-writable set are
// rejected, which keeps the dynamically built SQL closed over known
// identifiers.
func (c *Catalog) UpdatePlantFields(ctx context.Context, q db.Querier, id int64, cols []string, vals []any) error {
	if len(cols) == 0 {
		return nil
	}
	if len(cols) != len(vals) {
		return eris.Errorf("catalog: update plant %d: %d columns, %d values", id, len(cols), len(vals))
	}
	set := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		if !plantWritable[col] {
			return eris.Errorf("catalog: column %q is not merge-writable", col)
		}
		args = append(args, vals[i])
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	set = append(set, "updated_at = now()")
	args = append(args, id)
	sql := fmt.Sprintf(
		"UPDATE flora.plants SET %s WHERE id = $%d",
		strings.Join(set, ", "), len(args),
	)
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return eris.Wrapf(err, "catalog: update plant %d", id)
	}
	return nil
}

package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/model"
	"github.com/verdantlab/flora-cli/internal/store"
	"github.com/verdantlab/flora-cli/pkg/permapeople"
)

// keyMap binds upstream data[] keys to source table columns. Keys absent
// here are ignored at ingest time; the raw page archive still holds them.
var keyMap = map[string]string{
	"Water requirement":              "water_requirement",
	"Light requirement":              "light_requirement",
	"USDA Hardiness zone":            "hardiness_zone",
	"Growth":                         "growth",
	"Soil type":                      "soil_type",
	"Soil pH":                        "soil_ph",
	"Layer":                          "layer",
	"Edible":                         "edible",
	"Edible parts":                   "edible_parts",
	"Edible uses":                    "edible_uses",
	"Family":                         "family",
	"Genus":                          "genus",
	"Height":                         "height",
	"Width":                          "width",
	"Spacing":                        "spacing",
	"Life cycle":                     "life_cycle",
	"Days to harvest":                "days_to_harvest",
	"Days to maturity":               "days_to_maturity",
	"Propagation method":             "propagation_method",
	"Propagation - Cuttings":         "propagation_cuttings",
	"Propagation - Direct sowing":    "propagation_direct_sowing",
	"Propagation - Transplanting":    "propagation_transplanting",
	"Germination time":               "germination_time",
	"Germination temperature":        "germination_temperature",
	"When to sow (outdoors)":         "sow_outdoors",
	"When to sow (indoors)":          "sow_indoors",
	"When to start indoors (weeks)":  "start_indoors_weeks",
	"When to start outdoors (weeks)": "start_outdoors_weeks",
	"When to plant (transplant)":     "plant_transplant",
	"When to plant (cuttings)":       "plant_cuttings",
	"When to plant (division)":       "plant_division",
	"Seed planting depth":            "seed_planting_depth",
	"Seed viability":                 "seed_viability",
	"1000 Seed Weight (g)":           "seed_weight_per_1000_g",
	"Nitrogen Fixing":                "nitrogen_fixing",
	"Nitrogen Usage":                 "nitrogen_usage",
	"Drought resistant":              "drought_resistant",
	"Native to":                      "native_to",
	"Introduced into":                "introduced_into",
	"Habitat":                        "habitat",
	"Root type":                      "root_type",
	"Root depth":                     "root_depth",
	"Leaves":                         "leaves",
	"Pests":                          "pests",
	"Diseases":                       "diseases",
	"Pollination":                    "pollination",
	"Medicinal":                      "medicinal",
	"Medicinal parts":                "medicinal_parts",
	"Utility":                        "utility",
	"Warning":                        "warning",
	"Alternate name":                 "alternate_name",
	"Wikipedia":                      "wikipedia_url",
	"Plants For A Future":            "pfaf_url",
	"Plants of the World Online":     "powo_url",
}

// coverageFields drives the report's field coverage block, in display order.
var coverageFields = []struct {
	Label string
	Col   string
}{
	{"Water requirement", "water_requirement"},
	{"Light requirement", "light_requirement"},
	{"Hardiness zone", "hardiness_zone"},
	{"Soil type", "soil_type"},
	{"Edible", "edible"},
	{"Height", "height"},
	{"Life cycle", "life_cycle"},
	{"Medicinal", "medicinal"},
	{"Native to", "native_to"},
	{"Soil pH", "soil_ph"},
	{"Growth", "growth"},
	{"Family", "family"},
}

// parsedField is one mapped data[] value, in first-occurrence order so
// change lines stay deterministic.
type parsedField struct {
	col   string
	value string
}

// parseData flattens the upstream key/value block through keyMap. Unmapped
// keys and blank values are dropped; a repeated key keeps its first
// position with the last value.
func parseData(entries []permapeople.DataEntry) []parsedField {
	var fields []parsedField
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		col, ok := keyMap[e.Key]
		if !ok {
			continue
		}
		v := strings.TrimSpace(e.Value)
		if v == "" {
			continue
		}
		if i, seen := index[col]; seen {
			fields[i].value = v
			continue
		}
		index[col] = len(fields)
		fields = append(fields, parsedField{col: col, value: v})
	}
	return fields
}

// Permapeople harvests the Permapeople catalog in two passes: a full
// cursor-paged discovery when the source table is empty (or forced), then
// watermark-driven update detection against rows already held.
type Permapeople struct {
	catalog *catalog.Catalog
	ledger  *ledger.Ledger
	local   *store.Local
	client  permapeople.Client
	full    bool
}

// NewPermapeople wires the Permapeople source. full forces the discovery
// pass even when the source table is already populated.
func NewPermapeople(cat *catalog.Catalog, led *ledger.Ledger, local *store.Local, client permapeople.Client, full bool) *Permapeople {
	return &Permapeople{catalog: cat, ledger: led, local: local, client: client, full: full}
}

func (s *Permapeople) Name() string { return model.JobPermapeople }

// Resume reuses the committed cursor of an unfinished run so a crashed
// discovery pass picks up where it stopped.
func (s *Permapeople) Resume(last *model.Run) (ledger.BeginOpts, bool) {
	if last == nil || last.Status == model.RunStatusCompleted {
		return ledger.BeginOpts{}, true
	}
	return ledger.BeginOpts{Cursor: last.Cursor}, true
}

// ppStats tracks counters the ledger does not carry: plant rows created
// versus matched, and the human-readable change log for the report.
type ppStats struct {
	newPlants int
	matched   int
	changes   []string
}

// Harvest runs discovery (when needed) and update detection, then builds
// the fetch report. Upstream list errors end the active pass but never the
// run; only storage-level failures abort.
func (s *Permapeople) Harvest(ctx context.Context, run *model.Run) (*Result, error) {
	log := zap.L().With(
		zap.String("component", "harvest.permapeople"),
		zap.String("run_id", run.ID),
	)

	el := &errorLog{}
	st := &ppStats{}

	existing, err := s.catalog.CountPermapeople(ctx)
	if err != nil {
		return nil, err
	}
	if s.full || existing == 0 {
		if err := s.discover(ctx, run, st, el, log); err != nil {
			return nil, err
		}
	} else {
		log.Info("discovery pass skipped", zap.Int64("species_loaded", existing))
	}

	watermark, err := s.catalog.MaxPermapeopleFetchedAt(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case watermark == nil:
		log.Info("update pass skipped, no watermark")
	case run.NewRecords > 0 && run.Skipped == 0:
		log.Info("update pass skipped after initial load")
	default:
		if err := s.detectUpdates(ctx, run, *watermark, st, el, log); err != nil {
			return nil, err
		}
	}

	run.ErrorDetail = el.detail()
	report, err := s.report(ctx, run, st)
	if err != nil {
		return nil, err
	}
	return &Result{Status: StatusCompleted, Report: report}, nil
}

// discover walks the whole catalog by last-ID cursor, inserting every
// species this table has never seen.
func (s *Permapeople) discover(ctx context.Context, run *model.Run, st *ppStats, el *errorLog, log *zap.Logger) error {
	lastID := int64(0)
	if run.Cursor != nil {
		lastID = *run.Cursor
	}
	if lastID > 0 {
		log.Info("resuming discovery", zap.Int64("cursor", lastID))
	}

	for {
		pp, err := s.client.ListPlants(ctx, permapeople.ListOpts{LastID: lastID})
		if err != nil {
			run.Errors++
			log.Error("plant list fetch failed, ending discovery", zap.Error(err))
			return nil
		}
		if len(pp.Plants) == 0 {
			log.Info("discovery complete", zap.Int("pages", run.CurrentPage))
			return nil
		}

		page := run.CurrentPage + 1
		s.archivePage(ctx, log, page, lastID, pp)
		if err := s.ingestPage(ctx, run, page, pp.Plants, &lastID, st, el, log); err != nil {
			return err
		}
	}
}

// archivePage stores the raw discovery page with its starting cursor, best
// effort.
func (s *Permapeople) archivePage(ctx context.Context, log *zap.Logger, page int, cursor int64, pp *permapeople.PlantPage) {
	if s.local == nil {
		return
	}
	payload, err := json.Marshal(pp)
	if err == nil {
		err = s.local.SavePage(ctx, model.JobPermapeople, page, cursor, payload)
	}
	if err != nil {
		log.Warn("could not archive page", zap.Int("page", page), zap.Error(err))
	}
}

// ingestPage commits one discovery page: new source rows, their stub or
// matched plants, and the cursor checkpoint, with per-plant savepoints.
func (s *Permapeople) ingestPage(ctx context.Context, run *model.Run, page int, plants []permapeople.Plant, lastID *int64, st *ppStats, el *errorLog, log *zap.Logger) error {
	tx, err := s.catalog.Pool().Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "harvest: begin page %d", page)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i := range plants {
		p := &plants[i]
		if p.ID == 0 {
			continue
		}

		rec, err := s.catalog.GetPermapeople(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if rec != nil {
			run.Skipped++
			*lastID = p.ID
			continue
		}

		if err := s.insertSpecies(ctx, tx, p, st, run); err != nil {
			el.add(run, fmt.Sprintf("Plant %d (%s): %v", p.ID, plantName(p), err))
			log.Warn("plant rejected", zap.Int64("permapeople_id", p.ID), zap.Error(err))
		}
		*lastID = p.ID
	}

	cur := *lastID
	run.CurrentPage = page
	run.Cursor = &cur
	if err := s.ledger.Checkpoint(ctx, tx, run); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "harvest: commit page %d", page)
	}
	log.Info("discovery page committed",
		zap.Int("page", page),
		zap.Int("new", run.NewRecords),
		zap.Int("skipped", run.Skipped),
		zap.Int("errors", run.Errors),
	)
	return nil
}

// insertSpecies writes one new species inside a savepoint: match or stub
// the canonical plant, then insert the flattened source row.
func (s *Permapeople) insertSpecies(ctx context.Context, tx pgx.Tx, p *permapeople.Plant, st *ppStats, run *model.Run) (err error) {
	sub, err := tx.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "harvest: begin savepoint")
	}
	defer func() {
		if err != nil {
			if rbErr := sub.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				zap.L().Error("savepoint rollback failed", zap.Error(rbErr))
			}
		}
	}()

	common := p.Name
	if common == "" {
		common = "Unknown"
	}
	sci := nilIfEmpty(p.ScientificName)

	var ref *catalog.Ref
	if sci != nil {
		ref, err = s.catalog.FindByName(ctx, sub, *sci, common)
		if err != nil {
			return err
		}
	}

	var plantID int64
	if ref != nil {
		plantID = ref.ID
		st.matched++
	} else {
		plantID, err = s.catalog.CreateStub(ctx, sub, &model.Plant{
			CommonName:     common,
			ScientificName: sci,
			ImageURL:       nilIfEmpty(p.ImageURL()),
			Source:         model.SourcePermapeople,
			ExternalID:     strPtr(strconv.FormatInt(p.ID, 10)),
			DataSources:    []string{string(model.SourcePermapeople)},
		})
		if err != nil {
			return err
		}
		st.newPlants++
	}

	if err = s.catalog.InsertPermapeople(ctx, sub, s.buildRecord(p, plantID)); err != nil {
		return err
	}
	if err = sub.Commit(ctx); err != nil {
		return err
	}

	run.NewRecords++
	name := common
	if sci != nil {
		name = *sci
	}
	st.changes = append(st.changes, fmt.Sprintf("Added: %s (%s)", name, common))
	return nil
}

// buildRecord flattens one upstream plant into a source row.
func (s *Permapeople) buildRecord(p *permapeople.Plant, plantID int64) *model.PermapeopleRecord {
	common := p.Name
	if common == "" {
		common = "Unknown"
	}
	version := p.Version
	rec := &model.PermapeopleRecord{
		PermapeopleID:  p.ID,
		PlantID:        &plantID,
		CommonName:     &common,
		ScientificName: nilIfEmpty(p.ScientificName),
		Description:    nilIfEmpty(p.Description),
		ImageURL:       nilIfEmpty(p.ImageURL()),
		Slug:           nilIfEmpty(p.Slug),
		Version:        &version,
	}
	for _, f := range parseData(p.Data) {
		if dst := rec.Field(f.col); dst != nil {
			v := f.value
			*dst = &v
		}
	}
	return rec
}

// detectUpdates walks everything upstream changed since the watermark and
// classifies each plant: unseen rows insert, version bumps overwrite, equal
// versions fill gaps only.
func (s *Permapeople) detectUpdates(ctx context.Context, run *model.Run, since time.Time, st *ppStats, el *errorLog, log *zap.Logger) error {
	log.Info("detecting updates", zap.Time("since", since))

	lastID := int64(0)
	for {
		pp, err := s.client.ListPlants(ctx, permapeople.ListOpts{
			LastID:       lastID,
			UpdatedSince: since.UTC().Format(time.RFC3339),
		})
		if err != nil {
			run.Errors++
			log.Error("update list fetch failed, ending pass", zap.Error(err))
			return nil
		}
		if len(pp.Plants) == 0 {
			log.Info("update detection complete")
			return nil
		}

		if err := s.updatePage(ctx, run, pp.Plants, &lastID, st, el, log); err != nil {
			return err
		}
	}
}

// updatePage commits one update-detection page under the same transaction
// and savepoint rules as discovery.
func (s *Permapeople) updatePage(ctx context.Context, run *model.Run, plants []permapeople.Plant, lastID *int64, st *ppStats, el *errorLog, log *zap.Logger) error {
	page := run.CurrentPage + 1
	tx, err := s.catalog.Pool().Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "harvest: begin page %d", page)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i := range plants {
		p := &plants[i]
		if p.ID == 0 {
			continue
		}

		rec, err := s.catalog.GetPermapeople(ctx, tx, p.ID)
		if err != nil {
			return err
		}

		var itemErr error
		if rec == nil {
			itemErr = s.insertSpecies(ctx, tx, p, st, run)
		} else {
			itemErr = s.reconcile(ctx, tx, p, rec, st, run)
		}
		if itemErr != nil {
			el.add(run, fmt.Sprintf("Plant %d (%s): %v", p.ID, plantName(p), itemErr))
			log.Warn("plant rejected", zap.Int64("permapeople_id", p.ID), zap.Error(itemErr))
		}
		*lastID = p.ID
	}

	cur := *lastID
	run.CurrentPage = page
	run.Cursor = &cur
	if err := s.ledger.Checkpoint(ctx, tx, run); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "harvest: commit page %d", page)
	}
	log.Info("update page committed",
		zap.Int("page", page),
		zap.Int("updated", run.Updated),
		zap.Int("gap_filled", run.GapFilled),
		zap.Int("unchanged", run.Unchanged),
	)
	return nil
}

// reconcile applies one upstream record to its stored row. A higher version
// overwrites every mapped column; the same version only fills gaps.
func (s *Permapeople) reconcile(ctx context.Context, tx pgx.Tx, p *permapeople.Plant, rec *model.PermapeopleRecord, st *ppStats, run *model.Run) error {
	parsed := parseData(p.Data)
	if rec.Version != nil && p.Version > *rec.Version {
		return s.overwrite(ctx, tx, p, rec, parsed, st, run)
	}
	return s.gapFill(ctx, tx, p, rec, parsed, st, run)
}

// overwrite replaces the stored row's columns with the new version's
// values, leaving columns the upstream left blank untouched.
func (s *Permapeople) overwrite(ctx context.Context, tx pgx.Tx, p *permapeople.Plant, rec *model.PermapeopleRecord, parsed []parsedField, st *ppStats, run *model.Run) (err error) {
	sub, err := tx.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "harvest: begin savepoint")
	}
	defer func() {
		if err != nil {
			if rbErr := sub.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				zap.L().Error("savepoint rollback failed", zap.Error(rbErr))
			}
		}
	}()

	oldVersion := 0
	if rec.Version != nil {
		oldVersion = *rec.Version
	}

	var cols []string
	set := func(col, val string) {
		if strings.TrimSpace(val) == "" {
			return
		}
		v := val
		*rec.Field(col) = &v
		cols = append(cols, col)
	}
	set("common_name", p.Name)
	set("scientific_name", p.ScientificName)
	set("description", p.Description)
	set("image_url", p.ImageURL())
	set("slug", p.Slug)
	for _, f := range parsed {
		set(f.col, f.value)
	}
	version := p.Version
	rec.Version = &version

	if err = s.catalog.UpdatePermapeople(ctx, sub, rec, cols); err != nil {
		return err
	}
	if err = sub.Commit(ctx); err != nil {
		return err
	}

	run.Updated++
	st.changes = append(st.changes, fmt.Sprintf("Updated: %s v%d→%d", recName(rec), oldVersion, version))
	return nil
}

// gapFill writes only columns the stored row is missing; rows with nothing
// to fill count as unchanged and are not touched at all.
func (s *Permapeople) gapFill(ctx context.Context, tx pgx.Tx, p *permapeople.Plant, rec *model.PermapeopleRecord, parsed []parsedField, st *ppStats, run *model.Run) (err error) {
	var filled []string
	fill := func(col, val string) {
		if strings.TrimSpace(val) == "" {
			return
		}
		dst := rec.Field(col)
		if dst == nil || *dst != nil {
			return
		}
		v := val
		*dst = &v
		filled = append(filled, col)
	}
	for _, f := range parsed {
		fill(f.col, f.value)
	}
	fill("image_url", p.ImageURL())
	fill("description", p.Description)

	if len(filled) == 0 {
		run.Unchanged++
		return nil
	}

	sub, err := tx.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "harvest: begin savepoint")
	}
	defer func() {
		if err != nil {
			if rbErr := sub.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				zap.L().Error("savepoint rollback failed", zap.Error(rbErr))
			}
		}
	}()

	if err = s.catalog.UpdatePermapeople(ctx, sub, rec, filled); err != nil {
		return err
	}
	if err = sub.Commit(ctx); err != nil {
		return err
	}

	run.GapFilled++
	st.changes = append(st.changes, fmt.Sprintf("Gap-filled: %s (%s)", recName(rec), strings.Join(filled, ", ")))
	return nil
}

func (s *Permapeople) report(ctx context.Context, run *model.Run, st *ppStats) (Report, error) {
	total, err := s.catalog.CountPermapeople(ctx)
	if err != nil {
		return nil, err
	}
	matched, err := s.catalog.CountPermapeopleMatched(ctx)
	if err != nil {
		return nil, err
	}
	plants, err := s.catalog.CountPlants(ctx)
	if err != nil {
		return nil, err
	}

	cols := make([]string, len(coverageFields))
	for i, f := range coverageFields {
		cols[i] = f.Col
	}
	counts, err := s.catalog.PermapeopleFieldCoverage(ctx, cols)
	if err != nil {
		return nil, err
	}
	coverage := make([]CoverageCount, len(coverageFields))
	for i, f := range coverageFields {
		coverage[i] = CoverageCount{Label: f.Label, Count: counts[f.Col]}
	}

	return &FetchReport{
		SourceTitle:      "Permapeople",
		Run:              run,
		Changes:          st.changes,
		TotalCount:       total,
		MatchedCount:     matched,
		PlantsTotal:      plants,
		NewPlantsCreated: st.newPlants,
		MatchedExisting:  st.matched,
		Coverage:         coverage,
	}, nil
}

func plantName(p *permapeople.Plant) string {
	if p.ScientificName != "" {
		return p.ScientificName
	}
	if p.Name != "" {
		return p.Name
	}
	return "unknown"
}

func recName(rec *model.PermapeopleRecord) string {
	if rec.ScientificName != nil {
		return *rec.ScientificName
	}
	if rec.CommonName != nil {
		return *rec.CommonName
	}
	return "unknown"
}

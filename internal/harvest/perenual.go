package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/config"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/model"
	"github.com/verdantlab/flora-cli/internal/resilience"
	"github.com/verdantlab/flora-cli/internal/store"
	"github.com/verdantlab/flora-cli/pkg/perenual"
)

const defaultPerenualBudget = 95

var errArchiveExhausted = eris.New("harvest: page archive exhausted")

// Perenual harvests the Perenual species catalog: one list page per request
// under a fixed daily budget, committing page by page so the crawl spreads
// across days. Care fields are absent on the free list tier; only identity
// columns land here and the richer sources win at merge time.
type Perenual struct {
	catalog    *catalog.Catalog
	ledger     *ledger.Ledger
	local      *store.Local
	client     perenual.Client
	budget     int
	cronHour   int
	retryHours []int
	replay     bool
}

// NewPerenual wires the Perenual source. local may be nil to disable the
// page archive; replay feeds the loop from the archive instead of the API.
func NewPerenual(cat *catalog.Catalog, led *ledger.Ledger, local *store.Local, client perenual.Client, cfg config.HarvestConfig, replay bool) *Perenual {
	budget := cfg.PerenualBudget
	if budget <= 0 {
		budget = defaultPerenualBudget
	}
	return &Perenual{
		catalog:    cat,
		ledger:     led,
		local:      local,
		client:     client,
		budget:     budget,
		cronHour:   cfg.CronHourUTC,
		retryHours: cfg.RetryHoursUTC,
		replay:     replay,
	}
}

func (s *Perenual) Name() string { return model.JobPerenual }

// Resume skips once a prior run completed the catalog; otherwise the next
// run picks up at the page after the last committed one, whatever state
// that run ended in.
func (s *Perenual) Resume(last *model.Run) (ledger.BeginOpts, bool) {
	if last == nil {
		return ledger.BeginOpts{}, true
	}
	if last.Status == model.RunStatusCompleted {
		return ledger.BeginOpts{}, false
	}
	return ledger.BeginOpts{CurrentPage: last.CurrentPage}, true
}

// Harvest pages through the species list until the catalog ends or the
// budget does. Every page commits atomically with its run checkpoint, so a
// crash or budget stop never re-ingests committed work.
func (s *Perenual) Harvest(ctx context.Context, run *model.Run) (*Result, error) {
	log := zap.L().With(
		zap.String("component", "harvest.perenual"),
		zap.String("run_id", run.ID),
	)

	var archive map[int]store.Page
	if s.replay {
		if s.local == nil {
			return nil, eris.New("harvest: replay requires the local page archive")
		}
		pages, err := s.local.Pages(ctx, model.JobPerenual)
		if err != nil {
			return nil, err
		}
		archive = make(map[int]store.Page, len(pages))
		for _, p := range pages {
			archive[p.Page] = p
		}
		log.Info("replaying archived pages", zap.Int("available", len(archive)))
	}

	el := &errorLog{}
	page := run.CurrentPage + 1
	complete := false
	detail := ""

loop:
	for {
		if !s.replay && run.RequestsUsed >= s.budget {
			log.Info("daily budget exhausted",
				zap.Int("next_page", page),
				zap.Int("requests_used", run.RequestsUsed),
			)
			detail = fmt.Sprintf("daily budget reached (%d requests)", s.budget)
			break
		}

		sp, err := s.fetchPage(ctx, archive, page)
		switch {
		case err == nil:
		case errors.Is(err, errArchiveExhausted):
			log.Info("page archive exhausted", zap.Int("page", page))
			detail = fmt.Sprintf("page archive exhausted at page %d", page)
			break loop
		case resilience.IsRateLimit(err):
			log.Warn("rate limited on list fetch", zap.Int("page", page), zap.Error(err))
			run.ErrorDetail = el.detail()
			return s.rateLimited(ctx, run, page, err)
		default:
			return nil, err
		}

		if !s.replay {
			run.RequestsUsed++
			s.archivePage(ctx, log, page, sp)
		}

		if run.TotalPages == nil && sp.LastPage > 0 {
			tp := sp.LastPage
			run.TotalPages = &tp
			log.Info("catalog size discovered", zap.Int("total_pages", tp))
		}

		if len(sp.Data) == 0 {
			log.Info("empty page, catalog complete", zap.Int("page", page))
			complete = true
			break
		}

		if err := s.ingestPage(ctx, run, page, sp.Data, el, log); err != nil {
			return nil, err
		}

		lastPage := 1
		if run.TotalPages != nil {
			lastPage = *run.TotalPages
		}
		if page >= lastPage {
			log.Info("reached last page", zap.Int("last_page", lastPage))
			complete = true
			break
		}
		page++
	}

	run.ErrorDetail = el.detail()

	if complete {
		report, err := s.completeReport(ctx, run)
		if err != nil {
			return nil, err
		}
		return &Result{Status: StatusCompleted, Report: report}, nil
	}
	if detail == "" {
		detail = fmt.Sprintf("daily budget reached (%d requests)", s.budget)
	}
	return s.budgetResult(ctx, run, detail)
}

// fetchPage fetches one species page live, or decodes it from the archive
// in replay mode.
func (s *Perenual) fetchPage(ctx context.Context, archive map[int]store.Page, page int) (*perenual.SpeciesPage, error) {
	if !s.replay {
		return s.client.SpeciesList(ctx, page)
	}
	arch, ok := archive[page]
	if !ok {
		return nil, errArchiveExhausted
	}
	var sp perenual.SpeciesPage
	if err := json.Unmarshal(arch.Payload, &sp); err != nil {
		return nil, eris.Wrapf(err, "harvest: decode archived page %d", page)
	}
	return &sp, nil
}

// archivePage stores the raw page for later replay. Archiving is best
// effort: a failed write warns and the harvest keeps going.
func (s *Perenual) archivePage(ctx context.Context, log *zap.Logger, page int, sp *perenual.SpeciesPage) {
	if s.local == nil {
		return
	}
	payload, err := json.Marshal(sp)
	if err == nil {
		err = s.local.SavePage(ctx, model.JobPerenual, page, 0, payload)
	}
	if err != nil {
		log.Warn("could not archive page", zap.Int("page", page), zap.Error(err))
	}
}

// ingestPage writes one page's species inside a single transaction: stub
// plants, source rows, and the run checkpoint commit together. Each species
// gets its own savepoint so one bad record costs only itself.
func (s *Perenual) ingestPage(ctx context.Context, run *model.Run, page int, species []perenual.Species, el *errorLog, log *zap.Logger) error {
	tx, err := s.catalog.Pool().Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "harvest: begin page %d", page)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	pageNew := 0
	for i := range species {
		sp := &species[i]
		if sp.ID == 0 {
			continue
		}
		inserted, err := s.ingestSpecies(ctx, tx, sp)
		if err != nil {
			el.add(run, fmt.Sprintf("Species %d (%s): %v", sp.ID, speciesName(sp), err))
			log.Warn("species rejected", zap.Int64("perenual_id", sp.ID), zap.Error(err))
			continue
		}
		if inserted {
			pageNew++
		}
	}

	run.CurrentPage = page
	run.NewRecords += pageNew
	if err := s.ledger.Checkpoint(ctx, tx, run); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "harvest: commit page %d", page)
	}
	log.Info("page committed",
		zap.Int("page", page),
		zap.Int("new", pageNew),
		zap.Int("total", run.NewRecords),
		zap.Int("requests_used", run.RequestsUsed),
	)
	return nil
}

// ingestSpecies writes one species inside a savepoint: skip when already
// ingested, otherwise match or stub the canonical plant and insert the
// source row. Reports whether a source row was inserted.
func (s *Perenual) ingestSpecies(ctx context.Context, tx pgx.Tx, sp *perenual.Species) (inserted bool, err error) {
	sub, err := tx.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "harvest: begin savepoint")
	}
	defer func() {
		if err != nil {
			if rbErr := sub.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				zap.L().Error("savepoint rollback failed", zap.Error(rbErr))
			}
		}
	}()

	seen, err := s.catalog.PerenualSeen(ctx, sub, sp.ID)
	if err != nil {
		return false, err
	}
	if seen {
		return false, sub.Commit(ctx)
	}

	common := sp.CommonName
	if common == "" {
		common = "Unknown"
	}
	sci := nilIfEmpty(sp.PrimaryScientificName())
	image := nilIfEmpty(sp.ImageURL())

	var plantID int64
	if sci != nil {
		ref, refErr := s.catalog.FindByScientificName(ctx, sub, *sci)
		if refErr != nil {
			err = refErr
			return false, err
		}
		if ref != nil {
			plantID = ref.ID
		}
	}
	if plantID == 0 {
		plantID, err = s.catalog.CreateStub(ctx, sub, &model.Plant{
			CommonName:     common,
			ScientificName: sci,
			ImageURL:       image,
			Source:         model.SourcePerenual,
			ExternalID:     strPtr(strconv.FormatInt(sp.ID, 10)),
			DataSources:    []string{string(model.SourcePerenual)},
		})
		if err != nil {
			return false, err
		}
	}

	rec := &model.PerenualRecord{
		PerenualID:     sp.ID,
		PlantID:        &plantID,
		CommonName:     &common,
		ScientificName: sci,
		ImageURL:       image,
	}
	if err = s.catalog.InsertPerenual(ctx, sub, rec); err != nil {
		return false, err
	}
	return true, sub.Commit(ctx)
}

// rateLimited classifies a 429: zero requests used means the daily quota
// never reset and the run made no progress at all; otherwise the budget
// effectively ran out mid-catalog and tomorrow's run resumes.
func (s *Perenual) rateLimited(ctx context.Context, run *model.Run, page int, err error) (*Result, error) {
	if run.RequestsUsed > 0 {
		return s.budgetResult(ctx, run, fmt.Sprintf("rate limited on page %d: %v", page, err))
	}
	total, cErr := s.catalog.CountPerenual(ctx)
	if cErr != nil {
		return nil, cErr
	}
	return &Result{
		Status: StatusQuotaNotReset,
		Detail: fmt.Sprintf("quota not reset at %02d:00 UTC (page %d)", s.cronHour, page),
		Report: &perenualQuotaReport{
			run:        run,
			total:      total,
			cronHour:   s.cronHour,
			retryHours: s.retryHours,
			nextCron:   nextDailyCron(time.Now(), s.cronHour),
		},
	}, nil
}

func (s *Perenual) budgetResult(ctx context.Context, run *model.Run, detail string) (*Result, error) {
	total, err := s.catalog.CountPerenual(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{
		Status: StatusBudgetReached,
		Detail: detail,
		Report: &perenualDailyReport{
			run:      run,
			total:    total,
			budget:   s.budget,
			nextCron: nextDailyCron(time.Now(), s.cronHour),
			replay:   s.replay,
		},
	}, nil
}

func (s *Perenual) completeReport(ctx context.Context, run *model.Run) (Report, error) {
	total, err := s.catalog.CountPerenual(ctx)
	if err != nil {
		return nil, err
	}
	first, err := s.ledger.First(ctx, model.JobPerenual)
	if err != nil {
		return nil, err
	}
	days := 1
	if first != nil {
		days = daysTaken(first.StartedAt, time.Now().UTC())
	}
	return &perenualCompleteReport{run: run, total: total, days: days}, nil
}

// daysTaken counts days from the first run to now, minimum one.
func daysTaken(first, now time.Time) int {
	d := int(now.Sub(first).Hours()/24) + 1
	if d < 1 {
		d = 1
	}
	return d
}

func speciesName(sp *perenual.Species) string {
	if n := sp.PrimaryScientificName(); n != "" {
		return n
	}
	if sp.CommonName != "" {
		return sp.CommonName
	}
	return "unknown"
}

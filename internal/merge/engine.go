package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/model"
	"github.com/verdantlab/flora-cli/internal/normalize"
	"github.com/verdantlab/flora-cli/internal/notify"
)

const (
	// defaultBatchSize is the plants-per-transaction page size.
	defaultBatchSize = 500
	// progressEvery is how many processed plants between progress log lines.
	progressEvery = 2000
	// maxErrorMessages bounds the per-record error summary kept for the run.
	maxErrorMessages = 50
)

// Engine reconciles every canonical plant from its linked source records,
// one ledger-guarded run at a time.
type Engine struct {
	catalog   *catalog.Catalog
	ledger    *ledger.Ledger
	notifier  notify.Notifier
	loc       *time.Location
	batchSize int
}

// NewEngine creates a merge engine. batchSize <= 0 falls back to the default.
func NewEngine(cat *catalog.Catalog, led *ledger.Ledger, notifier notify.Notifier, loc *time.Location, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if loc == nil {
		loc = time.UTC
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Engine{
		catalog:   cat,
		ledger:    led,
		notifier:  notifier,
		loc:       loc,
		batchSize: batchSize,
	}
}

// runStats accumulates the pass counters. A plant is enriched when at least
// one field changed, unchanged when sources exist but nothing differed, and
// skipped when no source row is linked.
type runStats struct {
	enriched     int
	unchanged    int
	skipped      int
	errors       int
	fieldsFilled int
	messages     []string
}

func (s *runStats) addError(msg string) {
	s.errors++
	if len(s.messages) < maxErrorMessages {
		s.messages = append(s.messages, msg)
	}
}

// Run executes one merge pass over the whole catalog. A fresh running row for
// the merge job makes this a no-op; anything else begins a run, merges in
// batches, completes the ledger row, and emails the report. Unexpected
// failures mark the run failed and send an error mail instead.
func (e *Engine) Run(ctx context.Context, triggeredBy string) error {
	log := zap.L().With(zap.String("component", "merge"))

	active, err := e.ledger.Active(ctx, model.JobMerge)
	if err != nil {
		return err
	}
	if active {
		log.Info("merge already running, skipping")
		return nil
	}

	run, err := e.ledger.Begin(ctx, model.JobMerge, triggeredBy, ledger.BeginOpts{})
	if err != nil {
		return err
	}
	log.Info("merge starting",
		zap.String("run_id", run.ID),
		zap.String("triggered_by", triggeredBy),
	)

	report, err := e.merge(ctx, run, log)
	if err != nil {
		log.Error("merge failed", zap.Error(err))
		if failErr := e.ledger.Fail(ctx, run, model.FailReasonError, err.Error()); failErr != nil {
			log.Error("could not mark run failed", zap.Error(failErr))
		}
		e.send(ctx, log, "Flora Merge — Error", fmt.Sprintf(
			"The merge engine encountered an unexpected error.\n\nError: %v\n\nStarted: %s",
			err, notify.FormatTime(run.StartedAt, e.loc),
		))
		return err
	}

	e.send(ctx, log, report.Subject(), report.Body(e.loc))
	return nil
}

// merge is the body of a run: load rules, measure coverage, walk the catalog
// in batches, complete the ledger row, measure coverage again.
func (e *Engine) merge(ctx context.Context, run *model.Run, log *zap.Logger) (*Report, error) {
	rules, err := e.loadRules(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("merge rules loaded", zap.Int("count", len(rules)))

	total, err := e.catalog.CountPlants(ctx)
	if err != nil {
		return nil, err
	}
	before, err := e.catalog.PlantFieldCoverage(ctx, Fields())
	if err != nil {
		return nil, err
	}

	st := &runStats{}
	tracker := normalize.NewTracker()

	offset, processed := 0, 0
	for {
		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "merge: run cancelled")
		default:
		}

		batch, err := e.catalog.MergeBatch(ctx, e.batchSize, offset)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		if err := e.mergeBatch(ctx, batch, rules, st, tracker, log); err != nil {
			return nil, err
		}

		prev := processed
		processed += len(batch)
		if processed/progressEvery != prev/progressEvery {
			log.Info("merge progress",
				zap.Int("processed", processed),
				zap.Int("enriched", st.enriched),
				zap.Int("unchanged", st.unchanged),
				zap.Int("skipped", st.skipped),
				zap.Int("errors", st.errors),
			)
		}
		offset += e.batchSize
	}

	run.NewRecords = st.enriched
	run.Updated = st.fieldsFilled
	run.Unchanged = st.unchanged
	run.Skipped = st.skipped
	run.Errors = st.errors
	if len(st.messages) > 0 {
		detail := strings.Join(st.messages, "\n")
		run.ErrorDetail = &detail
	}
	if err := e.ledger.Complete(ctx, run); err != nil {
		return nil, err
	}

	after, err := e.catalog.PlantFieldCoverage(ctx, Fields())
	if err != nil {
		return nil, err
	}

	log.Info("merge complete",
		zap.Int("enriched", st.enriched),
		zap.Int("fields_filled", st.fieldsFilled),
		zap.Int("unchanged", st.unchanged),
		zap.Int("skipped", st.skipped),
		zap.Int("errors", st.errors),
	)

	return &Report{Run: run, Total: total, Before: before, After: after, Unmapped: tracker}, nil
}

func (e *Engine) loadRules(ctx context.Context) (map[string]*model.Rule, error) {
	list, err := e.catalog.Rules(ctx)
	if err != nil {
		return nil, err
	}
	rules := make(map[string]*model.Rule, len(list))
	for i := range list {
		rules[list[i].FieldName] = &list[i]
	}
	return rules, nil
}

// mergeBatch processes one page of joined rows inside a single transaction.
// Record-level failures are counted and logged; they never abort the batch.
func (e *Engine) mergeBatch(ctx context.Context, batch []model.PlantWithSources, rules map[string]*model.Rule, st *runStats, tracker *normalize.Tracker, log *zap.Logger) error {
	tx, err := e.catalog.Pool().Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "merge: begin batch transaction")
	}
	defer tx.Rollback(ctx)

	for i := range batch {
		row := &batch[i]
		if !row.HasSources() {
			st.skipped++
			continue
		}
		if err := e.mergeRecord(ctx, tx, row, rules, st, tracker); err != nil {
			st.addError(fmt.Sprintf("Plant %d (%s): %v", row.Plant.ID, row.Plant.DisplayName(), err))
			log.Warn("plant merge failed",
				zap.Int64("plant_id", row.Plant.ID),
				zap.Error(err),
			)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "merge: commit batch")
	}
	return nil
}

// mergeRecord resolves and writes one plant. The write runs under a
// savepoint: a rejected statement must not poison the batch transaction for
// the records after it.
func (e *Engine) mergeRecord(ctx context.Context, tx pgx.Tx, row *model.PlantWithSources, rules map[string]*model.Rule, st *runStats, tracker *normalize.Tracker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("merge: panic merging plant %d: %v", row.Plant.ID, r)
		}
	}()

	cols, vals, filled, err := resolveRecord(row, rules, tracker)
	if err != nil {
		return err
	}
	if filled == 0 {
		st.unchanged++
		return nil
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "merge: begin record savepoint")
	}
	if err := e.catalog.UpdatePlantFields(ctx, sp, row.Plant.ID, cols, vals); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return eris.Wrap(err, "merge: release record savepoint")
	}

	st.enriched++
	st.fieldsFilled += filled
	return nil
}

// resolveRecord applies every ruled binding to one joined row, mutating the
// plant in place. It returns the changed column/value pairs, including a
// grown data_sources union, and the number of field writes. Rules without a
// binding are skipped. Rules are walked in field-name order so repeated runs
// resolve identically.
func resolveRecord(row *model.PlantWithSources, rules map[string]*model.Rule, tracker *normalize.Tracker) ([]string, []any, int, error) {
	plant := &row.Plant

	fields := make([]string, 0, len(rules))
	for f := range rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	existing := make(map[string]bool, len(plant.DataSources))
	for _, s := range plant.DataSources {
		existing[s] = true
	}
	used := make(map[string]bool, len(existing)+2)
	for s := range existing {
		used[s] = true
	}

	var cols []string
	var vals []any
	filled := 0

	for _, field := range fields {
		b := bindingIndex[field]
		if b == nil {
			continue
		}
		raw := b.rawValues(row)
		if len(raw) == 0 {
			continue
		}
		candidates := b.normalizeRaw(raw, tracker)
		if len(candidates) == 0 {
			continue
		}

		rule := rules[field]
		resolved, err := applyStrategy(rule.Strategy, candidates, rule.Priority())
		if err != nil {
			return nil, nil, 0, eris.Wrapf(err, "merge: field %s", field)
		}
		if resolved == nil {
			continue
		}

		val, changed, err := b.apply(plant, resolved)
		if err != nil {
			return nil, nil, 0, eris.Wrapf(err, "merge: field %s", field)
		}
		if !changed {
			continue
		}
		cols = append(cols, b.field)
		vals = append(vals, val)
		filled++
		for src := range candidates {
			used[src] = true
		}
	}

	if len(used) != len(existing) {
		sources := make([]string, 0, len(used))
		for s := range used {
			sources = append(sources, s)
		}
		sort.Strings(sources)
		plant.DataSources = sources
		cols = append(cols, "data_sources")
		vals = append(vals, sources)
	}

	return cols, vals, filled, nil
}

// send delivers one notification, logging instead of failing the run.
func (e *Engine) send(ctx context.Context, log *zap.Logger, subject, body string) {
	if err := e.notifier.Send(ctx, subject, body); err != nil {
		log.Warn("merge notification failed", zap.Error(err))
	}
}

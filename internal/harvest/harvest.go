// Package harvest coordinates source ingestion runs: one ledger-guarded
// invocation per source, resumable from the last committed checkpoint, with
// an operator report on every terminal state.
//
// The engine owns the run lifecycle (guards, terminal transitions, report
// dispatch, the quota retry ladder); sources own the paging loop and
// per-record persistence. Upstream calls within an invocation are strictly
// sequential so request budgets stay exact.
package harvest

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/config"
	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/model"
	"github.com/verdantlab/flora-cli/internal/notify"
)

// Status classifies how a harvest ended short of an unexpected error.
type Status int

const (
	// StatusCompleted means the source has nothing left to fetch.
	StatusCompleted Status = iota
	// StatusBudgetReached means the request budget ran out mid-catalog; the
	// next invocation resumes from the last committed page.
	StatusBudgetReached
	// StatusQuotaNotReset means the very first request was refused for
	// quota, so the invocation made no progress at all.
	StatusQuotaNotReset
)

// Result is a finished harvest: its classification, the ledger detail line
// for non-completed outcomes, and the operator report.
type Result struct {
	Status Status
	Detail string
	Report Report
}

// Report renders an operator-facing run summary. Bodies are rendered after
// the terminal ledger write so they can show the finish time.
type Report interface {
	Subject() string
	Body(loc *time.Location) string
}

// Source is one upstream catalog wired into the run ledger.
type Source interface {
	// Name is the ledger job name.
	Name() string
	// Resume derives the new run's starting state from the most recent
	// ledger row, nil when the job has never run. ok=false skips the
	// invocation entirely.
	Resume(last *model.Run) (opts ledger.BeginOpts, ok bool)
	// Harvest ingests until done or out of budget. Per-record failures are
	// counted and isolated; only unexpected errors are returned.
	Harvest(ctx context.Context, run *model.Run) (*Result, error)
}

// Scheduler queues future invocations for the quota retry ladder.
type Scheduler interface {
	HarvestAt(at time.Time, source string, retryCount int) error
}

// Engine drives harvest runs through the ledger and reports the outcome.
type Engine struct {
	ledger     *ledger.Ledger
	notifier   notify.Notifier
	scheduler  Scheduler
	loc        *time.Location
	cronHour   int
	retryHours []int
}

// NewEngine wires a harvest engine. A nil notifier disables reports.
func NewEngine(led *ledger.Ledger, notifier notify.Notifier, loc *time.Location, cfg config.HarvestConfig) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		ledger:     led,
		notifier:   notifier,
		loc:        loc,
		cronHour:   cfg.CronHourUTC,
		retryHours: cfg.RetryHoursUTC,
	}
}

// SetScheduler wires the retry scheduler. Without one, a quota refusal
// reports immediately instead of retrying later in the day.
func (e *Engine) SetScheduler(s Scheduler) { e.scheduler = s }

// Run executes one harvest invocation end to end: skip if a fresh run is
// already live or the catalog is done, begin a ledger row, hand off to the
// source, then land the run in its terminal state and send the report.
func (e *Engine) Run(ctx context.Context, src Source, triggeredBy string, retryCount int) error {
	log := zap.L().With(
		zap.String("component", "harvest"),
		zap.String("source", src.Name()),
	)

	active, err := e.ledger.Active(ctx, src.Name())
	if err != nil {
		return err
	}
	if active {
		log.Info("harvest already running, skipping")
		return nil
	}

	last, err := e.ledger.Last(ctx, src.Name())
	if err != nil {
		return err
	}
	opts, ok := src.Resume(last)
	if !ok {
		log.Info("catalog already complete, skipping")
		return nil
	}
	opts.RetryCount = retryCount

	run, err := e.ledger.Begin(ctx, src.Name(), triggeredBy, opts)
	if err != nil {
		return err
	}
	log.Info("harvest starting",
		zap.String("run_id", run.ID),
		zap.String("triggered_by", triggeredBy),
	)
	if run.CurrentPage > 0 {
		log.Info("resuming", zap.Int("page", run.CurrentPage+1))
	}

	res, err := src.Harvest(ctx, run)
	if err != nil {
		log.Error("harvest failed", zap.Error(err))
		if failErr := e.ledger.Fail(ctx, run, model.FailReasonError, err.Error()); failErr != nil {
			log.Error("could not mark run failed", zap.Error(failErr))
		}
		e.send(ctx, log, errorSubject(src.Name()), errorBody(src.Name(), err, run, e.loc))
		return err
	}

	switch res.Status {
	case StatusCompleted:
		if err := e.ledger.Complete(ctx, run); err != nil {
			return err
		}
		log.Info("harvest complete",
			zap.Int("new_records", run.NewRecords),
			zap.Int("updated", run.Updated),
			zap.Int("gap_filled", run.GapFilled),
			zap.Int("errors", run.Errors),
		)
	case StatusBudgetReached:
		if err := e.ledger.Fail(ctx, run, model.FailReasonBudget, res.Detail); err != nil {
			return err
		}
		log.Info("harvest paused", zap.String("detail", res.Detail))
	case StatusQuotaNotReset:
		if err := e.ledger.Fail(ctx, run, model.FailReasonQuota, res.Detail); err != nil {
			return err
		}
		if e.scheduleRetry(log, src, run) {
			// Report deferred to the final attempt of the ladder.
			return nil
		}
	}

	e.send(ctx, log, res.Report.Subject(), res.Report.Body(e.loc))
	return nil
}

// scheduleRetry queues the next same-day quota retry, reporting true when
// the retry was accepted and the quota report should wait.
func (e *Engine) scheduleRetry(log *zap.Logger, src Source, run *model.Run) bool {
	if e.scheduler == nil || run.RetryCount >= len(e.retryHours) {
		return false
	}
	at := nextUTCHour(time.Now().UTC(), e.retryHours[run.RetryCount])
	if err := e.scheduler.HarvestAt(at, src.Name(), run.RetryCount+1); err != nil {
		log.Error("could not schedule quota retry, reporting now", zap.Error(err))
		return false
	}
	log.Info("quota retry scheduled",
		zap.Int("retry", run.RetryCount+1),
		zap.Int("of", len(e.retryHours)),
		zap.Time("at", at),
	)
	return true
}

func (e *Engine) send(ctx context.Context, log *zap.Logger, subject, body string) {
	if err := e.notifier.Send(ctx, subject, body); err != nil {
		log.Warn("could not send report", zap.String("subject", subject), zap.Error(err))
	}
}

// maxErrorMessages caps the per-record error detail kept on a run.
const maxErrorMessages = 50

// errorLog accumulates per-record failure messages alongside the run's
// error counter, keeping only the first maxErrorMessages lines.
type errorLog struct {
	messages []string
}

func (el *errorLog) add(run *model.Run, msg string) {
	run.Errors++
	if len(el.messages) < maxErrorMessages {
		el.messages = append(el.messages, msg)
	}
}

func (el *errorLog) detail() *string {
	if len(el.messages) == 0 {
		return nil
	}
	d := strings.Join(el.messages, "\n")
	return &d
}

func nilIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func strPtr(s string) *string { return &s }

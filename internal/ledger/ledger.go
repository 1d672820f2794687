// Package ledger records harvest and merge invocations in flora.runs.
// Rows are created in the running state and committed immediately so a crash
// still leaves a visible marker; terminal transitions are guarded SQL updates
// that fire exactly once.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/verdantlab/flora-cli/internal/db"
	"github.com/verdantlab/flora-cli/internal/model"
)

// staleAfter is how long a running row blocks new invocations for the same
// job. Older running rows are presumed crashed; they stay visible in the
// history but no longer block, and their committed checkpoints still anchor
// the next resume.
const staleAfter = 2 * time.Hour

// maxErrorDetail bounds the error text persisted with a failed run.
const maxErrorDetail = 4000

const runColumns = `id, job, status, fail_reason, new_records, updated, gap_filled,
	unchanged, skipped, errors, current_page, total_pages, last_cursor, requests_used,
	retry_count, error_detail, triggered_by, started_at, finished_at`

// Ledger provides read/write access to the flora.runs table.
type Ledger struct {
	pool db.Pool
}

// New creates a Ledger backed by the given connection pool.
func New(pool db.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// BeginOpts seeds the resume state of a new run.
type BeginOpts struct {
	CurrentPage int
	Cursor      *int64
	RetryCount  int
}

// Begin inserts a running row for the job and returns it. The insert commits
// immediately, so later page-transaction rollbacks never lose the marker.
func (l *Ledger) Begin(ctx context.Context, job, triggeredBy string, opts BeginOpts) (*model.Run, error) {
	run := &model.Run{
		ID:          uuid.NewString(),
		Job:         job,
		Status:      model.RunStatusRunning,
		CurrentPage: opts.CurrentPage,
		Cursor:      opts.Cursor,
		RetryCount:  opts.RetryCount,
		TriggeredBy: triggeredBy,
		StartedAt:   time.Now().UTC(),
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO flora.runs (id, job, status, current_page, last_cursor, retry_count, triggered_by, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Job, string(run.Status), run.CurrentPage, run.Cursor,
		run.RetryCount, run.TriggeredBy, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: begin run for %s", job)
	}
	return run, nil
}

// Checkpoint persists the run's counters and pagination state. q may be a
// page transaction, making the checkpoint atomic with the page's rows, or the
// pool for standalone updates. Only running rows accept checkpoints.
func (l *Ledger) Checkpoint(ctx context.Context, q db.Querier, run *model.Run) error {
	_, err := q.Exec(ctx,
		`UPDATE flora.runs
		 SET new_records = $1, updated = $2, gap_filled = $3, unchanged = $4,
		     skipped = $5, errors = $6, current_page = $7, total_pages = $8,
		     last_cursor = $9, requests_used = $10
		 WHERE id = $11 AND status = 'running'`,
		run.NewRecords, run.Updated, run.GapFilled, run.Unchanged,
		run.Skipped, run.Errors, run.CurrentPage, run.TotalPages,
		run.Cursor, run.RequestsUsed, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: checkpoint run %s", run.ID)
	}
	return nil
}

// Complete marks the run completed with its final counters and any
// accumulated per-record error summary. The guarded update refuses to touch
// rows that already reached a terminal state.
func (l *Ledger) Complete(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	tag, err := l.pool.Exec(ctx,
		`UPDATE flora.runs
		 SET status = 'completed', finished_at = $1, new_records = $2, updated = $3,
		     gap_filled = $4, unchanged = $5, skipped = $6, errors = $7,
		     current_page = $8, total_pages = $9, last_cursor = $10, requests_used = $11,
		     error_detail = $12
		 WHERE id = $13 AND status = 'running'`,
		now, run.NewRecords, run.Updated, run.GapFilled, run.Unchanged,
		run.Skipped, run.Errors, run.CurrentPage, run.TotalPages,
		run.Cursor, run.RequestsUsed, run.ErrorDetail, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ledger: run %s is not running, refusing to complete", run.ID)
	}
	run.Status = model.RunStatusCompleted
	run.FinishedAt = &now
	return nil
}

// Fail marks the run failed with a reason and bounded error detail; same
// write-once guard as Complete.
func (l *Ledger) Fail(ctx context.Context, run *model.Run, reason, detail string) error {
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail]
	}
	now := time.Now().UTC()
	tag, err := l.pool.Exec(ctx,
		`UPDATE flora.runs
		 SET status = 'failed', fail_reason = $1, error_detail = $2, finished_at = $3,
		     new_records = $4, updated = $5, gap_filled = $6, unchanged = $7,
		     skipped = $8, errors = $9, current_page = $10, total_pages = $11,
		     last_cursor = $12, requests_used = $13
		 WHERE id = $14 AND status = 'running'`,
		reason, nullIfEmpty(detail), now,
		run.NewRecords, run.Updated, run.GapFilled, run.Unchanged,
		run.Skipped, run.Errors, run.CurrentPage, run.TotalPages,
		run.Cursor, run.RequestsUsed, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: fail run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ledger: run %s is not running, refusing to fail", run.ID)
	}
	run.Status = model.RunStatusFailed
	run.FailReason = &reason
	if detail != "" {
		run.ErrorDetail = &detail
	}
	run.FinishedAt = &now
	return nil
}

// Active reports whether a fresh running row exists for the job. Running rows
// older than the staleness threshold are presumed crashed and do not block.
func (l *Ledger) Active(ctx context.Context, job string) (bool, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	var id string
	err := l.pool.QueryRow(ctx,
		`SELECT id FROM flora.runs
		 WHERE job = $1 AND status = 'running' AND started_at >= $2
		 ORDER BY started_at DESC LIMIT 1`,
		job, cutoff,
	).Scan(&id)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return false, nil
		}
		return false, eris.Wrapf(err, "ledger: active run for %s", job)
	}
	return true, nil
}

// Last returns the most recent run for the job regardless of status, or nil
// when the job has never run. Harvest resume anchors on this row: a stale
// running row still carries its last committed checkpoint.
func (l *Ledger) Last(ctx context.Context, job string) (*model.Run, error) {
	row := l.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM flora.runs WHERE job = $1 ORDER BY started_at DESC LIMIT 1`, runColumns),
		job,
	)
	run, err := scanRun(row)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "ledger: last run for %s", job)
	}
	return run, nil
}

// First returns the oldest run for the job, or nil. Completion reports use it
// to measure how many days a full catalog harvest took.
func (l *Ledger) First(ctx context.Context, job string) (*model.Run, error) {
	row := l.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM flora.runs WHERE job = $1 ORDER BY started_at LIMIT 1`, runColumns),
		job,
	)
	run, err := scanRun(row)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "ledger: first run for %s", job)
	}
	return run, nil
}

// Get returns a run by ID, or nil when it does not exist.
func (l *Ledger) Get(ctx context.Context, id string) (*model.Run, error) {
	row := l.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM flora.runs WHERE id = $1`, runColumns),
		id,
	)
	run, err := scanRun(row)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "ledger: get run %s", id)
	}
	return run, nil
}

// Filter narrows a List call. Zero values mean "any".
type Filter struct {
	Job    string
	Status string
	Limit  int
}

// List returns runs newest-first, optionally filtered by job and status.
func (l *Ledger) List(ctx context.Context, filter Filter) ([]model.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM flora.runs`, runColumns)
	var conds []string
	var args []any

	if filter.Job != "" {
		args = append(args, filter.Job)
		conds = append(conds, fmt.Sprintf("job = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "ledger: scan run row")
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// JobStats aggregates ledger history for one job.
type JobStats struct {
	Job        string     `json:"job"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	Failed     int        `json:"failed"`
	Running    int        `json:"running"`
	NewRecords int64      `json:"new_records"`
	Updated    int64      `json:"updated"`
	LastRun    *time.Time `json:"last_run,omitempty"`
}

// Stats returns per-job aggregates over the whole ledger.
func (l *Ledger) Stats(ctx context.Context) ([]JobStats, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT job,
		        count(*),
		        count(*) FILTER (WHERE status = 'completed'),
		        count(*) FILTER (WHERE status = 'failed'),
		        count(*) FILTER (WHERE status = 'running'),
		        COALESCE(sum(new_records), 0),
		        COALESCE(sum(updated), 0),
		        max(started_at)
		 FROM flora.runs GROUP BY job ORDER BY job`)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: stats")
	}
	defer rows.Close()

	var stats []JobStats
	for rows.Next() {
		var s JobStats
		if err := rows.Scan(&s.Job, &s.Total, &s.Completed, &s.Failed, &s.Running,
			&s.NewRecords, &s.Updated, &s.LastRun); err != nil {
			return nil, eris.Wrap(err, "ledger: scan stats row")
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// row is satisfied by both pgx.Row and pgx.Rows.
type row interface {
	Scan(dest ...any) error
}

func scanRun(r row) (*model.Run, error) {
	var run model.Run
	var status string
	err := r.Scan(
		&run.ID, &run.Job, &status, &run.FailReason, &run.NewRecords,
		&run.Updated, &run.GapFilled, &run.Unchanged, &run.Skipped, &run.Errors,
		&run.CurrentPage, &run.TotalPages, &run.Cursor, &run.RequestsUsed,
		&run.RetryCount, &run.ErrorDetail, &run.TriggeredBy, &run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

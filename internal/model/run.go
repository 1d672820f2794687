package model

import "time"

// Job names recorded in the run ledger.
const (
	JobPerenual    = "perenual"
	JobPermapeople = "permapeople"
	JobMerge       = "merge"
)

// RunStatus is the lifecycle state of a ledger row. Terminal statuses are
// written exactly once.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Fail reasons stored alongside a failed status.
const (
	FailReasonQuota  = "quota"  // upstream quota not reset, zero progress made
	FailReasonBudget = "budget" // daily request budget exhausted mid-catalog
	FailReasonError  = "error"  // unexpected failure
)

// TriggeredBy values distinguish how an invocation started.
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
	TriggerAdmin  = "admin"
	TriggerRetry  = "retry"
)

// Run is one ledger row: an invocation of a harvest source or the merge
// engine. Harvest runs use the pagination fields as their resume checkpoint.
type Run struct {
	ID           string     `json:"id"`
	Job          string     `json:"job"`
	Status       RunStatus  `json:"status"`
	FailReason   *string    `json:"fail_reason,omitempty"`
	NewRecords   int        `json:"new_records"`
	Updated      int        `json:"updated"`
	GapFilled    int        `json:"gap_filled"`
	Unchanged    int        `json:"unchanged"`
	Skipped      int        `json:"skipped"`
	Errors       int        `json:"errors"`
	CurrentPage  int        `json:"current_page"`
	TotalPages   *int       `json:"total_pages,omitempty"`
	Cursor       *int64     `json:"cursor,omitempty"`
	RequestsUsed int        `json:"requests_used"`
	RetryCount   int        `json:"retry_count"`
	ErrorDetail  *string    `json:"error_detail,omitempty"`
	TriggeredBy  string     `json:"triggered_by"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the run reached a final status.
func (r *Run) Terminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// Duration is elapsed wall time; ongoing runs measure to now.
func (r *Run) Duration() time.Duration {
	end := time.Now()
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	return end.Sub(r.StartedAt)
}

// FailedWith reports whether the run failed for the given reason.
func (r *Run) FailedWith(reason string) bool {
	return r.Status == RunStatusFailed && r.FailReason != nil && *r.FailReason == reason
}

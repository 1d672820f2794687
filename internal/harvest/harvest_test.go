package harvest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantlab/flora-cli/internal/ledger"
	"github.com/verdantlab/flora-cli/internal/model"
)

type mockNotifier struct {
	subjects []string
	bodies   []string
}

func (m *mockNotifier) Send(_ context.Context, subject, body string) error {
	m.subjects = append(m.subjects, subject)
	m.bodies = append(m.bodies, body)
	return nil
}

// fakeSource scripts one harvest outcome and records what the engine
// handed it.
type fakeSource struct {
	name     string
	skip     bool
	opts     ledger.BeginOpts
	result   *Result
	err      error
	harvests int
	gotRun   *model.Run
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Resume(_ *model.Run) (ledger.BeginOpts, bool) {
	return f.opts, !f.skip
}

func (f *fakeSource) Harvest(_ context.Context, run *model.Run) (*Result, error) {
	f.harvests++
	f.gotRun = run
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeReport struct{ subject, body string }

func (r fakeReport) Subject() string            { return r.subject }
func (r fakeReport) Body(*time.Location) string { return r.body }

type fakeScheduler struct {
	calls  int
	at     time.Time
	source string
	retry  int
	err    error
}

func (s *fakeScheduler) HarvestAt(at time.Time, source string, retryCount int) error {
	s.calls++
	s.at, s.source, s.retry = at, source, retryCount
	return s.err
}

func newEngine(mock pgxmock.PgxPoolIface, notifier *mockNotifier) *Engine {
	return NewEngine(ledger.New(mock), notifier, nil, harvestConfig(95))
}

// expectFreshRun registers the guard queries for a source with no live run
// plus the ledger row insert that starts the new one.
func expectFreshRun(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery(`SELECT id FROM flora\.runs\s+WHERE job = \$1 AND status = 'running'`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM flora\.runs WHERE job = \$1 ORDER BY started_at DESC LIMIT 1`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO flora\.runs`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestEngineRun_SkipsWhenAlreadyRunning(t *testing.T) {
	mock := newPool(t)
	mock.ExpectQuery(`SELECT id FROM flora\.runs\s+WHERE job = \$1 AND status = 'running'`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("run-0"))

	src := &fakeSource{name: model.JobPerenual}
	err := newEngine(mock, &mockNotifier{}).Run(context.Background(), src, model.TriggerManual, 0)

	require.NoError(t, err)
	assert.Equal(t, 0, src.harvests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineRun_SkipsWhenSourceDeclines(t *testing.T) {
	mock := newPool(t)
	mock.ExpectQuery(`SELECT id FROM flora\.runs\s+WHERE job = \$1 AND status = 'running'`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM flora\.runs WHERE job = \$1 ORDER BY started_at DESC LIMIT 1`).
		WillReturnError(pgx.ErrNoRows)

	src := &fakeSource{name: model.JobPerenual, skip: true}
	notifier := &mockNotifier{}
	err := newEngine(mock, notifier).Run(context.Background(), src, model.TriggerCron, 0)

	require.NoError(t, err)
	assert.Equal(t, 0, src.harvests)
	assert.Empty(t, notifier.subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineRun_CompletedRunReports(t *testing.T) {
	mock := newPool(t)
	expectFreshRun(mock)
	mock.ExpectExec(`UPDATE flora\.runs\s+SET status = 'completed'`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	src := &fakeSource{
		name:   model.JobPermapeople,
		result: &Result{Status: StatusCompleted, Report: fakeReport{"Flora Permapeople Fetch — Report", "all done"}},
	}
	notifier := &mockNotifier{}
	err := newEngine(mock, notifier).Run(context.Background(), src, model.TriggerManual, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, src.harvests)
	require.NotNil(t, src.gotRun)
	assert.Equal(t, model.JobPermapeople, src.gotRun.Job)
	assert.Equal(t, model.TriggerManual, src.gotRun.TriggeredBy)
	assert.NotEmpty(t, src.gotRun.ID)
	assert.Equal(t, []string{"Flora Permapeople Fetch — Report"}, notifier.subjects)
	assert.Equal(t, []string{"all done"}, notifier.bodies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineRun_BudgetPausesRunAndReports(t *testing.T) {
	mock := newPool(t)
	expectFreshRun(mock)
	mock.ExpectExec(`UPDATE flora\.runs\s+SET status = 'failed'`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	src := &fakeSource{
		name: model.JobPerenual,
		result: &Result{
			Status: StatusBudgetReached,
			Detail: "daily budget reached (95 requests)",
			Report: fakeReport{"Flora Perenual Fetch — Report", "budget report"},
		},
	}
	notifier := &mockNotifier{}
	err := newEngine(mock, notifier).Run(context.Background(), src, model.TriggerCron, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"Flora Perenual Fetch — Report"}, notifier.subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func quotaSource() *fakeSource {
	return &fakeSource{
		name: model.JobPerenual,
		result: &Result{
			Status: StatusQuotaNotReset,
			Detail: "quota not reset at 04:00 UTC (page 12)",
			Report: fakeReport{"Flora Perenual Fetch — Report", "quota report"},
		},
	}
}

func TestEngineRun_QuotaSchedulesRetryAndDefersReport(t *testing.T) {
	mock := newPool(t)
	expectFreshRun(mock)
	mock.ExpectExec(`UPDATE flora\.runs\s+SET status = 'failed'`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	src := quotaSource()
	notifier := &mockNotifier{}
	scheduler := &fakeScheduler{}
	e := newEngine(mock, notifier)
	e.SetScheduler(scheduler)

	err := e.Run(context.Background(), src, model.TriggerCron, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, scheduler.calls)
	assert.Equal(t, model.JobPerenual, scheduler.source)
	assert.Equal(t, 1, scheduler.retry)
	// First rung of the retry ladder.
	assert.Equal(t, 6, scheduler.at.Hour())
	assert.Equal(t, 0, scheduler.at.Minute())
	assert.Equal(t, time.UTC, scheduler.at.Location())
	assert.Empty(t, notifier.subjects, "report waits for the final attempt")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineRun_QuotaReportsWhenLadderExhausted(t *testing.T) {
	mock := newPool(t)
	expectFreshRun(mock)
	mock.ExpectExec(`UPDATE flora\.runs\s+SET status = 'failed'`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	src := quotaSource()
	notifier := &mockNotifier{}
	scheduler := &fakeScheduler{}
	e := newEngine(mock, notifier)
	e.SetScheduler(scheduler)

	err := e.Run(context.Background(), src, model.TriggerRetry, 3)

	require.NoError(t, err)
	assert.Equal(t, 0, scheduler.calls)
	assert.Equal(t, []string{"Flora Perenual Fetch — Report"}, notifier.subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineRun_QuotaReportsWithoutScheduler(t *testing.T) {
	mock := newPool(t)
	expectFreshRun(mock)
	mock.ExpectExec(`UPDATE flora\.runs\s+SET status = 'failed'`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	notifier := &mockNotifier{}
	err := newEngine(mock, notifier).Run(context.Background(), quotaSource(), model.TriggerCron, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"Flora Perenual Fetch — Report"}, notifier.subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineRun_QuotaReportsWhenSchedulingFails(t *testing.T) {
	mock := newPool(t)
	expectFreshRun(mock)
	mock.ExpectExec(`UPDATE flora\.runs\s+SET status = 'failed'`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	notifier := &mockNotifier{}
	scheduler := &fakeScheduler{err: eris.New("harvest: scheduler is not running")}
	e := newEngine(mock, notifier)
	e.SetScheduler(scheduler)

	err := e.Run(context.Background(), quotaSource(), model.TriggerCron, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, scheduler.calls)
	assert.Equal(t, []string{"Flora Perenual Fetch — Report"}, notifier.subjects)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineRun_HarvestErrorFailsRunAndReports(t *testing.T) {
	mock := newPool(t)
	expectFreshRun(mock)
	mock.ExpectExec(`UPDATE flora\.runs\s+SET status = 'failed'`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	src := &fakeSource{name: model.JobPerenual, err: eris.New("connection refused")}
	notifier := &mockNotifier{}
	err := newEngine(mock, notifier).Run(context.Background(), src, model.TriggerManual, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	require.Len(t, notifier.subjects, 1)
	assert.Equal(t, "Flora Perenual Fetch — Error", notifier.subjects[0])
	assert.Contains(t, notifier.bodies[0], "The Perenual plant fetch encountered an unexpected error.")
	assert.Contains(t, notifier.bodies[0], "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

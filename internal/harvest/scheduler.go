package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/model"
)

// Runner abstracts the engine for the daemon.
type Runner interface {
	Run(ctx context.Context, src Source, triggeredBy string, retryCount int) error
}

// Daemon is the in-process scheduler: one cron-triggered harvest per day for
// the primary source, plus delayed one-shot invocations for the quota retry
// ladder. It holds no state across restarts; a missed retry simply waits for
// the next daily cron.
type Daemon struct {
	runner   Runner
	cron     Source
	cronHour int
	sources  map[string]Source

	mu  sync.Mutex
	ctx context.Context
	wg  sync.WaitGroup
}

// NewDaemon wires a scheduler that invokes cron daily at cronHour UTC and
// accepts delayed invocations for cron and any of the other sources.
func NewDaemon(runner Runner, cronHour int, cron Source, others ...Source) *Daemon {
	sources := make(map[string]Source, len(others)+1)
	sources[cron.Name()] = cron
	for _, s := range others {
		sources[s.Name()] = s
	}
	return &Daemon{runner: runner, cron: cron, cronHour: cronHour, sources: sources}
}

// Run blocks until ctx is cancelled, firing the daily harvest on schedule
// and waiting out any queued retries before returning.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	log := zap.L().With(zap.String("component", "harvest.scheduler"))
	for {
		next := nextUTCHour(time.Now().UTC(), d.cronHour)
		log.Info("next daily harvest scheduled", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			d.wg.Wait()
			log.Info("scheduler stopped")
			return nil
		case <-timer.C:
			d.dispatch(ctx, log, d.cron, model.TriggerCron, 0)
		}
	}
}

// HarvestAt queues a one-shot invocation. The daemon must be running;
// queued work still waiting when the daemon stops is dropped.
func (d *Daemon) HarvestAt(at time.Time, source string, retryCount int) error {
	d.mu.Lock()
	ctx := d.ctx
	d.mu.Unlock()
	if ctx == nil {
		return eris.New("harvest: scheduler is not running")
	}
	src, ok := d.sources[source]
	if !ok {
		return eris.Errorf("harvest: unknown source %q", source)
	}

	log := zap.L().With(zap.String("component", "harvest.scheduler"))
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		timer := time.NewTimer(time.Until(at))
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			d.dispatch(ctx, log, src, model.TriggerRetry, retryCount)
		}
	}()
	log.Info("harvest queued",
		zap.String("source", source),
		zap.Time("at", at),
		zap.Int("retry_count", retryCount),
	)
	return nil
}

func (d *Daemon) dispatch(ctx context.Context, log *zap.Logger, src Source, triggeredBy string, retryCount int) {
	log.Info("dispatching harvest",
		zap.String("source", src.Name()),
		zap.String("triggered_by", triggeredBy),
	)
	if err := d.runner.Run(ctx, src, triggeredBy, retryCount); err != nil {
		log.Error("harvest run failed", zap.String("source", src.Name()), zap.Error(err))
	}
}

// nextUTCHour is today at hour:00 UTC, advancing a day when that moment has
// already passed.
func nextUTCHour(now time.Time, hour int) time.Time {
	now = now.UTC()
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// nextDailyCron is tomorrow at the cron hour, the time shown in report
// bodies. The daily cron never fires twice the same day, so today's slot is
// never a candidate even when it has not passed yet.
func nextDailyCron(now time.Time, hour int) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, hour, 0, 0, 0, time.UTC)
}

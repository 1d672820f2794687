// Package notify delivers harvest and merge run reports to the configured
// sinks.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/config"
)

// Notifier delivers a run report. Implementations are best-effort: callers
// log Send errors and keep going, so a failed report never fails a run.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

// Nop discards reports.
type Nop struct{}

func (Nop) Send(context.Context, string, string) error { return nil }

// Multi fans a report out to several sinks. Per-sink failures are logged and
// absorbed so one dead sink does not starve the others.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, subject, body string) error {
	for _, n := range m {
		if err := n.Send(ctx, subject, body); err != nil {
			zap.L().Warn("notify: sink failed",
				zap.String("subject", subject),
				zap.Error(err),
			)
		}
	}
	return nil
}

// FromConfig assembles the configured sinks. Email is always present (it
// warns and skips itself when no host is configured); the webhook joins only
// when a URL is set.
func FromConfig(cfg *config.Config) Notifier {
	sinks := Multi{NewEmail(cfg.Email)}
	if cfg.Webhook.URL != "" {
		sinks = append(sinks, NewWebhook(cfg.Webhook.URL))
	}
	return sinks
}

// FormatTime renders a timestamp the way report bodies show them, e.g.
// "Monday, Feb 24 at 4:00 AM CST".
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Monday, Jan 2 at 3:04 PM MST")
}

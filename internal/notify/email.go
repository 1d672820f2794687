package notify

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/verdantlab/flora-cli/internal/config"
)

// Email sends plain-text run reports over SMTP.
type Email struct {
	cfg config.EmailConfig
	log *zap.Logger
}

// NewEmail creates an email sink from SMTP settings.
func NewEmail(cfg config.EmailConfig) *Email {
	return &Email{
		cfg: cfg,
		log: zap.L().With(zap.String("component", "notify.email")),
	}
}

// Send delivers a report. When no SMTP host or recipients are configured the
// report is skipped with a warning rather than treated as a failure.
func (e *Email) Send(ctx context.Context, subject, body string) error {
	if e.cfg.Host == "" {
		e.log.Warn("email not configured, skipping report", zap.String("subject", subject))
		return nil
	}
	if len(e.cfg.To) == 0 {
		e.log.Warn("no email recipients configured, skipping report", zap.String("subject", subject))
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(e.cfg.From); err != nil {
		return eris.Wrap(err, "notify: set from address")
	}
	if err := msg.To(e.cfg.To...); err != nil {
		return eris.Wrap(err, "notify: set recipients")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(e.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if e.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.cfg.Username),
			mail.WithPassword(e.cfg.Password),
		)
	}

	client, err := mail.NewClient(e.cfg.Host, opts...)
	if err != nil {
		return eris.Wrap(err, "notify: smtp client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrap(err, "notify: send email")
	}

	e.log.Info("report emailed",
		zap.String("subject", subject),
		zap.Int("recipients", len(e.cfg.To)),
	)
	return nil
}

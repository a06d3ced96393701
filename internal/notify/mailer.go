package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// SMTPConfig holds outgoing mail settings.  UseSSL selects implicit TLS
// (usually port 465); otherwise STARTTLS is required (usually 587).
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	UseSSL   bool
	Timeout  time.Duration
}

// Configured reports whether enough settings are present to send mail.
func (c SMTPConfig) Configured() bool { return c.Host != "" && c.Port > 0 && c.From != "" }

// ErrNotConfigured is returned by Mailer when SMTP settings are missing.
var ErrNotConfigured = errors.New("smtp not configured")

// Mailer sends messages over SMTP.
type Mailer struct {
	cfg  SMTPConfig
	log  *zap.Logger
	dial func(ctx context.Context, m *mail.Msg) error
}

// NewMailer builds a Mailer.  An unconfigured mailer logs a warning on
// every send and returns ErrNotConfigured.
func NewMailer(cfg SMTPConfig, log *zap.Logger) *Mailer {
	m := &Mailer{cfg: cfg, log: log}
	m.dial = m.send
	return m
}

// Notify builds the message and delivers it.
func (m *Mailer) Notify(ctx context.Context, msg Message) error {
	if !m.cfg.Configured() {
		m.log.Warn("smtp not configured, skipping email", zap.String("to", msg.To))
		return ErrNotConfigured
	}
	if msg.To == "" {
		return errors.New("mail: empty recipient")
	}
	out := mail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)

	if err := m.dial(ctx, out); err != nil {
		m.log.Error("email send failed", zap.String("to", msg.To), zap.Error(err))
		return err
	}
	m.log.Info("email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func (m *Mailer) send(ctx context.Context, msg *mail.Msg) error {
	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(timeout),
	}
	if m.cfg.UseSSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if m.cfg.User != "" && m.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password),
		)
	}
	c, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, msg)
}

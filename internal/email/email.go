// Package email delivers magic login links for the local backend.
package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"text/template"

	"gopkg.in/gomail.v2"

	"github.com/stolasapp/notebook/internal/config"
)

// Subject is the subject line of magic link emails.
const Subject = "Your notebook login link"

var body = template.Must(template.New("magic-link").Parse(`Hi,

Use the link below to log in to your notes:

{{ .Link }}

The link works once and expires soon. If you did not ask for it, you can
ignore this email.
`))

// Sender delivers a magic link to an address.
type Sender interface {
	SendMagicLink(ctx context.Context, to, link string) error
}

// Agent sends magic links over SMTP.
type Agent struct {
	from   string
	dialer *gomail.Dialer
}

// New creates an SMTP agent from cfg.
func New(cfg config.Email) *Agent {
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}
	return &Agent{
		from:   from.String(),
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// FromConfig returns an SMTP [Agent] if a host is configured, otherwise a
// [LogSender] that writes links to logger. The latter is meant for
// development.
func FromConfig(cfg config.Email, logger *slog.Logger) Sender {
	if cfg.Host == "" {
		return LogSender{Logger: logger}
	}
	return New(cfg)
}

// SendMagicLink satisfies [Sender].
func (a *Agent) SendMagicLink(ctx context.Context, to, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := a.compose(to, link)
	if err != nil {
		return err
	}
	if err = a.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send magic link email: %w", err)
	}
	return nil
}

func (a *Agent) compose(to, link string) (*gomail.Message, error) {
	buf := &bytes.Buffer{}
	if err := body.Execute(buf, struct{ Link string }{Link: link}); err != nil {
		return nil, fmt.Errorf("failed to render magic link email: %w", err)
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", a.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", Subject)
	msg.SetBody("text/plain", buf.String())
	return msg, nil
}

// LogSender logs magic links instead of sending them.
type LogSender struct {
	Logger *slog.Logger
}

// SendMagicLink satisfies [Sender].
func (s LogSender) SendMagicLink(ctx context.Context, to, link string) error {
	s.Logger.InfoContext(ctx, "magic link issued (email delivery disabled)",
		slog.String("to", to),
		slog.String("link", link),
	)
	return nil
}

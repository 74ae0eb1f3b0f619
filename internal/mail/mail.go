// Package mail sends account emails: activation links and password
// resets.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"tidepool/internal/config"
	"tidepool/internal/middleware"
)

// Mailer delivers account emails.
type Mailer interface {
	SendActivation(ctx context.Context, to, name, link string) error
	SendPasswordReset(ctx context.Context, to, name, link string) error
}

// SMTPMailer sends through a configured SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

// NewMailer returns an SMTP mailer when SMTP is configured, otherwise a
// logging mailer so development flows still surface the links.
func NewMailer(cfg *config.Config) Mailer {
	if cfg.SMTPHost == "" {
		return &LogMailer{}
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
	}
}

func (m *SMTPMailer) send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := m.host + ":" + m.port
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// SendActivation emails the account activation link.
func (m *SMTPMailer) SendActivation(_ context.Context, to, name, link string) error {
	body := fmt.Sprintf("Hello %s,\n\nPlease click on the link below to activate your account:\n\n%s\n\nThe link expires in 5 minutes.\n", name, link)
	return m.send(to, "Activate your account", body)
}

// SendPasswordReset emails the password reset link.
func (m *SMTPMailer) SendPasswordReset(_ context.Context, to, name, link string) error {
	body := fmt.Sprintf("Hello %s,\n\nPlease click on the link below to reset your password:\n\n%s\n\nThe link expires in 5 minutes.\n", name, link)
	return m.send(to, "Reset your password", body)
}

// LogMailer writes the mail to the log instead of sending it. Used in
// development and tests.
type LogMailer struct{}

func (m *LogMailer) SendActivation(ctx context.Context, to, name, link string) error {
	middleware.Logger.InfoContext(ctx, "activation mail (not sent, SMTP unconfigured)",
		slog.String("to", to),
		slog.String("name", name),
		slog.String("link", link),
	)
	return nil
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, to, name, link string) error {
	middleware.Logger.InfoContext(ctx, "password reset mail (not sent, SMTP unconfigured)",
		slog.String("to", to),
		slog.String("name", name),
		slog.String("link", link),
	)
	return nil
}

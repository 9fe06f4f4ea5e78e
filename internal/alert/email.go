package alert

import (
	"context"
	"log/slog"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"
)

// EmailConfig holds SMTP settings for warning emails.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailReporter mails warnings to the operators.
type EmailReporter struct {
	cfg    EmailConfig
	send   func(*gomail.Message) error
	logger *slog.Logger
}

// NewEmailReporter creates an EmailReporter that dials cfg.Host per message.
func NewEmailReporter(cfg EmailConfig, logger *slog.Logger) *EmailReporter {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = 10 * time.Second
	send := func(m *gomail.Message) error { return dialer.DialAndSend(m) }
	return &EmailReporter{cfg: cfg, send: send, logger: logger}
}

// ReportParseWarning implements Reporter.
func (r *EmailReporter) ReportParseWarning(_ context.Context, message string) {
	m := gomail.NewMessage()
	m.SetHeader("From", r.cfg.From)
	m.SetHeader("To", r.cfg.To...)
	m.SetHeader("Subject", "Soup calendar import warning")
	m.SetBody("text/plain", message)

	if err := r.send(m); err != nil {
		r.logger.Warn("Failed to email parse warning", "to", strings.Join(r.cfg.To, ","), "error", err)
		return
	}
	r.logger.Info("Parse warning emailed", "to", strings.Join(r.cfg.To, ","))
}

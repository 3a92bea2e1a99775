// Package mail renders notification emails and delivers them over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"

	"EarningsTracker/internal/ports"
)

// SMTPConfig holds transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
	Timeout  time.Duration
}

// Dialer is the part of gomail.Dialer the mailer uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends one message addressed to every recipient.
type SMTPMailer struct {
	dialer  Dialer
	from    string
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer validates cfg and builds a gomail dialer.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("smtp host, username and password are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.SSL
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return NewMailerWithDialer(dialer, cfg.From, cfg.Timeout, logger), nil
}

// NewMailerWithDialer wires an existing dialer.
func NewMailerWithDialer(dialer Dialer, from string, timeout time.Duration, logger *slog.Logger) *SMTPMailer {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPMailer{dialer: dialer, from: from, timeout: timeout, logger: logger.With("component", "mailer")}
}

// Send delivers an HTML message with a plain-text alternative.
// gomail cannot be cancelled: when ctx or the mailer timeout expires Send returns an error,
// but the SMTP exchange keeps running and the message may still be delivered.
func (m *SMTPMailer) Send(ctx context.Context, recipients []string, subject, bodyHTML string) error {
	if len(recipients) == 0 {
		return errors.New("no recipients")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", TextFromHTML(bodyHTML))
	msg.AddAlternative("text/html", bodyHTML)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		m.logger.Info("mail sent", "recipients", len(recipients), "subject", subject)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail: %w", ctx.Err())
	}
}

// Package mailer delivers transactional e-mail.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"pwreset/internal/logging"
)

// Sender delivers a single plain-text message. Delivery is unreliable; callers
// decide whether a failure is fatal to what they are doing.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds the relay settings.
type SMTPConfig struct {
	Server   string // host:port
	User     string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends mail through an authenticated SMTP relay.
type SMTPSender struct {
	cfg      SMTPConfig
	host     string
	sendMail sendMailFunc
	now      func() time.Time
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender validates cfg and returns a sender for it.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Server == "" || cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("SMTP server, user and password must be set")
	}
	host, _, err := net.SplitHostPort(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP server %q (expected host:port): %w", cfg.Server, err)
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPSender{cfg: cfg, host: host, sendMail: smtp.SendMail, now: time.Now}, nil
}

// Send delivers the message on a separate goroutine and waits for it or ctx.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := buildMessage(s.cfg.From, to, subject, body, s.now())
	if err != nil {
		return err
	}
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.host)

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(s.cfg.Server, auth, s.cfg.From, []string{to}, msg)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email via %s: %w", s.cfg.Server, err)
		}
		return nil
	}
}

func buildMessage(from, to, subject, body string, date time.Time) ([]byte, error) {
	for _, h := range []string{from, to, subject} {
		if strings.ContainsAny(h, "\r\n") {
			return nil, fmt.Errorf("header value %q contains a line break", h)
		}
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String()), nil
}

// LogSender writes messages to the log instead of delivering them. It stands
// in for SMTP when no relay is configured. Bodies carry live reset links and
// are logged at debug level only.
type LogSender struct {
	log logging.Logger
}

var _ Sender = (*LogSender)(nil)

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.log.Info(ctx, "outgoing email (not delivered)", "to", to, "subject", subject)
	s.log.Debug(ctx, "outgoing email body", "to", to, "body", body)
	return nil
}

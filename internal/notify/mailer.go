package notify

import (
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/spec-kit/commerce-support/internal/config"
)

// Mailer sends a single email. Fire-and-forget from the dispatcher's
// perspective; implementations need no retry logic.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer delivers over SMTP via gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds a mailer from config.
func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send dials and delivers one message.
func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// NopMailer logs instead of sending. Used when SMTP is not configured.
type NopMailer struct {
	logger *zap.Logger
}

// NewNopMailer builds the logging stand-in.
func NewNopMailer(logger *zap.Logger) *NopMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NopMailer{logger: logger}
}

// Send logs the would-be delivery and succeeds.
func (m *NopMailer) Send(to, subject, _ string) error {
	m.logger.Debug("email delivery skipped; smtp not configured",
		zap.String("to", to),
		zap.String("subject", subject))
	return nil
}

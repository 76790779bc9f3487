package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/aglayrton/fluxo-agua/internal/config"
)

// Mailer delivers alert messages over SMTP
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer creates a new SMTP mailer
func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers one message to the full recipient list
func (m *Mailer) Send(subject, body string, recipients []string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp delivery failed: %w", err)
	}

	return nil
}

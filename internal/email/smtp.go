package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/expirywatch/expirywatch/internal/config"
)

type smtpService struct {
	dialer *gomail.Dialer
}

// NewSMTPService creates a gomail-backed transport for the configured server.
func NewSMTPService(cfg config.MailConfig) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *smtpService) Send(ctx context.Context, msg *Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.HighPriority {
		m.SetHeader("X-Priority", "1 (Highest)")
		m.SetHeader("Importance", "High")
	}
	m.SetBody("text/html", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}

	return nil
}

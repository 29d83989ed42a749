package notifications

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPTransport sends through an SMTP relay.
type SMTPTransport struct {
	dialer *gomail.Dialer
}

// NewSMTPTransport builds an SMTP transport. Port 465 uses implicit TLS, other
// ports upgrade with STARTTLS when the server offers it.
func NewSMTPTransport(host string, port int, user, password string) *SMTPTransport {
	return &SMTPTransport{dialer: gomail.NewDialer(host, port, user, password)}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Deliver(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.dialer.DialAndSend(buildSMTPMessage(env)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func buildSMTPMessage(env Envelope) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", env.FromEmail, env.FromName)
	m.SetAddressHeader("To", env.ToEmail, env.ToName)
	m.SetHeader("Subject", env.Subject)
	m.SetBody("text/html", env.HTML)
	return m
}

package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"guildhall/internal/config"
	"guildhall/internal/middleware"
)

// LogTransport writes messages to the log instead of sending them. It also keeps
// the last envelopes in memory for local inspection.
type LogTransport struct {
	mu   sync.Mutex
	sent []Envelope
}

func NewLogTransport() *LogTransport { return &LogTransport{} }

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Deliver(ctx context.Context, env Envelope) error {
	middleware.Logger.InfoContext(ctx, "email (log transport)",
		slog.String("to", env.ToEmail),
		slog.String("subject", env.Subject),
		slog.Int("html_bytes", len(env.HTML)),
	)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, env)
	if len(t.sent) > 100 {
		t.sent = t.sent[len(t.sent)-100:]
	}
	return nil
}

// Sent returns a copy of the recorded envelopes.
func (t *LogTransport) Sent() []Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Envelope, len(t.sent))
	copy(out, t.sent)
	return out
}

// NewTransport selects the transport named by EMAIL_PROVIDER.
func NewTransport(cfg *config.Config) (Transport, error) {
	switch cfg.EmailProvider {
	case config.EmailProviderBrevo:
		return NewBrevoTransport(cfg.BrevoAPIKey, cfg.BrevoBaseURL), nil
	case config.EmailProviderSMTP:
		return NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword), nil
	case config.EmailProviderLog, "":
		return NewLogTransport(), nil
	default:
		return nil, fmt.Errorf("unsupported EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}

// NewMailerFromConfig wires the configured transport and the embedded templates.
func NewMailerFromConfig(cfg *config.Config) (*Mailer, error) {
	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}
	return NewMailer(transport, nil, MailerConfig{
		FromEmail: cfg.EmailSender,
		FromName:  cfg.EmailSenderName,
		SiteURL:   cfg.SiteURL,
	})
}

package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"guildhall/internal/middleware"
	"guildhall/internal/models"
	"guildhall/internal/observability"
)

// Envelope is a fully rendered message handed to a Transport.
type Envelope struct {
	FromEmail string
	FromName  string
	ToEmail   string
	ToName    string
	Subject   string
	HTML      string
}

// Transport delivers a rendered envelope through one provider.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, env Envelope) error
}

// EmailData is the view model every template renders against.
type EmailData struct {
	SiteURL       string
	RecipientName string

	ReferenceNumber    string
	ClientName         string
	ClientCompany      string
	ClientEmail        string
	ClientPhone        string
	ProjectType        string
	ProjectDescription string
	Location           string
	Timeline           string
	ValueRange         string
	DisplayValue       string
	Status             string
	AdminNotes         string

	SubmitterName     string
	SubmitterEmail    string
	SubmitterCompany  string
	MatchedMemberName string

	ApplicantName    string
	ApplicantEmail   string
	ApplicantCompany string
	BadgeLevel       string
	BadgeLabel       string
	Points           []models.VerificationPoint
	Steps            []string
	ReminderNumber   int
}

// Message asks the gateway to send one templated email.
type Message struct {
	To       string
	ToName   string
	Template string
	Data     EmailData
}

// EmailResult reports the outcome of one send. A failed send is data, not an error.
type EmailResult struct {
	Sent      bool   `json:"sent"`
	Recipient string `json:"recipient"`
	Template  string `json:"template"`
	Error     string `json:"error,omitempty"`
}

// Mailer renders templates and hands them to a transport.
type Mailer struct {
	transport Transport
	catalog   *Catalog
	fromEmail string
	fromName  string
	siteURL   string
}

// MailerConfig carries the sender identity and site link used in templates.
type MailerConfig struct {
	FromEmail string
	FromName  string
	SiteURL   string
}

// NewMailer builds a Mailer. A nil catalog loads the embedded templates.
func NewMailer(transport Transport, catalog *Catalog, cfg MailerConfig) (*Mailer, error) {
	if transport == nil {
		return nil, errors.New("mailer requires a transport")
	}
	if catalog == nil {
		var err error
		if catalog, err = LoadCatalog(); err != nil {
			return nil, err
		}
	}
	return &Mailer{
		transport: transport,
		catalog:   catalog,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		siteURL:   strings.TrimRight(cfg.SiteURL, "/"),
	}, nil
}

// Send renders and delivers msg. It never panics and never returns an error:
// every failure is reported through the result.
func (m *Mailer) Send(ctx context.Context, msg Message) (result EmailResult) {
	result = EmailResult{Recipient: msg.To, Template: msg.Template}

	defer func() {
		if r := recover(); r != nil {
			middleware.Logger.ErrorContext(ctx, "email send panicked",
				slog.String("template", msg.Template),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			result.Sent = false
			result.Error = "internal error while sending email"
			observability.RecordEmail(msg.Template, observability.EmailResultFailed)
		}
	}()

	to := strings.TrimSpace(msg.To)
	if to == "" || !strings.Contains(to, "@") {
		result.Error = "no valid recipient address"
		observability.RecordEmail(msg.Template, observability.EmailResultSkipped)
		middleware.Logger.WarnContext(ctx, "email skipped: no recipient", slog.String("template", msg.Template))
		return result
	}

	data := msg.Data
	if data.SiteURL == "" {
		data.SiteURL = m.siteURL
	}
	if data.RecipientName == "" {
		data.RecipientName = fallbackName(msg.ToName, to)
	}

	subject, html, err := m.catalog.Render(msg.Template, data)
	if err != nil {
		result.Error = err.Error()
		observability.RecordEmail(msg.Template, observability.EmailResultFailed)
		middleware.Logger.ErrorContext(ctx, "email render failed",
			slog.String("template", msg.Template), slog.String("error", err.Error()))
		return result
	}

	err = m.transport.Deliver(ctx, Envelope{
		FromEmail: m.fromEmail,
		FromName:  m.fromName,
		ToEmail:   to,
		ToName:    data.RecipientName,
		Subject:   subject,
		HTML:      html,
	})
	if err != nil {
		result.Error = err.Error()
		observability.RecordEmail(msg.Template, observability.EmailResultFailed)
		middleware.Logger.WarnContext(ctx, "email delivery failed",
			slog.String("template", msg.Template),
			slog.String("transport", m.transport.Name()),
			slog.String("error", err.Error()),
		)
		return result
	}

	result.Sent = true
	observability.RecordEmail(msg.Template, observability.EmailResultSent)
	middleware.Logger.InfoContext(ctx, "email sent",
		slog.String("template", msg.Template),
		slog.String("transport", m.transport.Name()),
	)
	return result
}

func fallbackName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// ProviderError is returned by transports when the provider rejects a message.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s rejected message: status %d: %s", e.Provider, e.Status, e.Body)
}

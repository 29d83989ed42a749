package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"guildhall/internal/auth"
	"guildhall/internal/middleware"
	"guildhall/internal/models"
	"guildhall/internal/notifications"
	"guildhall/internal/observability"
	"guildhall/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// Per-application outcomes, also used as metric labels.
const (
	outcomeSent    = "sent"
	outcomeSkipped = "skipped"
	outcomeError   = "error"
)

// EmailSender is the notification gateway.
type EmailSender interface {
	Send(ctx context.Context, msg notifications.Message) notifications.EmailResult
}

// PassResult summarizes one reminder pass.
type PassResult struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Runner scans pending applications and sends the reminders that are due.
type Runner struct {
	applications repository.ApplicationRepository
	audit        repository.AuditLogRepository
	mailer       EmailSender
	limiter      *rate.Limiter
	now          func() time.Time
}

// NewRunner builds a Runner. sendsPerSecond <= 0 disables pacing.
func NewRunner(
	applications repository.ApplicationRepository,
	audit repository.AuditLogRepository,
	mailer EmailSender,
	sendsPerSecond float64,
) *Runner {
	limit := rate.Inf
	if sendsPerSecond > 0 {
		limit = rate.Limit(sendsPerSecond)
	}
	return &Runner{
		applications: applications,
		audit:        audit,
		mailer:       mailer,
		limiter:      rate.NewLimiter(limit, 1),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RunPass checks every pending application, oldest first. A failure on one
// application is counted and the pass moves on.
func (r *Runner) RunPass(ctx context.Context) (PassResult, error) {
	span, ctx := observability.NewSpan(ctx, "reminders.RunPass")
	defer span.End()

	apps, err := r.applications.ListPending(ctx)
	if err != nil {
		span.SetError(err)
		return PassResult{}, err
	}

	now := r.now()
	var result PassResult
	for i := range apps {
		result.Checked++
		switch r.processOne(ctx, &apps[i], now) {
		case outcomeSent:
			result.Sent++
		case outcomeSkipped:
			result.Skipped++
		default:
			result.Errors++
		}
	}

	span.AddAttributes(
		attribute.Int("reminders.checked", result.Checked),
		attribute.Int("reminders.sent", result.Sent),
		attribute.Int("reminders.errors", result.Errors),
	)
	middleware.Logger.InfoContext(ctx, "reminder pass finished",
		slog.Int("checked", result.Checked),
		slog.Int("sent", result.Sent),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors),
	)
	return result, nil
}

func (r *Runner) processOne(ctx context.Context, app *models.Application, now time.Time) (outcome string) {
	defer func() {
		if rec := recover(); rec != nil {
			middleware.Logger.ErrorContext(ctx, "panic while processing reminder",
				slog.String("application_id", app.ID.String()),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			outcome = outcomeError
		}
		observability.ReminderPass.WithLabelValues(outcome).Inc()
	}()

	if !ShouldSendReminder(app.CreatedAt, app.LastReminderSent, app.ReminderCount, now) {
		return outcomeSkipped
	}
	if err := r.deliver(ctx, app, now); err != nil {
		middleware.Logger.WarnContext(ctx, "reminder not sent",
			slog.String("application_id", app.ID.String()),
			slog.String("error", err.Error()),
		)
		return outcomeError
	}
	return outcomeSent
}

// deliver sends one reminder and records it. Nothing is written when the send fails.
func (r *Runner) deliver(ctx context.Context, app *models.Application, now time.Time) error {
	if app.Profile == nil {
		return fmt.Errorf("application %s has no profile", app.ID)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	res := r.mailer.Send(ctx, notifications.Message{
		To:       app.Profile.Email,
		ToName:   app.Profile.DisplayName(),
		Template: notifications.TemplateApplicationReminder,
		Data: notifications.EmailData{
			ApplicantName:  app.Profile.DisplayName(),
			Steps:          IncompleteSteps(app),
			ReminderNumber: app.ReminderCount + 1,
		},
	})
	if !res.Sent {
		return fmt.Errorf("send failed: %s", res.Error)
	}
	return r.applications.RecordReminderSent(ctx, app.ID, now)
}

// SingleResult is the response of SendSingle.
type SingleResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendSingle sends a reminder for one pending application regardless of the
// schedule. Admin only.
func (r *Runner) SendSingle(ctx context.Context, caller auth.Caller, applicationID uuid.UUID) (*SingleResult, error) {
	admin, err := auth.Authorize(&caller, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	app, err := r.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, models.NewValidationError(fmt.Sprintf("application is %s, reminders are only sent for pending applications", app.Status))
	}

	if err := r.deliver(ctx, app, r.now()); err != nil {
		observability.ReminderPass.WithLabelValues(outcomeError).Inc()
		return &SingleResult{Success: false, Message: "Reminder could not be sent"}, nil
	}
	observability.ReminderPass.WithLabelValues(outcomeSent).Inc()

	if err := r.audit.Append(ctx, models.NewAuditEntry(admin.ID, models.AuditSentReminder,
		models.AuditTargetApplication, app.ID, map[string]any{"reminder_number": app.ReminderCount + 1})); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to append audit log",
			slog.String("action", models.AuditSentReminder), slog.String("error", err.Error()))
	}
	return &SingleResult{Success: true, Message: "Reminder sent"}, nil
}

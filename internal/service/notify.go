// Package service holds the referral and application workflows that sit between
// the HTTP handlers and the repositories.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"guildhall/internal/featureflags"
	"guildhall/internal/middleware"
	"guildhall/internal/models"
	"guildhall/internal/notifications"
	"guildhall/internal/repository"

	"github.com/google/uuid"
)

// EmailSender is the notification gateway as seen by the workflows.
type EmailSender interface {
	Send(ctx context.Context, msg notifications.Message) notifications.EmailResult
}

// EventPublisher pushes realtime events to members.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev notifications.Event, userIDs ...uuid.UUID) error
}

// NotificationReport is the response body of the notify-* operations. Success
// reports that the operation ran; EmailSent reports whether any email went out.
type NotificationReport struct {
	Success   bool                        `json:"success"`
	EmailSent bool                        `json:"emailSent"`
	Results   []notifications.EmailResult `json:"results,omitempty"`
	Message   string                      `json:"message"`
}

func (r *NotificationReport) add(res notifications.EmailResult) {
	r.Results = append(r.Results, res)
	if res.Sent {
		r.EmailSent = true
	}
}

// recipient is one resolved email address.
type recipient struct {
	email string
	name  string
}

// adminRecipients returns the configured admin inbox, or every admin profile
// when none is configured.
func adminRecipients(ctx context.Context, profiles repository.ProfileRepository, adminEmail string) ([]recipient, error) {
	if email := strings.TrimSpace(adminEmail); email != "" {
		return []recipient{{email: email, name: "Admin"}}, nil
	}
	admins, err := profiles.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]recipient, 0, len(admins))
	for i := range admins {
		out = append(out, recipient{email: admins[i].Email, name: admins[i].DisplayName()})
	}
	return out, nil
}

// appendAudit records an admin action. A failed write is logged and does not
// fail the action that already happened.
func appendAudit(ctx context.Context, audit repository.AuditLogRepository, entry *models.AdminAuditLog) {
	if audit == nil {
		return
	}
	if err := audit.Append(ctx, entry); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to append audit log",
			slog.String("action", entry.Action),
			slog.String("target_id", entry.TargetID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// realtime publishes ev to the members for whom the realtime flag is on.
type realtime struct {
	events EventPublisher
	flags  *featureflags.Manager
}

func (r realtime) publish(ctx context.Context, ev notifications.Event, userIDs ...uuid.UUID) {
	if r.events == nil {
		return
	}
	targets := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		if id == uuid.Nil {
			continue
		}
		if r.flags.Enabled(featureflags.ReferralRealtimeEvents, id) {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return
	}
	if err := r.events.PublishEvent(ctx, ev, targets...); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish realtime event",
			slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func systemNow() time.Time { return time.Now().UTC() }

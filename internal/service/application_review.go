package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"guildhall/internal/auth"
	"guildhall/internal/featureflags"
	"guildhall/internal/middleware"
	"guildhall/internal/models"
	"guildhall/internal/notifications"
	"guildhall/internal/repository"

	"github.com/google/uuid"
)

// SubmitApplicationRequest is a member's first vetting submission. Points maps
// verification point keys to their submitted state.
type SubmitApplicationRequest struct {
	Points          map[string]models.PointStatus `json:"points"`
	TosAccepted     bool                          `json:"tosAccepted"`
	PrivacyAccepted bool                          `json:"privacyAccepted"`
}

// SubmissionReport is the result of NotifySubmission.
type SubmissionReport struct {
	Success            bool   `json:"success"`
	ApplicantEmailSent bool   `json:"applicantEmailSent"`
	AdminEmailSent     bool   `json:"adminEmailSent"`
	Message            string `json:"message"`
}

// ApplicationReview runs the admin side of vetting: approval and rejection
// notices and the submission acknowledgements.
type ApplicationReview struct {
	applications repository.ApplicationRepository
	profiles     repository.ProfileRepository
	audit        repository.AuditLogRepository
	mailer       EmailSender
	realtime     realtime
	adminEmail   string
	now          func() time.Time
}

func NewApplicationReview(
	applications repository.ApplicationRepository,
	profiles repository.ProfileRepository,
	audit repository.AuditLogRepository,
	mailer EmailSender,
	events EventPublisher,
	flags *featureflags.Manager,
	adminEmail string,
) *ApplicationReview {
	return &ApplicationReview{
		applications: applications,
		profiles:     profiles,
		audit:        audit,
		mailer:       mailer,
		realtime:     realtime{events: events, flags: flags},
		adminEmail:   adminEmail,
		now:          systemNow,
	}
}

// Submit creates the caller's application. A member has at most one.
func (s *ApplicationReview) Submit(ctx context.Context, caller auth.Caller, req SubmitApplicationRequest) (*models.Application, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAuthenticated); err != nil {
		return nil, err
	}

	app := &models.Application{
		UserID:          caller.ID,
		Status:          models.ApplicationStatusPending,
		TosAccepted:     req.TosAccepted,
		PrivacyAccepted: req.PrivacyAccepted,
	}
	for key, status := range req.Points {
		if !models.ValidPointStatus(status) {
			return nil, models.NewValidationError(fmt.Sprintf("invalid status %q for point %s", status, key))
		}
		// Members can only submit; verification is an admin decision.
		if status == models.PointVerified || status == models.PointRejected {
			return nil, models.NewValidationError(fmt.Sprintf("point %s cannot be set to %s by the applicant", key, status))
		}
		if !app.SetPoint(key, status) {
			return nil, models.NewValidationError(fmt.Sprintf("unknown verification point %q", key))
		}
	}

	if err := s.applications.Create(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// GetMine returns the caller's application.
func (s *ApplicationReview) GetMine(ctx context.Context, caller auth.Caller) (*models.Application, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAuthenticated); err != nil {
		return nil, err
	}
	return s.applications.GetByUserID(ctx, caller.ID)
}

func (s *ApplicationReview) load(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := s.applications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Profile == nil {
		if app.Profile, err = s.profiles.GetByID(ctx, app.UserID); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func applicantData(app *models.Application) notifications.EmailData {
	return notifications.EmailData{
		ApplicantName:    app.Profile.DisplayName(),
		ApplicantEmail:   app.Profile.Email,
		ApplicantCompany: app.Profile.CompanyName,
		AdminNotes:       app.AdminNotes,
	}
}

// Approve sends the approval email for badgeLevel. The status and badge writes
// belong to the profile admin tooling; approval succeeds even if the email fails.
func (s *ApplicationReview) Approve(ctx context.Context, caller auth.Caller, applicationID uuid.UUID, badgeLevel string) (*NotificationReport, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	badge, err := models.ParseBadgeLevel(badgeLevel)
	if err != nil {
		return nil, err
	}
	app, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	data := applicantData(app)
	data.BadgeLevel = string(badge)
	data.BadgeLabel = badge.Label()
	res := s.mailer.Send(ctx, notifications.Message{
		To:       app.Profile.Email,
		ToName:   app.Profile.DisplayName(),
		Template: notifications.TemplateApplicationApproved,
		Data:     data,
	})
	s.realtime.publish(ctx, notifications.NewEvent(notifications.EventApplicationReviewed, map[string]any{
		"application_id": app.ID.String(),
		"decision":       "approved",
		"badge_level":    badge,
	}), app.UserID)

	report := &NotificationReport{Success: true}
	report.add(res)
	report.Message = sentMessage(report.EmailSent, "Approval email sent", "Application approved but the email could not be sent")
	return report, nil
}

// Reject marks the application rejected, records the audit entry and sends the
// rejection email with a snapshot of every verification point.
func (s *ApplicationReview) Reject(ctx context.Context, caller auth.Caller, applicationID uuid.UUID, adminNotes string) (*NotificationReport, error) {
	admin, err := auth.Authorize(&caller, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}
	app, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	notes := strings.TrimSpace(adminNotes)
	now := s.now()
	if err := s.applications.MarkRejected(ctx, app.ID, admin.ID, notes, now); err != nil {
		return nil, err
	}
	app.Status = models.ApplicationStatusRejected
	app.AdminNotes = notes
	app.ReviewedBy = &admin.ID
	app.ReviewedAt = &now

	appendAudit(ctx, s.audit, models.NewAuditEntry(admin.ID, models.AuditRejectedApplication,
		models.AuditTargetApplication, app.ID, map[string]any{"admin_notes": notes}))
	middleware.Logger.InfoContext(ctx, "application rejected",
		slog.String("application_id", app.ID.String()),
		slog.String("admin_id", admin.ID.String()),
	)

	data := applicantData(app)
	data.Points = app.Points()
	res := s.mailer.Send(ctx, notifications.Message{
		To:       app.Profile.Email,
		ToName:   app.Profile.DisplayName(),
		Template: notifications.TemplateApplicationRejected,
		Data:     data,
	})
	s.realtime.publish(ctx, notifications.NewEvent(notifications.EventApplicationReviewed, map[string]any{
		"application_id": app.ID.String(),
		"decision":       "rejected",
	}), app.UserID)

	report := &NotificationReport{Success: true}
	report.add(res)
	report.Message = sentMessage(report.EmailSent, "Application rejected and applicant notified", "Application rejected but the email could not be sent")
	return report, nil
}

// NotifySubmission acknowledges a new application to the applicant and alerts
// the admins. The caller must be the applicant or an admin.
func (s *ApplicationReview) NotifySubmission(ctx context.Context, caller auth.Caller, applicationID uuid.UUID) (*SubmissionReport, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAuthenticated); err != nil {
		return nil, err
	}
	app, err := s.load(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin && app.UserID != caller.ID {
		return nil, models.NewForbiddenError("Only the applicant or an admin can request this notification")
	}

	data := applicantData(app)
	report := &SubmissionReport{Success: true}
	report.ApplicantEmailSent = s.mailer.Send(ctx, notifications.Message{
		To:       app.Profile.Email,
		ToName:   app.Profile.DisplayName(),
		Template: notifications.TemplateApplicationReceived,
		Data:     data,
	}).Sent

	recipients, err := adminRecipients(ctx, s.profiles, s.adminEmail)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "could not resolve admin recipients", slog.String("error", err.Error()))
	}
	for _, rcpt := range recipients {
		res := s.mailer.Send(ctx, notifications.Message{
			To:       rcpt.email,
			ToName:   rcpt.name,
			Template: notifications.TemplateApplicationAdminAlert,
			Data:     data,
		})
		report.AdminEmailSent = report.AdminEmailSent || res.Sent
	}

	switch {
	case report.ApplicantEmailSent && report.AdminEmailSent:
		report.Message = "Submission emails sent"
	case report.ApplicantEmailSent || report.AdminEmailSent:
		report.Message = "Some submission emails could not be sent"
	default:
		report.Message = "Submission emails could not be sent"
	}
	return report, nil
}

package service

import (
	"context"
	"fmt"
	"strings"

	"guildhall/internal/auth"
	"guildhall/internal/featureflags"
	"guildhall/internal/models"
	"guildhall/internal/notifications"
	"guildhall/internal/repository"

	"github.com/google/uuid"
)

// ReferralNotifier sends the emails of the referral pipeline. Email failures are
// reported in the returned NotificationReport and never become errors.
type ReferralNotifier struct {
	referrals  repository.ReferralRepository
	profiles   repository.ProfileRepository
	mailer     EmailSender
	realtime   realtime
	adminEmail string
}

func NewReferralNotifier(
	referrals repository.ReferralRepository,
	profiles repository.ProfileRepository,
	mailer EmailSender,
	events EventPublisher,
	flags *featureflags.Manager,
	adminEmail string,
) *ReferralNotifier {
	return &ReferralNotifier{
		referrals:  referrals,
		profiles:   profiles,
		mailer:     mailer,
		realtime:   realtime{events: events, flags: flags},
		adminEmail: adminEmail,
	}
}

// referralEmailData carries everything but the client's contact details.
func referralEmailData(r *models.Referral) notifications.EmailData {
	data := notifications.EmailData{
		ReferenceNumber:    r.ReferenceNumber,
		ClientName:         r.ClientName,
		ClientCompany:      derefString(r.ClientCompany),
		ProjectType:        r.ProjectType,
		ProjectDescription: derefString(r.ProjectDescription),
		Location:           r.Location,
		Timeline:           derefString(r.Timeline),
		ValueRange:         derefString(r.ValueRange),
		DisplayValue:       r.DisplayValue(),
		Status:             string(r.Status),
		AdminNotes:         r.AdminNotes,
	}
	if r.Submitter != nil {
		data.SubmitterName = r.Submitter.DisplayName()
		data.SubmitterEmail = r.Submitter.Email
		data.SubmitterCompany = r.Submitter.CompanyName
	}
	if r.MatchedMember != nil {
		data.MatchedMemberName = r.MatchedMember.DisplayName()
	}
	return data
}

func (n *ReferralNotifier) load(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	referral, err := n.referrals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if referral.Submitter == nil {
		if referral.Submitter, err = n.profiles.GetByID(ctx, referral.SubmittedBy); err != nil {
			return nil, err
		}
	}
	return referral, nil
}

func (n *ReferralNotifier) sendToSubmitter(ctx context.Context, r *models.Referral, template string) notifications.EmailResult {
	return n.mailer.Send(ctx, notifications.Message{
		To:       r.Submitter.Email,
		ToName:   r.Submitter.DisplayName(),
		Template: template,
		Data:     referralEmailData(r),
	})
}

func (n *ReferralNotifier) statusEvent(r *models.Referral) notifications.Event {
	return notifications.NewEvent(notifications.EventReferralStatusChanged, map[string]any{
		"referral_id":      r.ID.String(),
		"reference_number": r.ReferenceNumber,
		"status":           r.Status,
	})
}

// NotifySubmitter confirms receipt of a referral to the member who submitted it.
// The caller must be that member or an admin.
func (n *ReferralNotifier) NotifySubmitter(ctx context.Context, caller auth.Caller, referralID uuid.UUID) (*NotificationReport, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAuthenticated); err != nil {
		return nil, err
	}
	referral, err := n.load(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin && referral.SubmittedBy != caller.ID {
		return nil, models.NewForbiddenError("Only the submitter or an admin can request this notification")
	}

	report := &NotificationReport{Success: true}
	report.add(n.sendToSubmitter(ctx, referral, notifications.TemplateReferralSubmitted))
	report.Message = sentMessage(report.EmailSent, "Confirmation email sent", "Referral recorded but the confirmation email could not be sent")
	return report, nil
}

// NotifyAdmin alerts the admin inbox about a new referral.
func (n *ReferralNotifier) NotifyAdmin(ctx context.Context, caller auth.Caller, referralID uuid.UUID) (*NotificationReport, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAuthenticated); err != nil {
		return nil, err
	}
	referral, err := n.load(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin && referral.SubmittedBy != caller.ID {
		return nil, models.NewForbiddenError("Only the submitter or an admin can request this notification")
	}

	recipients, err := adminRecipients(ctx, n.profiles, n.adminEmail)
	if err != nil {
		return nil, err
	}
	report := &NotificationReport{Success: true}
	data := referralEmailData(referral)
	for _, rcpt := range recipients {
		report.add(n.mailer.Send(ctx, notifications.Message{
			To:       rcpt.email,
			ToName:   rcpt.name,
			Template: notifications.TemplateReferralAdminAlert,
			Data:     data,
		}))
	}
	report.Message = sentMessage(report.EmailSent, "Admin notified", "No admin notification could be sent")
	return report, nil
}

// NotifyMatchedMember sends the matched member the client's contact details.
// This is the only message that carries them, so the referral must be MATCHED
// or later and matched to memberID.
func (n *ReferralNotifier) NotifyMatchedMember(ctx context.Context, caller auth.Caller, referralID, memberID uuid.UUID) (*NotificationReport, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	referral, err := n.load(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if !referral.Status.Reached(models.ReferralStatusMatched) {
		return nil, models.NewValidationError(fmt.Sprintf("referral is %s and has not been matched", referral.Status))
	}
	if referral.MatchedTo == nil || *referral.MatchedTo != memberID {
		return nil, models.NewValidationError("memberId is not the matched member of this referral")
	}

	member := referral.MatchedMember
	if member == nil {
		if member, err = n.profiles.GetByID(ctx, memberID); err != nil {
			return nil, err
		}
	}

	data := referralEmailData(referral)
	data.MatchedMemberName = member.DisplayName()
	data.ClientEmail = derefString(referral.ClientEmail)
	data.ClientPhone = derefString(referral.ClientPhone)

	report := &NotificationReport{Success: true}
	report.add(n.mailer.Send(ctx, notifications.Message{
		To:       member.Email,
		ToName:   member.DisplayName(),
		Template: notifications.TemplateReferralMatched,
		Data:     data,
	}))
	n.realtime.publish(ctx, notifications.NewEvent(notifications.EventReferralMatched, map[string]any{
		"referral_id":      referral.ID.String(),
		"reference_number": referral.ReferenceNumber,
	}), memberID)
	n.realtime.publish(ctx, n.statusEvent(referral), referral.SubmittedBy)

	report.Message = sentMessage(report.EmailSent, "Matched member notified", "Matched member email could not be sent")
	return report, nil
}

// NotifyStatusUpdate emails the parties for REVIEWED (submitter) and ENGAGED
// (submitter and matched member). Any other value, known stage or not, is a
// successful no-op and the referral is not loaded.
func (n *ReferralNotifier) NotifyStatusUpdate(ctx context.Context, caller auth.Caller, referralID uuid.UUID, newStatus string) (*NotificationReport, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	newStatus = strings.TrimSpace(newStatus)
	if newStatus == "" {
		return nil, models.NewValidationError("newStatus is required")
	}
	report := &NotificationReport{Success: true, Results: []notifications.EmailResult{}}
	status := models.ReferralStatus(strings.ToUpper(newStatus))
	if status != models.ReferralStatusReviewed && status != models.ReferralStatusEngaged {
		report.Message = fmt.Sprintf("No notification required for status %s", newStatus)
		return report, nil
	}
	referral, err := n.load(ctx, referralID)
	if err != nil {
		return nil, err
	}

	switch status {
	case models.ReferralStatusReviewed:
		report.add(n.sendToSubmitter(ctx, referral, notifications.TemplateReferralStatusReviewed))
		n.realtime.publish(ctx, n.statusEvent(referral), referral.SubmittedBy)
	case models.ReferralStatusEngaged:
		report.add(n.sendToSubmitter(ctx, referral, notifications.TemplateReferralStatusEngaged))
		if member := referral.MatchedMember; member != nil {
			report.add(n.mailer.Send(ctx, notifications.Message{
				To:       member.Email,
				ToName:   member.DisplayName(),
				Template: notifications.TemplateReferralStatusEngaged,
				Data:     referralEmailData(referral),
			}))
		}
		n.realtime.publish(ctx, n.statusEvent(referral), referral.SubmittedBy, matchedID(referral))
	}

	report.Message = fmt.Sprintf("Sent %d of %d status emails", sentCount(report.Results), len(report.Results))
	return report, nil
}

// NotifyCompleted tells the submitter and the matched member that the referral
// closed, quoting the final value when recorded.
func (n *ReferralNotifier) NotifyCompleted(ctx context.Context, caller auth.Caller, referralID uuid.UUID) (*NotificationReport, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	referral, err := n.load(ctx, referralID)
	if err != nil {
		return nil, err
	}

	report := &NotificationReport{Success: true}
	report.add(n.sendToSubmitter(ctx, referral, notifications.TemplateReferralCompleted))
	if member := referral.MatchedMember; member != nil {
		report.add(n.mailer.Send(ctx, notifications.Message{
			To:       member.Email,
			ToName:   member.DisplayName(),
			Template: notifications.TemplateReferralCompleted,
			Data:     referralEmailData(referral),
		}))
	}
	n.realtime.publish(ctx, n.statusEvent(referral), referral.SubmittedBy, matchedID(referral))

	report.Message = fmt.Sprintf("Sent %d of %d completion emails", sentCount(report.Results), len(report.Results))
	return report, nil
}

// DispatchForTransition sends the notifications that belong to a finished transition.
func (n *ReferralNotifier) DispatchForTransition(ctx context.Context, caller auth.Caller, result *TransitionResult) (*NotificationReport, error) {
	switch result.To {
	case models.ReferralStatusMatched:
		return n.NotifyMatchedMember(ctx, caller, result.Referral.ID, matchedID(result.Referral))
	case models.ReferralStatusCompleted:
		return n.NotifyCompleted(ctx, caller, result.Referral.ID)
	default:
		return n.NotifyStatusUpdate(ctx, caller, result.Referral.ID, string(result.To))
	}
}

func matchedID(r *models.Referral) uuid.UUID {
	if r.MatchedTo == nil {
		return uuid.Nil
	}
	return *r.MatchedTo
}

func sentCount(results []notifications.EmailResult) int {
	n := 0
	for _, r := range results {
		if r.Sent {
			n++
		}
	}
	return n
}

func sentMessage(sent bool, ok, failed string) string {
	if sent {
		return ok
	}
	return failed
}

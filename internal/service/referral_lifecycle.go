package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"guildhall/internal/auth"
	"guildhall/internal/middleware"
	"guildhall/internal/models"
	"guildhall/internal/observability"
	"guildhall/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// TransitionRequest asks for one forward step of a referral.
type TransitionRequest struct {
	Target     models.ReferralStatus
	MatchedTo  *uuid.UUID
	FinalValue *string
	AdminNotes *string
}

// TransitionResult describes an applied transition.
type TransitionResult struct {
	Referral *models.Referral      `json:"referral"`
	From     models.ReferralStatus `json:"from"`
	To       models.ReferralStatus `json:"to"`
}

// ReferralLifecycle moves referrals through SUBMITTED, REVIEWED, MATCHED,
// ENGAGED and COMPLETED. It never sends email.
type ReferralLifecycle struct {
	referrals repository.ReferralRepository
	profiles  repository.ProfileRepository
	audit     repository.AuditLogRepository
	now       func() time.Time
}

func NewReferralLifecycle(
	referrals repository.ReferralRepository,
	profiles repository.ProfileRepository,
	audit repository.AuditLogRepository,
) *ReferralLifecycle {
	return &ReferralLifecycle{referrals: referrals, profiles: profiles, audit: audit, now: systemNow}
}

// Transition applies req to the referral. The write is guarded by the status that
// was read, so a concurrent transition makes this one fail with CONFLICT.
func (l *ReferralLifecycle) Transition(ctx context.Context, caller auth.Caller, id uuid.UUID, req TransitionRequest) (*TransitionResult, error) {
	span, ctx := observability.NewSpan(ctx, "ReferralLifecycle.Transition",
		attribute.String("referral.id", id.String()),
		attribute.String("referral.target", string(req.Target)),
	)
	defer span.End()

	result, err := l.transition(ctx, caller, id, req)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return result, nil
}

func (l *ReferralLifecycle) transition(ctx context.Context, caller auth.Caller, id uuid.UUID, req TransitionRequest) (*TransitionResult, error) {
	admin, err := auth.Authorize(&caller, auth.RoleAdmin)
	if err != nil {
		return nil, err
	}

	referral, err := l.referrals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := referral.Status
	if !models.CanTransition(from, req.Target) {
		return nil, models.NewInvalidTransitionError(from, req.Target)
	}

	now := l.now()
	patch := repository.ReferralPatch{Status: req.Target}
	details := map[string]any{"from": from, "to": req.Target}

	switch req.Target {
	case models.ReferralStatusReviewed:
		patch.ReviewedBy = &admin.ID
		patch.ReviewedAt = &now
	case models.ReferralStatusMatched:
		if req.MatchedTo == nil || *req.MatchedTo == uuid.Nil {
			return nil, models.NewValidationError("matchedTo is required to match a referral")
		}
		if _, err := l.profiles.GetByID(ctx, *req.MatchedTo); err != nil {
			return nil, err
		}
		patch.MatchedTo = req.MatchedTo
		patch.MatchedAt = &now
		details["matched_to"] = req.MatchedTo.String()
	case models.ReferralStatusEngaged:
		if referral.MatchedTo == nil {
			return nil, models.NewValidationError("referral has no matched member")
		}
		patch.EngagedAt = &now
	case models.ReferralStatusCompleted:
		patch.CompletedAt = &now
		if req.FinalValue != nil && strings.TrimSpace(*req.FinalValue) != "" {
			v := strings.TrimSpace(*req.FinalValue)
			patch.FinalValue = &v
			details["final_value"] = v
		}
	}
	if req.AdminNotes != nil {
		notes := strings.TrimSpace(*req.AdminNotes)
		patch.AdminNotes = &notes
	}

	if err := l.referrals.ApplyTransition(ctx, id, from, patch); err != nil {
		return nil, err
	}

	observability.ReferralTransitions.WithLabelValues(string(req.Target)).Inc()
	appendAudit(ctx, l.audit, models.NewAuditEntry(admin.ID, auditActionFor(req.Target), models.AuditTargetReferral, id, details))
	middleware.Logger.InfoContext(ctx, "referral transitioned",
		slog.String("referral_id", id.String()),
		slog.String("from", string(from)),
		slog.String("to", string(req.Target)),
	)

	updated, err := l.referrals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TransitionResult{Referral: updated, From: from, To: req.Target}, nil
}

func auditActionFor(status models.ReferralStatus) string {
	switch status {
	case models.ReferralStatusReviewed:
		return models.AuditReferralReviewed
	case models.ReferralStatusMatched:
		return models.AuditReferralMatched
	case models.ReferralStatusEngaged:
		return models.AuditReferralEngaged
	default:
		return models.AuditReferralCompleted
	}
}

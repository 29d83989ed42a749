package service

import (
	"context"
	"strings"

	"guildhall/internal/auth"
	"guildhall/internal/models"
	"guildhall/internal/repository"
	"guildhall/internal/validation"

	"github.com/google/uuid"
)

// CreateReferralRequest is a member's new client lead.
type CreateReferralRequest struct {
	ClientName         string `json:"clientName" validate:"required,max=160"`
	ClientEmail        string `json:"clientEmail" validate:"omitempty,email,max=255"`
	ClientPhone        string `json:"clientPhone" validate:"omitempty,phone"`
	ClientCompany      string `json:"clientCompany" validate:"omitempty,max=160"`
	ProjectType        string `json:"projectType" validate:"required,max=120"`
	ProjectDescription string `json:"projectDescription" validate:"omitempty,max=5000"`
	ValueRange         string `json:"valueRange" validate:"omitempty,max=80"`
	Location           string `json:"location" validate:"required,max=160"`
	Timeline           string `json:"timeline" validate:"omitempty,max=80"`
	Notes              string `json:"notes" validate:"omitempty,max=5000"`
}

// ReferralService handles member-facing referral reads and creation.
type ReferralService struct {
	referrals repository.ReferralRepository
}

func NewReferralService(referrals repository.ReferralRepository) *ReferralService {
	return &ReferralService{referrals: referrals}
}

// Create stores a new referral in SUBMITTED owned by the caller.
func (s *ReferralService) Create(ctx context.Context, caller auth.Caller, req CreateReferralRequest) (*models.Referral, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAuthenticated); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	referral := &models.Referral{
		SubmittedBy:        caller.ID,
		ClientName:         strings.TrimSpace(req.ClientName),
		ClientEmail:        optional(req.ClientEmail),
		ClientPhone:        optional(req.ClientPhone),
		ClientCompany:      optional(req.ClientCompany),
		ProjectType:        strings.TrimSpace(req.ProjectType),
		ProjectDescription: optional(req.ProjectDescription),
		ValueRange:         optional(req.ValueRange),
		Location:           strings.TrimSpace(req.Location),
		Timeline:           optional(req.Timeline),
		Notes:              optional(req.Notes),
		Status:             models.ReferralStatusSubmitted,
	}
	if err := s.referrals.Create(ctx, referral); err != nil {
		return nil, err
	}
	return referral, nil
}

// MyReferrals lists what the caller submitted and what they were matched to.
type MyReferrals struct {
	Submitted []models.Referral `json:"submitted"`
	Matched   []models.Referral `json:"matched"`
}

// ListMine returns the caller's submitted and matched referrals.
func (s *ReferralService) ListMine(ctx context.Context, caller auth.Caller) (*MyReferrals, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAuthenticated); err != nil {
		return nil, err
	}
	submitted, err := s.referrals.ListBySubmitter(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	matched, err := s.referrals.ListByMatchedMember(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	return &MyReferrals{Submitted: submitted, Matched: matched}, nil
}

// Get returns a referral visible to its submitter, its matched member, or an admin.
func (s *ReferralService) Get(ctx context.Context, caller auth.Caller, id uuid.UUID) (*models.Referral, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAuthenticated); err != nil {
		return nil, err
	}
	referral, err := s.referrals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, referral) {
		return nil, models.NewForbiddenError("You do not have access to this referral")
	}
	return referral, nil
}

// ListAll is the admin pipeline view.
func (s *ReferralService) ListAll(ctx context.Context, caller auth.Caller, filter repository.ReferralFilter) ([]models.Referral, error) {
	if _, err := auth.Authorize(&caller, auth.RoleAdmin); err != nil {
		return nil, err
	}
	return s.referrals.ListAll(ctx, filter)
}

func canView(caller auth.Caller, referral *models.Referral) bool {
	if caller.IsAdmin || referral.SubmittedBy == caller.ID {
		return true
	}
	return referral.MatchedTo != nil && *referral.MatchedTo == caller.ID
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

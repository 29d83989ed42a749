package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointStatus is the review state of a single verification point.
type PointStatus string

const (
	PointNotSubmitted PointStatus = "not_submitted"
	PointPending      PointStatus = "pending"
	PointVerified     PointStatus = "verified"
	PointRejected     PointStatus = "rejected"
)

// ApplicationStatus is the overall state of a vetting application.
type ApplicationStatus string

const (
	ApplicationStatusPending     ApplicationStatus = "pending"
	ApplicationStatusUnderReview ApplicationStatus = "under_review"
	ApplicationStatusApproved    ApplicationStatus = "approved"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
)

// BadgeLevel is the tier granted on approval.
type BadgeLevel string

const (
	BadgeVerified BadgeLevel = "verified"
	BadgeVetted   BadgeLevel = "vetted"
	BadgeElite    BadgeLevel = "elite"
)

var badgeAliases = map[string]BadgeLevel{
	"verified": BadgeVerified,
	"vetted":   BadgeVetted,
	"elite":    BadgeElite,
	"basic":    BadgeVerified,
	"standard": BadgeVetted,
	"premium":  BadgeElite,
	"gold":     BadgeElite,
}

// ParseBadgeLevel resolves a badge name, including legacy aliases.
func ParseBadgeLevel(raw string) (BadgeLevel, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", NewValidationError("badgeLevel is required")
	}
	level, ok := badgeAliases[key]
	if !ok {
		return "", NewValidationError(fmt.Sprintf("unknown badge level %q", raw))
	}
	return level, nil
}

// Label is the display name of the badge.
func (b BadgeLevel) Label() string {
	switch b {
	case BadgeVerified:
		return "Verified Member"
	case BadgeVetted:
		return "Vetted Professional"
	case BadgeElite:
		return "Elite Partner"
	default:
		return string(b)
	}
}

// Application is a member's vetting submission.
type Application struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"<-:create;type:uuid;not null;uniqueIndex" json:"user_id"`
	Profile *Profile  `gorm:"foreignKey:UserID" json:"profile,omitempty"`

	// Document points.
	IdentityDocument          PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"identity_document"`
	BusinessLicense           PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"business_license"`
	InsuranceCertificate      PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"insurance_certificate"`
	ProfessionalCertification PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"professional_certification"`
	TaxRegistration           PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"tax_registration"`

	ProfessionalReferences PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"professional_references"`
	PortfolioReview        PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"portfolio_review"`
	BackgroundCheck        PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"background_check"`
	YearsInPractice        PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"years_in_practice"`
	ClientTestimonials     PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"client_testimonials"`
	IndustryMembership     PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"industry_membership"`
	OnlinePresence         PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"online_presence"`
	CodeOfConduct          PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"code_of_conduct"`
	VideoInterview         PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"video_interview"`
	FinancialStanding      PointStatus `gorm:"type:varchar(20);not null;default:'not_submitted'" json:"financial_standing"`

	TosAccepted     bool              `gorm:"not null;default:false" json:"tos_accepted"`
	PrivacyAccepted bool              `gorm:"not null;default:false" json:"privacy_accepted"`
	Status          ApplicationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	AdminNotes      string            `gorm:"type:text" json:"admin_notes,omitempty"`
	ReviewedBy      *uuid.UUID        `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`

	LastReminderSent *time.Time `json:"last_reminder_sent,omitempty"`
	ReminderCount    int        `gorm:"not null;default:0" json:"reminder_count"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the id and normalizes empty point statuses.
func (a *Application) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = ApplicationStatusPending
	}
	for _, p := range a.pointRefs() {
		if *p.status == "" {
			*p.status = PointNotSubmitted
		}
	}
	return nil
}

// VerificationPoint is one entry of an application's point snapshot.
type VerificationPoint struct {
	Key      string      `json:"key"`
	Label    string      `json:"label"`
	Document bool        `json:"document"`
	Status   PointStatus `json:"status"`
}

type pointRef struct {
	key      string
	label    string
	document bool
	status   *PointStatus
}

func (a *Application) pointRefs() []pointRef {
	return []pointRef{
		{"identity_document", "Government-issued ID", true, &a.IdentityDocument},
		{"business_license", "Business license", true, &a.BusinessLicense},
		{"insurance_certificate", "Insurance certificate", true, &a.InsuranceCertificate},
		{"professional_certification", "Professional certification", true, &a.ProfessionalCertification},
		{"tax_registration", "Tax registration", true, &a.TaxRegistration},
		{"professional_references", "Professional references", false, &a.ProfessionalReferences},
		{"portfolio_review", "Portfolio review", false, &a.PortfolioReview},
		{"background_check", "Background check", false, &a.BackgroundCheck},
		{"years_in_practice", "Years in practice", false, &a.YearsInPractice},
		{"client_testimonials", "Client testimonials", false, &a.ClientTestimonials},
		{"industry_membership", "Industry association membership", false, &a.IndustryMembership},
		{"online_presence", "Online presence", false, &a.OnlinePresence},
		{"code_of_conduct", "Code of conduct", false, &a.CodeOfConduct},
		{"video_interview", "Video interview", false, &a.VideoInterview},
		{"financial_standing", "Financial standing", false, &a.FinancialStanding},
	}
}

// Points returns a snapshot of all fifteen verification points in display order.
func (a *Application) Points() []VerificationPoint {
	refs := a.pointRefs()
	out := make([]VerificationPoint, 0, len(refs))
	for _, p := range refs {
		out = append(out, VerificationPoint{
			Key:      p.key,
			Label:    p.label,
			Document: p.document,
			Status:   *p.status,
		})
	}
	return out
}

// DocumentsUntouched reports whether none of the five document points has been submitted.
func (a *Application) DocumentsUntouched() bool {
	for _, p := range a.pointRefs() {
		if p.document && *p.status != PointNotSubmitted && *p.status != "" {
			return false
		}
	}
	return true
}

// SetPoint updates a point by key. It returns false for unknown keys.
func (a *Application) SetPoint(key string, status PointStatus) bool {
	for _, p := range a.pointRefs() {
		if p.key == key {
			*p.status = status
			return true
		}
	}
	return false
}

// ValidPointStatus reports whether s is one of the four point states.
func ValidPointStatus(s PointStatus) bool {
	switch s {
	case PointNotSubmitted, PointPending, PointVerified, PointRejected:
		return true
	default:
		return false
	}
}

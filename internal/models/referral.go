package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferralStatus is a stage of the referral pipeline.
type ReferralStatus string

const (
	ReferralStatusSubmitted ReferralStatus = "SUBMITTED"
	ReferralStatusReviewed  ReferralStatus = "REVIEWED"
	ReferralStatusMatched   ReferralStatus = "MATCHED"
	ReferralStatusEngaged   ReferralStatus = "ENGAGED"
	ReferralStatusCompleted ReferralStatus = "COMPLETED"
)

// ReferralStatuses lists every stage in pipeline order.
var ReferralStatuses = []ReferralStatus{
	ReferralStatusSubmitted,
	ReferralStatusReviewed,
	ReferralStatusMatched,
	ReferralStatusEngaged,
	ReferralStatusCompleted,
}

// ParseReferralStatus accepts a stage name in any case.
func ParseReferralStatus(raw string) (ReferralStatus, error) {
	s := ReferralStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if s.Rank() < 0 {
		return "", NewValidationError(fmt.Sprintf("unknown referral status %q", raw))
	}
	return s, nil
}

// Rank is the zero-based position of s in the pipeline, or -1 when s is not a stage.
func (s ReferralStatus) Rank() int {
	switch s {
	case ReferralStatusSubmitted:
		return 0
	case ReferralStatusReviewed:
		return 1
	case ReferralStatusMatched:
		return 2
	case ReferralStatusEngaged:
		return 3
	case ReferralStatusCompleted:
		return 4
	default:
		return -1
	}
}

// Next returns the stage that follows s. ok is false for COMPLETED and unknown values.
func (s ReferralStatus) Next() (ReferralStatus, bool) {
	switch s {
	case ReferralStatusSubmitted:
		return ReferralStatusReviewed, true
	case ReferralStatusReviewed:
		return ReferralStatusMatched, true
	case ReferralStatusMatched:
		return ReferralStatusEngaged, true
	case ReferralStatusEngaged:
		return ReferralStatusCompleted, true
	default:
		return "", false
	}
}

// Reached reports whether s is at or past target.
func (s ReferralStatus) Reached(target ReferralStatus) bool {
	return s.Rank() >= 0 && target.Rank() >= 0 && s.Rank() >= target.Rank()
}

// CanTransition reports whether a referral in from may move to to. Only the
// immediate successor is legal, so every stage timestamp is stamped exactly once.
func CanTransition(from, to ReferralStatus) bool {
	switch {
	case from == ReferralStatusSubmitted && to == ReferralStatusReviewed:
		return true
	case from == ReferralStatusReviewed && to == ReferralStatusMatched:
		return true
	case from == ReferralStatusMatched && to == ReferralStatusEngaged:
		return true
	case from == ReferralStatusEngaged && to == ReferralStatusCompleted:
		return true
	default:
		return false
	}
}

// Referral is a client lead submitted by one member for matching to another.
type Referral struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReferenceNumber string    `gorm:"-" json:"reference_number"`

	SubmittedBy uuid.UUID `gorm:"<-:create;type:uuid;not null;index" json:"submitted_by"`
	Submitter   *Profile  `gorm:"foreignKey:SubmittedBy" json:"submitter,omitempty"`

	ClientName    string  `gorm:"size:160;not null" json:"client_name"`
	ClientEmail   *string `gorm:"size:255" json:"client_email,omitempty"`
	ClientPhone   *string `gorm:"size:40" json:"client_phone,omitempty"`
	ClientCompany *string `gorm:"size:160" json:"client_company,omitempty"`

	ProjectType        string  `gorm:"size:120;not null" json:"project_type"`
	ProjectDescription *string `gorm:"type:text" json:"project_description,omitempty"`
	ValueRange         *string `gorm:"size:80" json:"value_range,omitempty"`
	Location           string  `gorm:"size:160;not null" json:"location"`
	Timeline           *string `gorm:"size:80" json:"timeline,omitempty"`
	Notes              *string `gorm:"type:text" json:"notes,omitempty"`

	Status        ReferralStatus `gorm:"type:varchar(20);not null;default:'SUBMITTED';index" json:"status"`
	MatchedTo     *uuid.UUID     `gorm:"type:uuid;index" json:"matched_to,omitempty"`
	MatchedMember *Profile       `gorm:"foreignKey:MatchedTo" json:"matched_member,omitempty"`
	ReviewedBy    *uuid.UUID     `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
	MatchedAt     *time.Time     `json:"matched_at,omitempty"`
	EngagedAt     *time.Time     `json:"engaged_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	AdminNotes    string         `gorm:"type:text" json:"admin_notes,omitempty"`
	FinalValue    *string        `gorm:"size:80" json:"final_value,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReferenceNumberFor derives the human-readable reference for a referral id.
func ReferenceNumberFor(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return "REF-" + strings.ToUpper(hex[:8])
}

// BeforeCreate assigns the id and the initial stage.
func (r *Referral) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = ReferralStatusSubmitted
	}
	r.ReferenceNumber = ReferenceNumberFor(r.ID)
	return nil
}

// AfterFind fills the derived reference number.
func (r *Referral) AfterFind(_ *gorm.DB) error {
	r.ReferenceNumber = ReferenceNumberFor(r.ID)
	return nil
}

// DisplayValue is the value shown to members: the final value when recorded,
// else the original estimate, else "Not specified".
func (r *Referral) DisplayValue() string {
	if r.FinalValue != nil && strings.TrimSpace(*r.FinalValue) != "" {
		return *r.FinalValue
	}
	if r.ValueRange != nil && strings.TrimSpace(*r.ValueRange) != "" {
		return *r.ValueRange
	}
	return "Not specified"
}

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions recorded by admin operations.
const (
	AuditRejectedApplication = "rejected_application"
	AuditSentReminder        = "sent_application_reminder"
	AuditReferralReviewed    = "referral_reviewed"
	AuditReferralMatched     = "referral_matched"
	AuditReferralEngaged     = "referral_engaged"
	AuditReferralCompleted   = "referral_completed"
)

// Audit target types.
const (
	AuditTargetApplication = "application"
	AuditTargetReferral    = "referral"
)

// AdminAuditLog is an append-only record of an admin action.
type AdminAuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AdminID    uuid.UUID `gorm:"type:uuid;not null;index" json:"admin_id"`
	Action     string    `gorm:"size:64;not null;index" json:"action"`
	TargetType string    `gorm:"size:32;not null" json:"target_type"`
	TargetID   uuid.UUID `gorm:"type:uuid;not null;index" json:"target_id"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName keeps the singular table name used by the hosted schema.
func (AdminAuditLog) TableName() string {
	return "admin_audit_log"
}

// BeforeCreate assigns an id when missing.
func (l *AdminAuditLog) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// NewAuditEntry builds an entry with details encoded as JSON.
func NewAuditEntry(adminID uuid.UUID, action, targetType string, targetID uuid.UUID, details map[string]any) *AdminAuditLog {
	entry := &AdminAuditLog{
		AdminID:    adminID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = string(raw)
		}
	}
	return entry
}

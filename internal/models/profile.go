package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is the member/admin identity record. Rows are owned by the identity
// subsystem; this service reads them and only writes during seeding.
type Profile struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string      `gorm:"size:255;not null;uniqueIndex" json:"email"`
	FullName    string      `gorm:"size:160" json:"full_name"`
	CompanyName string      `gorm:"size:160" json:"company_name"`
	Phone       string      `gorm:"size:40" json:"phone,omitempty"`
	AvatarURL   string      `gorm:"type:text" json:"avatar_url,omitempty"`
	IsAdmin     bool        `gorm:"not null;default:false" json:"is_admin"`
	IsVerified  bool        `gorm:"not null;default:false" json:"is_verified"`
	IsPublic    bool        `gorm:"not null;default:false;index" json:"is_public"`
	BadgeLevel  *BadgeLevel `gorm:"type:varchar(20)" json:"badge_level,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not supply one.
func (p *Profile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DisplayName falls back to the mailbox name when no full name is recorded.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	if at := strings.Index(p.Email, "@"); at > 0 {
		return p.Email[:at]
	}
	return p.Email
}

// PublicProfile is the directory view of a member; contact details are omitted.
type PublicProfile struct {
	ID          uuid.UUID   `json:"id"`
	FullName    string      `json:"full_name"`
	CompanyName string      `json:"company_name"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
	BadgeLevel  *BadgeLevel `json:"badge_level,omitempty"`
}

// Public returns the directory view of p.
func (p *Profile) Public() PublicProfile {
	return PublicProfile{
		ID:          p.ID,
		FullName:    p.FullName,
		CompanyName: p.CompanyName,
		AvatarURL:   p.AvatarURL,
		BadgeLevel:  p.BadgeLevel,
	}
}

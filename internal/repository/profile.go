package repository

import (
	"context"

	"guildhall/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleFlags is the slice of a profile the authorization guard needs.
type RoleFlags struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	IsAdmin    bool      `json:"is_admin"`
	IsVerified bool      `json:"is_verified"`
}

// ProfileRepository reads member identity records.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetRoleFlags(ctx context.Context, id uuid.UUID) (*RoleFlags, error)
	ListAdmins(ctx context.Context) ([]models.Profile, error)
	ListPublicMembers(ctx context.Context, limit, offset int) ([]models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := readDB(r.db).WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, lookupError(err, "Profile", id)
	}
	return &profile, nil
}

// GetByEmail returns nil, nil when no profile has the address.
func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := readDB(r.db).WithContext(ctx).Where("email = ?", email).Limit(1).Find(&profile).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if profile.ID == uuid.Nil {
		return nil, nil
	}
	return &profile, nil
}

func (r *profileRepository) GetRoleFlags(ctx context.Context, id uuid.UUID) (*RoleFlags, error) {
	var flags RoleFlags
	err := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Select("id", "email", "is_admin", "is_verified").
		Where("id = ?", id).
		Take(&flags).Error
	if err != nil {
		return nil, lookupError(err, "Profile", id)
	}
	return &flags, nil
}

func (r *profileRepository) ListAdmins(ctx context.Context) ([]models.Profile, error) {
	var admins []models.Profile
	if err := readDB(r.db).WithContext(ctx).
		Where("is_admin = ?", true).
		Order("created_at ASC").
		Find(&admins).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return admins, nil
}

func (r *profileRepository) ListPublicMembers(ctx context.Context, limit, offset int) ([]models.Profile, error) {
	var members []models.Profile
	if offset < 0 {
		offset = 0
	}
	if err := readDB(r.db).WithContext(ctx).
		Where("is_public = ?", true).
		Order("company_name ASC, full_name ASC").
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Profile already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

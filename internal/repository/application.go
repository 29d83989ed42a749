package repository

import (
	"context"
	"time"

	"guildhall/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationRepository persists vetting applications.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Application, error)
	// ListPending returns pending applications, oldest created first, with profiles loaded.
	ListPending(ctx context.Context) ([]models.Application, error)
	MarkRejected(ctx context.Context, id, reviewerID uuid.UUID, adminNotes string, at time.Time) error
	RecordReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository returns a new ApplicationRepository implementation.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *models.Application) error {
	if err := r.db.WithContext(ctx).Omit("Profile").Create(app).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("Application already exists for this member")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).Preload("Profile").Where("id = ?", id).First(&app).Error; err != nil {
		return nil, lookupError(err, "Application", id)
	}
	return &app, nil
}

func (r *applicationRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := readDB(r.db).WithContext(ctx).Where("user_id = ?", userID).First(&app).Error; err != nil {
		return nil, lookupError(err, "Application", userID)
	}
	return &app, nil
}

func (r *applicationRepository) ListPending(ctx context.Context) ([]models.Application, error) {
	var apps []models.Application
	if err := r.db.WithContext(ctx).
		Preload("Profile").
		Where("status = ?", models.ApplicationStatusPending).
		Order("created_at ASC").
		Find(&apps).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return apps, nil
}

func (r *applicationRepository) MarkRejected(ctx context.Context, id, reviewerID uuid.UUID, adminNotes string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.ApplicationStatusRejected,
			"admin_notes": adminNotes,
			"reviewed_by": reviewerID,
			"reviewed_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Application", id)
	}
	return nil
}

func (r *applicationRepository) RecordReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reminder_count":     gorm.Expr("reminder_count + 1"),
			"last_reminder_sent": at,
		})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Application", id)
	}
	return nil
}

package repository

import (
	"context"

	"guildhall/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLogRepository appends to the admin audit trail. Rows are never updated.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *models.AdminAuditLog) error
	ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID) ([]models.AdminAuditLog, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository returns a new AuditLogRepository implementation.
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Append(ctx context.Context, entry *models.AdminAuditLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *auditLogRepository) ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID) ([]models.AdminAuditLog, error) {
	var entries []models.AdminAuditLog
	if err := readDB(r.db).WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

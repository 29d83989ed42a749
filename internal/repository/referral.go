package repository

import (
	"context"
	"time"

	"guildhall/internal/models"
	"guildhall/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ReferralFilter narrows admin listings.
type ReferralFilter struct {
	Status *models.ReferralStatus
	Limit  int
	Offset int
}

// ReferralPatch holds the columns a lifecycle transition writes. Nil fields are left untouched.
type ReferralPatch struct {
	Status      models.ReferralStatus
	MatchedTo   *uuid.UUID
	ReviewedBy  *uuid.UUID
	ReviewedAt  *time.Time
	MatchedAt   *time.Time
	EngagedAt   *time.Time
	CompletedAt *time.Time
	AdminNotes  *string
	FinalValue  *string
}

func (p ReferralPatch) columns(now time.Time) map[string]interface{} {
	cols := map[string]interface{}{
		"status":     p.Status,
		"updated_at": now,
	}
	if p.MatchedTo != nil {
		cols["matched_to"] = *p.MatchedTo
	}
	if p.ReviewedBy != nil {
		cols["reviewed_by"] = *p.ReviewedBy
	}
	if p.ReviewedAt != nil {
		cols["reviewed_at"] = *p.ReviewedAt
	}
	if p.MatchedAt != nil {
		cols["matched_at"] = *p.MatchedAt
	}
	if p.EngagedAt != nil {
		cols["engaged_at"] = *p.EngagedAt
	}
	if p.CompletedAt != nil {
		cols["completed_at"] = *p.CompletedAt
	}
	if p.AdminNotes != nil {
		cols["admin_notes"] = *p.AdminNotes
	}
	if p.FinalValue != nil {
		cols["final_value"] = *p.FinalValue
	}
	return cols
}

// ReferralRepository persists referrals. It holds no lifecycle rules.
type ReferralRepository interface {
	Create(ctx context.Context, referral *models.Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Referral, error)
	ListBySubmitter(ctx context.Context, submitterID uuid.UUID) ([]models.Referral, error)
	ListByMatchedMember(ctx context.Context, memberID uuid.UUID) ([]models.Referral, error)
	ListAll(ctx context.Context, filter ReferralFilter) ([]models.Referral, error)
	// ApplyTransition writes patch only while the row is still in status from.
	// A row that moved on in the meantime yields a CONFLICT error.
	ApplyTransition(ctx context.Context, id uuid.UUID, from models.ReferralStatus, patch ReferralPatch) error
}

type referralRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewReferralRepository returns a new ReferralRepository implementation.
func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &referralRepository{db: db, now: time.Now}
}

func (r *referralRepository) Create(ctx context.Context, referral *models.Referral) error {
	if err := r.db.WithContext(ctx).Omit("Submitter", "MatchedMember").Create(referral).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *referralRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := r.db.WithContext(ctx).
		Preload("Submitter").
		Preload("MatchedMember").
		Where("id = ?", id).
		First(&referral).Error; err != nil {
		return nil, lookupError(err, "Referral", id)
	}
	return &referral, nil
}

func (r *referralRepository) ListBySubmitter(ctx context.Context, submitterID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	if err := readDB(r.db).WithContext(ctx).
		Preload("MatchedMember").
		Where("submitted_by = ?", submitterID).
		Order("created_at DESC").
		Find(&referrals).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return referrals, nil
}

func (r *referralRepository) ListByMatchedMember(ctx context.Context, memberID uuid.UUID) ([]models.Referral, error) {
	var referrals []models.Referral
	if err := readDB(r.db).WithContext(ctx).
		Preload("Submitter").
		Where("matched_to = ?", memberID).
		Order("matched_at DESC").
		Find(&referrals).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return referrals, nil
}

func (r *referralRepository) ListAll(ctx context.Context, filter ReferralFilter) ([]models.Referral, error) {
	var referrals []models.Referral
	q := readDB(r.db).WithContext(ctx).
		Preload("Submitter").
		Preload("MatchedMember")
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if err := q.Order("created_at DESC").
		Limit(clampLimit(filter.Limit)).
		Offset(offset).
		Find(&referrals).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return referrals, nil
}

func (r *referralRepository) ApplyTransition(ctx context.Context, id uuid.UUID, from models.ReferralStatus, patch ReferralPatch) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "ApplyTransition", "referrals")
	defer span.End()
	span.SetAttributes(
		attribute.String("referral.from", string(from)),
		attribute.String("referral.to", string(patch.Status)),
	)

	result := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("id = ? AND status = ?", id, from).
		Updates(patch.columns(r.now().UTC()))
	if result.Error != nil {
		span.RecordError(result.Error)
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Referral{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return models.NewInternalError(err)
	}
	if count == 0 {
		return models.NewNotFoundError("Referral", id)
	}
	return models.NewConflictError("Referral status changed concurrently; reload and retry")
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"guildhall/internal/models"
	"guildhall/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return gormDB, mock
}

func TestReferralRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReferralRepository(db)
	ctx := context.Background()

	submitter := testutil.CreateProfile(t, db, false)
	referral := &models.Referral{
		SubmittedBy: submitter.ID,
		ClientName:  "Harbor Dental",
		ProjectType: "Office fit-out",
		Location:    "Denver, CO",
	}
	require.NoError(t, repo.Create(ctx, referral))
	assert.Equal(t, models.ReferralStatusSubmitted, referral.Status)
	assert.Equal(t, models.ReferenceNumberFor(referral.ID), referral.ReferenceNumber)

	got, err := repo.GetByID(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, "Harbor Dental", got.ClientName)
	require.NotNil(t, got.Submitter)
	assert.Equal(t, submitter.Email, got.Submitter.Email)
	assert.Nil(t, got.MatchedMember)
	assert.Nil(t, got.ReviewedAt)
	assert.Equal(t, referral.ReferenceNumber, got.ReferenceNumber)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestReferralRepository_Listing(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReferralRepository(db)
	ctx := context.Background()

	alice := testutil.CreateProfile(t, db, false)
	bob := testutil.CreateProfile(t, db, false)
	testutil.CreateReferral(t, db, alice.ID)
	testutil.CreateReferral(t, db, alice.ID, func(r *models.Referral) {
		r.Status = models.ReferralStatusMatched
		r.MatchedTo = &bob.ID
	})
	testutil.CreateReferral(t, db, bob.ID)

	mine, err := repo.ListBySubmitter(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	matched, err := repo.ListByMatchedMember(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.NotNil(t, matched[0].Submitter)
	assert.Equal(t, alice.ID, matched[0].Submitter.ID)

	all, err := repo.ListAll(ctx, ReferralFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	status := models.ReferralStatusSubmitted
	submitted, err := repo.ListAll(ctx, ReferralFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, submitted, 2)

	page, err := repo.ListAll(ctx, ReferralFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestReferralRepository_ApplyTransition(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewReferralRepository(db)
	ctx := context.Background()

	admin := testutil.CreateProfile(t, db, true)
	submitter := testutil.CreateProfile(t, db, false)
	referral := testutil.CreateReferral(t, db, submitter.ID)

	now := time.Now().UTC().Truncate(time.Second)
	notes := "looks legitimate"

	t.Run("applies while status matches", func(t *testing.T) {
		err := repo.ApplyTransition(ctx, referral.ID, models.ReferralStatusSubmitted, ReferralPatch{
			Status:     models.ReferralStatusReviewed,
			ReviewedBy: &admin.ID,
			ReviewedAt: &now,
			AdminNotes: &notes,
		})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, referral.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReferralStatusReviewed, got.Status)
		require.NotNil(t, got.ReviewedBy)
		assert.Equal(t, admin.ID, *got.ReviewedBy)
		require.NotNil(t, got.ReviewedAt)
		assert.WithinDuration(t, now, *got.ReviewedAt, time.Second)
		assert.Equal(t, notes, got.AdminNotes)
		assert.Equal(t, submitter.ID, got.SubmittedBy)
	})

	t.Run("stale from status is a conflict", func(t *testing.T) {
		err := repo.ApplyTransition(ctx, referral.ID, models.ReferralStatusSubmitted, ReferralPatch{
			Status: models.ReferralStatusReviewed,
		})
		assert.True(t, models.IsCode(err, models.CodeConflict))
	})

	t.Run("missing referral is not found", func(t *testing.T) {
		err := repo.ApplyTransition(ctx, uuid.New(), models.ReferralStatusSubmitted, ReferralPatch{
			Status: models.ReferralStatusReviewed,
		})
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})
}

func TestReferralRepository_ApplyTransition_GuardedUpdateSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &referralRepository{db: db, now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }}
	ctx := context.Background()

	id := uuid.New()
	member := uuid.New()
	matchedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "referrals" SET "matched_at"=$1,"matched_to"=$2,"status"=$3,"updated_at"=$4 WHERE id = $5 AND status = $6`)).
		WithArgs(matchedAt, member, models.ReferralStatusMatched, sqlmock.AnyArg(), id, models.ReferralStatusReviewed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyTransition(ctx, id, models.ReferralStatusReviewed, ReferralPatch{
		Status:    models.ReferralStatusMatched,
		MatchedTo: &member,
		MatchedAt: &matchedAt,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

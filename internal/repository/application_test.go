package repository

import (
	"context"
	"testing"
	"time"

	"guildhall/internal/models"
	"guildhall/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationRepository_CreateRejectsDuplicate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	member := testutil.CreateProfile(t, db, false)
	first := &models.Application{UserID: member.ID, TosAccepted: true}
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, models.ApplicationStatusPending, first.Status)
	assert.Equal(t, models.PointNotSubmitted, first.IdentityDocument)

	err := repo.Create(ctx, &models.Application{UserID: member.ID})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	got, err := repo.GetByUserID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, got.TosAccepted)
}

func TestApplicationRepository_ListPendingOldestFirst(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	newer := testutil.CreateApplication(t, db, testutil.CreateProfile(t, db, false).ID, now.Add(-24*time.Hour))
	older := testutil.CreateApplication(t, db, testutil.CreateProfile(t, db, false).ID, now.Add(-72*time.Hour))
	testutil.CreateApplication(t, db, testutil.CreateProfile(t, db, false).ID, now.Add(-96*time.Hour), func(a *models.Application) {
		a.Status = models.ApplicationStatusApproved
	})

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)
	assert.Equal(t, newer.ID, pending[1].ID)
	require.NotNil(t, pending[0].Profile)
}

func TestApplicationRepository_MarkRejected(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	admin := testutil.CreateProfile(t, db, true)
	app := testutil.CreateApplication(t, db, testutil.CreateProfile(t, db, false).ID, time.Now().UTC())

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.MarkRejected(ctx, app.ID, admin.ID, "Missing license", at))

	got, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, got.Status)
	assert.Equal(t, "Missing license", got.AdminNotes)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, admin.ID, *got.ReviewedBy)
	require.NotNil(t, got.Profile)

	err = repo.MarkRejected(ctx, uuid.New(), admin.ID, "", at)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestApplicationRepository_RecordReminderSent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	app := testutil.CreateApplication(t, db, testutil.CreateProfile(t, db, false).ID, time.Now().UTC().Add(-4*24*time.Hour))

	first := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.RecordReminderSent(ctx, app.ID, first))
	second := first.Add(time.Hour)
	require.NoError(t, repo.RecordReminderSent(ctx, app.ID, second))

	got, err := repo.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReminderCount)
	require.NotNil(t, got.LastReminderSent)
	assert.WithinDuration(t, second, *got.LastReminderSent, time.Second)
}

// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"guildhall/internal/database"
	"guildhall/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens an isolated in-memory SQLite database with the full schema.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateProfile inserts a profile with a unique email.
func CreateProfile(t *testing.T, db *gorm.DB, isAdmin bool, mutate ...func(*models.Profile)) *models.Profile {
	t.Helper()
	id := uuid.New()
	p := &models.Profile{
		ID:          id,
		Email:       fmt.Sprintf("member-%s@example.com", id.String()[:8]),
		FullName:    "Member " + id.String()[:4],
		CompanyName: "Acme " + id.String()[:4],
		IsAdmin:     isAdmin,
		IsVerified:  true,
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateReferral inserts a SUBMITTED referral owned by submitter.
func CreateReferral(t *testing.T, db *gorm.DB, submitter uuid.UUID, mutate ...func(*models.Referral)) *models.Referral {
	t.Helper()
	email := "client@example.com"
	phone := "+1 555 0100"
	valueRange := "$10k-$25k"
	r := &models.Referral{
		SubmittedBy: submitter,
		ClientName:  "Client Co",
		ClientEmail: &email,
		ClientPhone: &phone,
		ProjectType: "Kitchen remodel",
		ValueRange:  &valueRange,
		Location:    "Austin, TX",
	}
	for _, m := range mutate {
		m(r)
	}
	require.NoError(t, db.Omit("Submitter", "MatchedMember").Create(r).Error)
	return r
}

// CreateApplication inserts a pending application for userID created at createdAt.
func CreateApplication(t *testing.T, db *gorm.DB, userID uuid.UUID, createdAt time.Time, mutate ...func(*models.Application)) *models.Application {
	t.Helper()
	a := &models.Application{
		UserID:    userID,
		Status:    models.ApplicationStatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	for _, m := range mutate {
		m(a)
	}
	require.NoError(t, db.Omit("Profile").Create(a).Error)
	return a
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBadgeLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want BadgeLevel
	}{
		{"verified", BadgeVerified},
		{"Vetted", BadgeVetted},
		{"elite", BadgeElite},
		{"basic", BadgeVerified},
		{"standard", BadgeVetted},
		{"premium", BadgeElite},
		{" GOLD ", BadgeElite},
	}
	for _, tt := range tests {
		got, err := ParseBadgeLevel(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := ParseBadgeLevel("platinum")
	assert.True(t, IsCode(err, CodeValidation))
	_, err = ParseBadgeLevel("")
	assert.True(t, IsCode(err, CodeValidation))
}

func TestApplication_PointsSnapshot(t *testing.T) {
	app := &Application{}
	require.NoError(t, app.BeforeCreate(nil))

	points := app.Points()
	require.Len(t, points, 15)

	documents := 0
	for _, p := range points {
		assert.Equal(t, PointNotSubmitted, p.Status, p.Key)
		if p.Document {
			documents++
		}
	}
	assert.Equal(t, 5, documents)
	assert.Equal(t, ApplicationStatusPending, app.Status)
}

func TestApplication_DocumentsUntouched(t *testing.T) {
	app := &Application{}
	require.NoError(t, app.BeforeCreate(nil))
	assert.True(t, app.DocumentsUntouched())

	require.True(t, app.SetPoint("background_check", PointVerified))
	assert.True(t, app.DocumentsUntouched(), "non-document points do not count")

	require.True(t, app.SetPoint("tax_registration", PointPending))
	assert.False(t, app.DocumentsUntouched())

	assert.False(t, app.SetPoint("shoe_size", PointPending))
}

package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_OnlyImmediateSuccessor(t *testing.T) {
	for i, from := range ReferralStatuses {
		for j, to := range ReferralStatuses {
			want := j == i+1
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("ARCHIVED", ReferralStatusReviewed))
	assert.False(t, CanTransition(ReferralStatusSubmitted, "archived"))
}

func TestReferralStatus_NextFollowsRank(t *testing.T) {
	for _, s := range ReferralStatuses {
		next, ok := s.Next()
		if s == ReferralStatusCompleted {
			require.False(t, ok)
			continue
		}
		require.True(t, ok)
		assert.Equal(t, s.Rank()+1, next.Rank())
		assert.True(t, CanTransition(s, next))
	}
}

func TestReferralStatus_Reached(t *testing.T) {
	assert.True(t, ReferralStatusEngaged.Reached(ReferralStatusMatched))
	assert.True(t, ReferralStatusMatched.Reached(ReferralStatusMatched))
	assert.False(t, ReferralStatusReviewed.Reached(ReferralStatusMatched))
	assert.False(t, ReferralStatus("bogus").Reached(ReferralStatusSubmitted))
}

func TestParseReferralStatus(t *testing.T) {
	s, err := ParseReferralStatus(" engaged ")
	require.NoError(t, err)
	assert.Equal(t, ReferralStatusEngaged, s)

	_, err = ParseReferralStatus("ARCHIVED")
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeValidation))
}

func TestReferenceNumberFor(t *testing.T) {
	id := uuid.MustParse("3f2a9c1e-0000-4000-8000-000000000000")
	assert.Equal(t, "REF-3F2A9C1E", ReferenceNumberFor(id))
}

func TestReferral_DisplayValue(t *testing.T) {
	final := "$42,000"
	estimate := "$25k-$50k"
	blank := "  "

	tests := []struct {
		name     string
		referral Referral
		want     string
	}{
		{"final value wins", Referral{FinalValue: &final, ValueRange: &estimate}, final},
		{"falls back to estimate", Referral{ValueRange: &estimate}, estimate},
		{"blank final ignored", Referral{FinalValue: &blank, ValueRange: &estimate}, estimate},
		{"nothing recorded", Referral{}, "Not specified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.referral.DisplayValue())
		})
	}
}

func TestReferral_BeforeCreateDefaults(t *testing.T) {
	r := &Referral{}
	require.NoError(t, r.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, ReferralStatusSubmitted, r.Status)
	assert.Equal(t, ReferenceNumberFor(r.ID), r.ReferenceNumber)
}

package service

import (
	"context"
	"testing"

	"guildhall/internal/models"
	"guildhall/internal/repository"
	"guildhall/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralService_Create(t *testing.T) {
	f := newFixture(t)
	svc := NewReferralService(f.referrals)
	ctx := context.Background()

	ref, err := svc.Create(ctx, callerFor(f.submitter), CreateReferralRequest{
		ClientName:  "  Jordan Client ",
		ClientEmail: "jordan@example.com",
		ClientPhone: "+1 (512) 555-0199",
		ProjectType: "Office fit-out",
		Location:    "Denver, CO",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusSubmitted, ref.Status)
	assert.Equal(t, f.submitter.ID, ref.SubmittedBy)
	assert.Equal(t, "Jordan Client", ref.ClientName)
	assert.Nil(t, ref.ValueRange)
	assert.Regexp(t, `^REF-[0-9A-F]{8}$`, ref.ReferenceNumber)
}

func TestReferralService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewReferralService(f.referrals)

	tests := []struct {
		name string
		req  CreateReferralRequest
		msg  string
	}{
		{"missing client", CreateReferralRequest{ProjectType: "x", Location: "y"}, "clientName is required"},
		{"missing location", CreateReferralRequest{ClientName: "a", ProjectType: "x"}, "location is required"},
		{"bad email", CreateReferralRequest{ClientName: "a", ProjectType: "x", Location: "y", ClientEmail: "nope"}, "clientEmail must be a valid email address"},
		{"bad phone", CreateReferralRequest{ClientName: "a", ProjectType: "x", Location: "y", ClientPhone: "call me"}, "clientPhone must be a valid phone number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), callerFor(f.submitter), tt.req)
			assertCode(t, err, models.CodeValidation)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestReferralService_Visibility(t *testing.T) {
	f := newFixture(t)
	svc := NewReferralService(f.referrals)
	ctx := context.Background()
	ref := matchedReferral(t, f, models.ReferralStatusMatched)
	outsider := testutil.CreateProfile(t, f.db, false)

	for _, p := range []*models.Profile{f.submitter, f.member, f.admin} {
		got, err := svc.Get(ctx, callerFor(p), ref.ID)
		require.NoError(t, err)
		assert.Equal(t, ref.ID, got.ID)
	}

	_, err := svc.Get(ctx, callerFor(outsider), ref.ID)
	assertCode(t, err, models.CodeForbidden)

	mine, err := svc.ListMine(ctx, callerFor(f.member))
	require.NoError(t, err)
	assert.Empty(t, mine.Submitted)
	require.Len(t, mine.Matched, 1)

	_, err = svc.ListAll(ctx, callerFor(f.submitter), repository.ReferralFilter{})
	assertCode(t, err, models.CodeForbidden)

	status := models.ReferralStatusMatched
	all, err := svc.ListAll(ctx, callerFor(f.admin), repository.ReferralFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

package service

import (
	"context"
	"testing"
	"time"

	"guildhall/internal/models"
	"guildhall/internal/repository"
	"guildhall/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestReferralLifecycle_FullPipeline(t *testing.T) {
	f := newFixture(t)
	l := f.lifecycle()
	fixed := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	ctx := context.Background()
	admin := callerFor(f.admin)
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID)

	res, err := l.Transition(ctx, admin, ref.ID, TransitionRequest{Target: models.ReferralStatusReviewed})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusSubmitted, res.From)
	assert.Equal(t, models.ReferralStatusReviewed, res.Referral.Status)
	require.NotNil(t, res.Referral.ReviewedBy)
	assert.Equal(t, f.admin.ID, *res.Referral.ReviewedBy)
	require.NotNil(t, res.Referral.ReviewedAt)
	assert.Nil(t, res.Referral.MatchedAt)

	res, err = l.Transition(ctx, admin, ref.ID, TransitionRequest{Target: models.ReferralStatusMatched, MatchedTo: &f.member.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Referral.MatchedTo)
	assert.Equal(t, f.member.ID, *res.Referral.MatchedTo)
	assert.NotNil(t, res.Referral.MatchedAt)
	require.NotNil(t, res.Referral.MatchedMember)
	assert.Equal(t, f.member.Email, res.Referral.MatchedMember.Email)

	res, err = l.Transition(ctx, admin, ref.ID, TransitionRequest{Target: models.ReferralStatusEngaged})
	require.NoError(t, err)
	assert.NotNil(t, res.Referral.EngagedAt)

	res, err = l.Transition(ctx, admin, ref.ID, TransitionRequest{
		Target:     models.ReferralStatusCompleted,
		FinalValue: ptr(" $19,500 "),
		AdminNotes: ptr("closed out"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusCompleted, res.Referral.Status)
	assert.NotNil(t, res.Referral.CompletedAt)
	require.NotNil(t, res.Referral.FinalValue)
	assert.Equal(t, "$19,500", *res.Referral.FinalValue)
	assert.Equal(t, "closed out", res.Referral.AdminNotes)
	assert.Equal(t, "$19,500", res.Referral.DisplayValue())

	entries, err := f.audit.ListByTarget(ctx, models.AuditTargetReferral, ref.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestReferralLifecycle_RejectsIllegalTransitions(t *testing.T) {
	f := newFixture(t)
	l := f.lifecycle()
	ctx := context.Background()
	admin := callerFor(f.admin)

	tests := []struct {
		name   string
		from   models.ReferralStatus
		target models.ReferralStatus
	}{
		{"skip to engaged", models.ReferralStatusSubmitted, models.ReferralStatusEngaged},
		{"skip to completed", models.ReferralStatusSubmitted, models.ReferralStatusCompleted},
		{"backward", models.ReferralStatusMatched, models.ReferralStatusReviewed},
		{"same state", models.ReferralStatusReviewed, models.ReferralStatusReviewed},
		{"out of completed", models.ReferralStatusCompleted, models.ReferralStatusSubmitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := testutil.CreateReferral(t, f.db, f.submitter.ID, func(r *models.Referral) {
				r.Status = tt.from
				r.MatchedTo = &f.member.ID
			})
			_, err := l.Transition(ctx, admin, ref.ID, TransitionRequest{Target: tt.target, MatchedTo: &f.member.ID})
			assertCode(t, err, models.CodeInvalidTransition)

			stored, err := f.referrals.GetByID(ctx, ref.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.from, stored.Status)
		})
	}
}

func TestReferralLifecycle_Authorization(t *testing.T) {
	f := newFixture(t)
	l := f.lifecycle()
	ctx := context.Background()
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID)

	_, err := l.Transition(ctx, callerFor(f.submitter), ref.ID, TransitionRequest{Target: models.ReferralStatusReviewed})
	assertCode(t, err, models.CodeForbidden)

	_, err = l.Transition(ctx, callerFor(&models.Profile{}), ref.ID, TransitionRequest{Target: models.ReferralStatusReviewed})
	assertCode(t, err, models.CodeUnauthorized)

	stored, err := f.referrals.GetByID(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusSubmitted, stored.Status)
	assert.Nil(t, stored.ReviewedAt)
}

func TestReferralLifecycle_MatchValidation(t *testing.T) {
	f := newFixture(t)
	l := f.lifecycle()
	ctx := context.Background()
	admin := callerFor(f.admin)

	ref := testutil.CreateReferral(t, f.db, f.submitter.ID, func(r *models.Referral) {
		r.Status = models.ReferralStatusReviewed
	})

	_, err := l.Transition(ctx, admin, ref.ID, TransitionRequest{Target: models.ReferralStatusMatched})
	assertCode(t, err, models.CodeValidation)

	_, err = l.Transition(ctx, admin, ref.ID, TransitionRequest{Target: models.ReferralStatusMatched, MatchedTo: ptr(uuid.New())})
	assertCode(t, err, models.CodeNotFound)

	stored, err := f.referrals.GetByID(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusReviewed, stored.Status)
	assert.Nil(t, stored.MatchedTo)
}

func TestReferralLifecycle_EngageRequiresMatchedMember(t *testing.T) {
	f := newFixture(t)
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID, func(r *models.Referral) {
		r.Status = models.ReferralStatusMatched
	})
	_, err := f.lifecycle().Transition(context.Background(), callerFor(f.admin), ref.ID,
		TransitionRequest{Target: models.ReferralStatusEngaged})
	assertCode(t, err, models.CodeValidation)
}

func TestReferralLifecycle_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle().Transition(context.Background(), callerFor(f.admin), uuid.New(),
		TransitionRequest{Target: models.ReferralStatusReviewed})
	assertCode(t, err, models.CodeNotFound)
}

// staleReferralRepo reports the status read before a competing admin's write.
type staleReferralRepo struct {
	repository.ReferralRepository
	stale models.ReferralStatus
}

func (r *staleReferralRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	ref, err := r.ReferralRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ref.Status = r.stale
	return ref, nil
}

func TestReferralLifecycle_LostRaceIsConflict(t *testing.T) {
	f := newFixture(t)
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID, func(r *models.Referral) {
		r.Status = models.ReferralStatusReviewed
	})

	l := NewReferralLifecycle(&staleReferralRepo{ReferralRepository: f.referrals, stale: models.ReferralStatusSubmitted}, f.profiles, f.audit)
	_, err := l.Transition(context.Background(), callerFor(f.admin), ref.ID, TransitionRequest{Target: models.ReferralStatusReviewed})
	assertCode(t, err, models.CodeConflict)

	entries, err := f.audit.ListByTarget(context.Background(), models.AuditTargetReferral, ref.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReferralLifecycle_AuditFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID)

	l := NewReferralLifecycle(f.referrals, f.profiles, failingAudit())
	res, err := l.Transition(context.Background(), callerFor(f.admin), ref.ID, TransitionRequest{Target: models.ReferralStatusReviewed})
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusReviewed, res.Referral.Status)
}

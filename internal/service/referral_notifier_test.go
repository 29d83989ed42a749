package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"guildhall/internal/models"
	"guildhall/internal/notifications"
	"guildhall/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchedReferral(t *testing.T, f *fixture, status models.ReferralStatus) *models.Referral {
	t.Helper()
	now := time.Now().UTC()
	return testutil.CreateReferral(t, f.db, f.submitter.ID, func(r *models.Referral) {
		r.Status = status
		r.MatchedTo = &f.member.ID
		r.ReviewedAt = &now
		r.MatchedAt = &now
	})
}

func TestNotifySubmitter(t *testing.T) {
	f := newFixture(t)
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID)
	ctx := context.Background()

	report, err := f.notifier().NotifySubmitter(ctx, callerFor(f.submitter), ref.ID)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.True(t, report.EmailSent)

	msgs := f.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, f.submitter.Email, msgs[0].To)
	assert.Equal(t, notifications.TemplateReferralSubmitted, msgs[0].Template)
	assert.Equal(t, ref.ReferenceNumber, msgs[0].Data.ReferenceNumber)
	assert.Empty(t, msgs[0].Data.ClientEmail)
	assert.Empty(t, msgs[0].Data.ClientPhone)

	_, err = f.notifier().NotifySubmitter(ctx, callerFor(f.member), ref.ID)
	assertCode(t, err, models.CodeForbidden)

	_, err = f.notifier().NotifySubmitter(ctx, callerFor(f.admin), uuid.New())
	assertCode(t, err, models.CodeNotFound)
}

func TestNotifySubmitter_EmailFailureIsNotAnError(t *testing.T) {
	f := newFixture(t)
	f.mailer = failingMailer()
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID)

	report, err := f.notifier().NotifySubmitter(context.Background(), callerFor(f.submitter), ref.ID)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.False(t, report.EmailSent)
}

func TestNotifyAdmin_Recipients(t *testing.T) {
	f := newFixture(t)
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID)
	ctx := context.Background()

	report, err := f.notifier().NotifyAdmin(ctx, callerFor(f.submitter), ref.ID)
	require.NoError(t, err)
	assert.True(t, report.EmailSent)
	msgs := f.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, f.admin.Email, msgs[0].To)
	assert.Equal(t, notifications.TemplateReferralAdminAlert, msgs[0].Template)
	assert.Equal(t, f.submitter.Email, msgs[0].Data.SubmitterEmail)

	configured := NewReferralNotifier(f.referrals, f.profiles, f.mailer, nil, nil, "ops@guildhall.test")
	_, err = configured.NotifyAdmin(ctx, callerFor(f.admin), ref.ID)
	require.NoError(t, err)
	msgs = f.mailer.messages()
	assert.Equal(t, "ops@guildhall.test", msgs[len(msgs)-1].To)
}

func TestNotifyMatchedMember_OnlyMessageWithClientContact(t *testing.T) {
	f := newFixture(t)
	ref := matchedReferral(t, f, models.ReferralStatusMatched)
	ctx := context.Background()

	report, err := f.notifier().NotifyMatchedMember(ctx, callerFor(f.admin), ref.ID, f.member.ID)
	require.NoError(t, err)
	assert.True(t, report.EmailSent)

	msgs := f.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, f.member.Email, msgs[0].To)
	assert.Equal(t, notifications.TemplateReferralMatched, msgs[0].Template)
	assert.Equal(t, "client@example.com", msgs[0].Data.ClientEmail)
	assert.Equal(t, "+1 555 0100", msgs[0].Data.ClientPhone)

	require.Len(t, f.events.events, 2)
	assert.Equal(t, notifications.EventReferralMatched, f.events.events[0].event.Type)
	assert.Equal(t, []uuid.UUID{f.member.ID}, f.events.events[0].users)
}

func TestNotifyMatchedMember_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reviewed := testutil.CreateReferral(t, f.db, f.submitter.ID, func(r *models.Referral) {
		r.Status = models.ReferralStatusReviewed
	})
	_, err := f.notifier().NotifyMatchedMember(ctx, callerFor(f.admin), reviewed.ID, f.member.ID)
	assertCode(t, err, models.CodeValidation)

	matched := matchedReferral(t, f, models.ReferralStatusMatched)
	_, err = f.notifier().NotifyMatchedMember(ctx, callerFor(f.admin), matched.ID, f.submitter.ID)
	assertCode(t, err, models.CodeValidation)

	_, err = f.notifier().NotifyMatchedMember(ctx, callerFor(f.member), matched.ID, f.member.ID)
	assertCode(t, err, models.CodeForbidden)

	assert.Empty(t, f.mailer.messages())
}

func TestNotifyStatusUpdate(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		recipients int
	}{
		{"reviewed emails submitter", "REVIEWED", 1},
		{"engaged emails submitter and member", "ENGAGED", 2},
		{"lowercase accepted", "engaged", 2},
		{"matched is a no-op", "MATCHED", 0},
		{"completed is a no-op", "COMPLETED", 0},
		{"submitted is a no-op", "SUBMITTED", 0},
		{"archived is a no-op", "ARCHIVED", 0},
		{"unrecognized value is a no-op", "PAUSED", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ref := matchedReferral(t, f, models.ReferralStatusEngaged)

			report, err := f.notifier().NotifyStatusUpdate(context.Background(), callerFor(f.admin), ref.ID, tt.status)
			require.NoError(t, err)
			assert.True(t, report.Success)
			assert.Len(t, f.mailer.messages(), tt.recipients)
			assert.Len(t, report.Results, tt.recipients)
			if tt.recipients == 0 {
				assert.True(t, strings.HasPrefix(report.Message, "No notification required"))
				assert.Empty(t, f.events.events)
			}
			for _, msg := range f.mailer.messages() {
				assert.Empty(t, msg.Data.ClientEmail)
				assert.Empty(t, msg.Data.ClientPhone)
			}
		})
	}
}

func TestNotifyStatusUpdate_InvalidInput(t *testing.T) {
	f := newFixture(t)
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID)
	ctx := context.Background()

	_, err := f.notifier().NotifyStatusUpdate(ctx, callerFor(f.admin), ref.ID, "")
	assertCode(t, err, models.CodeValidation)

	_, err = f.notifier().NotifyStatusUpdate(ctx, callerFor(f.submitter), ref.ID, "REVIEWED")
	assertCode(t, err, models.CodeForbidden)
}

func TestNotifyStatusUpdate_NoOpSkipsReferralLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.notifier().NotifyStatusUpdate(ctx, callerFor(f.admin), uuid.New(), "MATCHED")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Empty(t, report.Results)
	assert.Empty(t, f.mailer.messages())

	_, err = f.notifier().NotifyStatusUpdate(ctx, callerFor(f.admin), uuid.New(), "REVIEWED")
	assertCode(t, err, models.CodeNotFound)
}

func TestNotifyCompleted_DisplayValue(t *testing.T) {
	tests := []struct {
		name       string
		finalValue *string
		valueRange *string
		want       string
	}{
		{"final value wins", ptr("$21,000"), ptr("$10k-$25k"), "$21,000"},
		{"falls back to estimate", nil, ptr("$10k-$25k"), "$10k-$25k"},
		{"nothing recorded", nil, nil, "Not specified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ref := matchedReferral(t, f, models.ReferralStatusCompleted)
			require.NoError(t, f.db.Model(&models.Referral{}).Where("id = ?", ref.ID).
				Updates(map[string]any{"final_value": tt.finalValue, "value_range": tt.valueRange}).Error)

			report, err := f.notifier().NotifyCompleted(context.Background(), callerFor(f.admin), ref.ID)
			require.NoError(t, err)
			assert.True(t, report.Success)

			msgs := f.mailer.messages()
			require.Len(t, msgs, 2)
			for _, msg := range msgs {
				assert.Equal(t, notifications.TemplateReferralCompleted, msg.Template)
				assert.Equal(t, tt.want, msg.Data.DisplayValue)
			}
		})
	}
}

func TestNotifyCompleted_PartialEmailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer = &mailerStub{sendFn: func(msg notifications.Message) bool {
		return msg.To != f.member.Email
	}}
	ref := matchedReferral(t, f, models.ReferralStatusCompleted)

	report, err := f.notifier().NotifyCompleted(context.Background(), callerFor(f.admin), ref.ID)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.True(t, report.EmailSent)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "Sent 1 of 2 completion emails", report.Message)
}

func TestDispatchForTransition(t *testing.T) {
	tests := []struct {
		to        models.ReferralStatus
		templates []string
	}{
		{models.ReferralStatusReviewed, []string{notifications.TemplateReferralStatusReviewed}},
		{models.ReferralStatusMatched, []string{notifications.TemplateReferralMatched}},
		{models.ReferralStatusEngaged, []string{notifications.TemplateReferralStatusEngaged, notifications.TemplateReferralStatusEngaged}},
		{models.ReferralStatusCompleted, []string{notifications.TemplateReferralCompleted, notifications.TemplateReferralCompleted}},
	}

	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			f := newFixture(t)
			ref := matchedReferral(t, f, tt.to)
			loaded, err := f.referrals.GetByID(context.Background(), ref.ID)
			require.NoError(t, err)

			_, err = f.notifier().DispatchForTransition(context.Background(), callerFor(f.admin),
				&TransitionResult{Referral: loaded, To: tt.to})
			require.NoError(t, err)
			assert.Equal(t, tt.templates, templatesOf(f.mailer.messages()))
		})
	}
}

func TestRealtimeEventsFollowFeatureFlag(t *testing.T) {
	f := newFixture(t)
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID)
	n := NewReferralNotifier(f.referrals, f.profiles, f.mailer, f.events, nil, "")

	_, err := n.NotifyStatusUpdate(context.Background(), callerFor(f.admin), ref.ID, "REVIEWED")
	require.NoError(t, err)
	assert.Len(t, f.mailer.messages(), 1)
	assert.Empty(t, f.events.events)
}

func TestRealtimeEventsSkipMissingMatchedMember(t *testing.T) {
	f := newFixture(t)
	ref := testutil.CreateReferral(t, f.db, f.submitter.ID, func(r *models.Referral) {
		r.Status = models.ReferralStatusEngaged
	})

	for _, notify := range []func() (*NotificationReport, error){
		func() (*NotificationReport, error) {
			return f.notifier().NotifyStatusUpdate(context.Background(), callerFor(f.admin), ref.ID, "ENGAGED")
		},
		func() (*NotificationReport, error) {
			return f.notifier().NotifyCompleted(context.Background(), callerFor(f.admin), ref.ID)
		},
	} {
		report, err := notify()
		require.NoError(t, err)
		assert.Len(t, report.Results, 1)
	}

	require.Len(t, f.events.events, 2)
	for _, ev := range f.events.events {
		assert.Equal(t, []uuid.UUID{f.submitter.ID}, ev.users)
		assert.NotContains(t, ev.users, uuid.Nil)
	}
}

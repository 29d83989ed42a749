package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guildhall/internal/auth"
	"guildhall/internal/models"
	"guildhall/internal/notifications"
	"guildhall/internal/repository"
	"guildhall/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mailerStub struct {
	mu     sync.Mutex
	sent   []notifications.Message
	sendFn func(notifications.Message) bool
}

func (m *mailerStub) Send(_ context.Context, msg notifications.Message) notifications.EmailResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	ok := m.sendFn == nil || m.sendFn(msg)
	res := notifications.EmailResult{Sent: ok, Recipient: msg.To, Template: msg.Template}
	if !ok {
		res.Error = "provider rejected message"
	}
	return res
}

func (m *mailerStub) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type runnerFixture struct {
	db     *gorm.DB
	apps   repository.ApplicationRepository
	audit  repository.AuditLogRepository
	mailer *mailerStub
	runner *Runner
	admin  *models.Profile
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	f := &runnerFixture{
		db:     db,
		apps:   repository.NewApplicationRepository(db),
		audit:  repository.NewAuditLogRepository(db),
		mailer: &mailerStub{},
	}
	f.runner = NewRunner(f.apps, f.audit, f.mailer, 0)
	f.runner.now = func() time.Time { return testNow }
	f.admin = testutil.CreateProfile(t, db, true)
	return f
}

func (f *runnerFixture) pendingApp(t *testing.T, age time.Duration, mutate ...func(*models.Application)) (*models.Profile, *models.Application) {
	t.Helper()
	p := testutil.CreateProfile(t, f.db, false)
	return p, testutil.CreateApplication(t, f.db, p.ID, testNow.Add(-age), mutate...)
}

func (f *runnerFixture) reload(t *testing.T, app *models.Application) *models.Application {
	t.Helper()
	got, err := f.apps.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	return got
}

func TestRunPass_SendsOnlyDueReminders(t *testing.T) {
	f := newRunnerFixture(t)
	_, young := f.pendingApp(t, 2*day)
	dueProfile, due := f.pendingApp(t, 3*day)
	_, old := f.pendingApp(t, 10*day)
	_, expired := f.pendingApp(t, 31*day)

	res, err := f.runner.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{Checked: 4, Sent: 2, Skipped: 2}, res)

	assert.Equal(t, 0, f.reload(t, young).ReminderCount)
	assert.Equal(t, 0, f.reload(t, expired).ReminderCount)

	got := f.reload(t, due)
	assert.Equal(t, 1, got.ReminderCount)
	require.NotNil(t, got.LastReminderSent)
	assert.WithinDuration(t, testNow, *got.LastReminderSent, time.Second)
	assert.Equal(t, 1, f.reload(t, old).ReminderCount)

	require.Equal(t, 2, f.mailer.count())
	// Oldest first.
	assert.NotEqual(t, dueProfile.Email, f.mailer.sent[0].To)
	assert.Equal(t, dueProfile.Email, f.mailer.sent[1].To)
	for _, msg := range f.mailer.sent {
		assert.Equal(t, notifications.TemplateApplicationReminder, msg.Template)
		assert.Equal(t, 1, msg.Data.ReminderNumber)
		assert.Equal(t, []string{StepUploadDocuments, StepAcceptTerms, StepAcceptPrivacy}, msg.Data.Steps)
	}
}

func TestRunPass_IgnoresReviewedApplications(t *testing.T) {
	f := newRunnerFixture(t)
	f.pendingApp(t, 5*day, func(a *models.Application) { a.Status = models.ApplicationStatusRejected })

	res, err := f.runner.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{}, res)
	assert.Equal(t, 0, f.mailer.count())
}

func TestRunPass_IsolatesFailures(t *testing.T) {
	f := newRunnerFixture(t)
	failProfile, failing := f.pendingApp(t, 6*day)
	panicProfile, panicking := f.pendingApp(t, 5*day)
	_, ok := f.pendingApp(t, 4*day)

	f.mailer.sendFn = func(msg notifications.Message) bool {
		switch msg.To {
		case failProfile.Email:
			return false
		case panicProfile.Email:
			panic("template exploded")
		}
		return true
	}

	res, err := f.runner.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{Checked: 3, Sent: 1, Errors: 2}, res)

	assert.Equal(t, 0, f.reload(t, failing).ReminderCount)
	assert.Nil(t, f.reload(t, failing).LastReminderSent)
	assert.Equal(t, 0, f.reload(t, panicking).ReminderCount)
	assert.Equal(t, 1, f.reload(t, ok).ReminderCount)
}

func TestRunPass_SecondPassDoesNotResend(t *testing.T) {
	f := newRunnerFixture(t)
	f.pendingApp(t, 4*day)

	first, err := f.runner.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	second, err := f.runner.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{Checked: 1, Skipped: 1}, second)
	assert.Equal(t, 1, f.mailer.count())
}

func TestRunPass_CancelledContextStopsPacedSends(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner = NewRunner(f.apps, f.audit, f.mailer, 0.001)
	f.runner.now = func() time.Time { return testNow }
	f.pendingApp(t, 4*day)
	f.pendingApp(t, 5*day)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res, err := f.runner.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Errors)
}

func TestSendSingle(t *testing.T) {
	t.Run("admin sends and records", func(t *testing.T) {
		f := newRunnerFixture(t)
		_, app := f.pendingApp(t, time.Hour)

		res, err := f.runner.SendSingle(context.Background(), auth.Caller{ID: f.admin.ID, IsAdmin: true}, app.ID)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 1, f.reload(t, app).ReminderCount)

		entries, err := f.audit.ListByTarget(context.Background(), models.AuditTargetApplication, app.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, models.AuditSentReminder, entries[0].Action)
	})

	t.Run("non-admin changes nothing", func(t *testing.T) {
		f := newRunnerFixture(t)
		owner, app := f.pendingApp(t, 5*day)

		_, err := f.runner.SendSingle(context.Background(), auth.Caller{ID: owner.ID}, app.ID)
		var appErr *models.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, models.CodeForbidden, appErr.Code)
		assert.Equal(t, 0, f.mailer.count())
		assert.Equal(t, 0, f.reload(t, app).ReminderCount)
	})

	t.Run("reviewed application is rejected", func(t *testing.T) {
		f := newRunnerFixture(t)
		_, app := f.pendingApp(t, 5*day, func(a *models.Application) { a.Status = models.ApplicationStatusApproved })

		_, err := f.runner.SendSingle(context.Background(), auth.Caller{ID: f.admin.ID, IsAdmin: true}, app.ID)
		assert.True(t, models.IsCode(err, models.CodeValidation))
		assert.Equal(t, 0, f.mailer.count())
	})

	t.Run("send failure leaves state", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.mailer.sendFn = func(notifications.Message) bool { return false }
		_, app := f.pendingApp(t, 5*day)

		res, err := f.runner.SendSingle(context.Background(), auth.Caller{ID: f.admin.ID, IsAdmin: true}, app.ID)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 0, f.reload(t, app).ReminderCount)
	})
}

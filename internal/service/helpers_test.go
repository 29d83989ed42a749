package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"guildhall/internal/auth"
	"guildhall/internal/featureflags"
	"guildhall/internal/models"
	"guildhall/internal/notifications"
	"guildhall/internal/repository"
	"guildhall/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// mailerStub records every message. sendFn, when set, decides the result.
type mailerStub struct {
	mu     sync.Mutex
	sent   []notifications.Message
	sendFn func(notifications.Message) bool
}

func (m *mailerStub) Send(_ context.Context, msg notifications.Message) notifications.EmailResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	ok := true
	if m.sendFn != nil {
		ok = m.sendFn(msg)
	}
	res := notifications.EmailResult{Sent: ok, Recipient: msg.To, Template: msg.Template}
	if !ok {
		res.Error = "provider rejected message"
	}
	return res
}

func (m *mailerStub) messages() []notifications.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notifications.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

func failingMailer() *mailerStub {
	return &mailerStub{sendFn: func(notifications.Message) bool { return false }}
}

type publishedEvent struct {
	event notifications.Event
	users []uuid.UUID
}

type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *publisherStub) PublishEvent(_ context.Context, ev notifications.Event, userIDs ...uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{event: ev, users: userIDs})
	return p.err
}

type auditStub struct {
	appendFn func(context.Context, *models.AdminAuditLog) error
}

func (s *auditStub) Append(ctx context.Context, entry *models.AdminAuditLog) error {
	if s.appendFn != nil {
		return s.appendFn(ctx, entry)
	}
	return nil
}

func (s *auditStub) ListByTarget(context.Context, string, uuid.UUID) ([]models.AdminAuditLog, error) {
	return nil, nil
}

func failingAudit() *auditStub {
	return &auditStub{appendFn: func(context.Context, *models.AdminAuditLog) error {
		return errors.New("audit table unavailable")
	}}
}

// fixture wires real repositories over an in-memory database.
type fixture struct {
	db           *gorm.DB
	referrals    repository.ReferralRepository
	profiles     repository.ProfileRepository
	applications repository.ApplicationRepository
	audit        repository.AuditLogRepository
	mailer       *mailerStub
	events       *publisherStub
	flags        *featureflags.Manager

	admin     *models.Profile
	submitter *models.Profile
	member    *models.Profile
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	f := &fixture{
		db:           db,
		referrals:    repository.NewReferralRepository(db),
		profiles:     repository.NewProfileRepository(db),
		applications: repository.NewApplicationRepository(db),
		audit:        repository.NewAuditLogRepository(db),
		mailer:       &mailerStub{},
		events:       &publisherStub{},
		flags:        featureflags.NewManager(featureflags.ReferralRealtimeEvents + "=on"),
	}
	f.admin = testutil.CreateProfile(t, db, true)
	f.submitter = testutil.CreateProfile(t, db, false)
	f.member = testutil.CreateProfile(t, db, false)
	return f
}

func (f *fixture) lifecycle() *ReferralLifecycle {
	return NewReferralLifecycle(f.referrals, f.profiles, f.audit)
}

func (f *fixture) notifier() *ReferralNotifier {
	return NewReferralNotifier(f.referrals, f.profiles, f.mailer, f.events, f.flags, "")
}

func (f *fixture) review() *ApplicationReview {
	return NewApplicationReview(f.applications, f.profiles, f.audit, f.mailer, f.events, f.flags, "")
}

func callerFor(p *models.Profile) auth.Caller {
	return auth.Caller{ID: p.ID, Email: p.Email, IsAdmin: p.IsAdmin}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func templatesOf(msgs []notifications.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Template)
	}
	return out
}

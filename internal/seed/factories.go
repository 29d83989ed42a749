package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"guildhall/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	now  time.Time
}

// NewFactory creates a new Factory bound to the provided Gorm DB. A nil db is
// only valid in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{
		db:   db,
		opts: opts,
		//nolint:gosec // Weak random number generator is fine for seeding
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now().UTC(),
	}
}

// backdate returns a time up to maxDays in the past.
func (f *Factory) backdate(maxDays int) time.Time {
	if maxDays <= 0 {
		maxDays = 1
	}
	offset := time.Duration(f.rng.Intn(maxDays*24*60)) * time.Minute
	return f.now.Add(-offset)
}

// BuildProfile constructs a member profile without persisting it.
func (f *Factory) BuildProfile(overrides ...func(*models.Profile)) *models.Profile {
	id := uuid.New()
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	p := &models.Profile{
		ID:          id,
		Email:       strings.ToLower(fmt.Sprintf("%s.%s.%s@example.com", first, last, id.String()[:6])),
		FullName:    first + " " + last,
		CompanyName: gofakeit.Company(),
		Phone:       gofakeit.Phone(),
		AvatarURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		IsVerified:  f.rng.Float32() < 0.7,
		IsPublic:    f.rng.Float32() < 0.6,
	}
	if p.IsVerified {
		level := badgeLevels[f.rng.Intn(len(badgeLevels))]
		p.BadgeLevel = &level
	}
	for _, override := range overrides {
		override(p)
	}
	return p
}

// CreateProfile constructs and persists a member profile.
func (f *Factory) CreateProfile(overrides ...func(*models.Profile)) (*models.Profile, error) {
	p := f.BuildProfile(overrides...)
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateProfile: %s <%s>", p.FullName, p.Email)
		return p, nil
	}
	if err := f.db.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// BuildApplication constructs a pending application for owner with a random
// amount of progress and reminder history.
func (f *Factory) BuildApplication(owner *models.Profile, overrides ...func(*models.Application)) *models.Application {
	created := f.backdate(f.maxDays())
	app := &models.Application{
		ID:              uuid.New(),
		UserID:          owner.ID,
		Status:          models.ApplicationStatusPending,
		TosAccepted:     f.rng.Float32() < 0.5,
		PrivacyAccepted: f.rng.Float32() < 0.5,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	for _, p := range app.Points() {
		if f.rng.Float32() < 0.3 {
			app.SetPoint(p.Key, models.PointPending)
		} else {
			app.SetPoint(p.Key, models.PointNotSubmitted)
		}
	}
	if age := f.now.Sub(created); age > 4*24*time.Hour && f.rng.Float32() < 0.5 {
		sent := created.Add(3 * 24 * time.Hour)
		app.LastReminderSent = &sent
		app.ReminderCount = 1
	}
	for _, override := range overrides {
		override(app)
	}
	return app
}

// CreateApplication constructs and persists an application for owner.
func (f *Factory) CreateApplication(owner *models.Profile, overrides ...func(*models.Application)) (*models.Application, error) {
	app := f.BuildApplication(owner, overrides...)
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateApplication: user=%s created=%s", app.UserID, app.CreatedAt.Format(time.RFC3339))
		return app, nil
	}
	if err := f.db.Omit("Profile").Create(app).Error; err != nil {
		return nil, err
	}
	return app, nil
}

// BuildReferral constructs a referral from submitter advanced to stage. Every
// stage reached gets its timestamp, and MATCHED or later carries matchedTo.
func (f *Factory) BuildReferral(submitter, reviewer, matchedTo *models.Profile, stage models.ReferralStatus, overrides ...func(*models.Referral)) *models.Referral {
	created := f.backdate(f.maxDays())
	email := gofakeit.Email()
	phone := gofakeit.Phone()
	company := gofakeit.Company()
	description := gofakeit.Paragraph(1, 3, 12, " ")
	valueRange := valueRanges[f.rng.Intn(len(valueRanges))]
	timeline := timelines[f.rng.Intn(len(timelines))]

	r := &models.Referral{
		ID:                 uuid.New(),
		SubmittedBy:        submitter.ID,
		ClientName:         gofakeit.Name(),
		ClientEmail:        &email,
		ClientPhone:        &phone,
		ClientCompany:      &company,
		ProjectType:        projectTypes[f.rng.Intn(len(projectTypes))],
		ProjectDescription: &description,
		ValueRange:         &valueRange,
		Location:           fmt.Sprintf("%s, %s", gofakeit.City(), gofakeit.StateAbr()),
		Timeline:           &timeline,
		Status:             models.ReferralStatusSubmitted,
		CreatedAt:          created,
		UpdatedAt:          created,
	}

	at := created
	step := func() time.Time {
		at = at.Add(time.Duration(1+f.rng.Intn(72)) * time.Hour)
		if at.After(f.now) {
			at = f.now
		}
		return at
	}
	if stage.Reached(models.ReferralStatusReviewed) {
		ts := step()
		r.Status = models.ReferralStatusReviewed
		r.ReviewedAt = &ts
		if reviewer != nil {
			r.ReviewedBy = &reviewer.ID
		}
	}
	if stage.Reached(models.ReferralStatusMatched) && matchedTo != nil {
		ts := step()
		r.Status = models.ReferralStatusMatched
		r.MatchedTo = &matchedTo.ID
		r.MatchedAt = &ts
	}
	if stage.Reached(models.ReferralStatusEngaged) && r.MatchedTo != nil {
		ts := step()
		r.Status = models.ReferralStatusEngaged
		r.EngagedAt = &ts
	}
	if stage.Reached(models.ReferralStatusCompleted) && r.MatchedTo != nil {
		ts := step()
		final := fmt.Sprintf("$%dk", gofakeit.Number(5, 250))
		r.Status = models.ReferralStatusCompleted
		r.CompletedAt = &ts
		r.FinalValue = &final
	}
	r.UpdatedAt = at

	for _, override := range overrides {
		override(r)
	}
	return r
}

// CreateReferralsBatch persists multiple referrals in a single DB call.
func (f *Factory) CreateReferralsBatch(referrals []*models.Referral) error {
	if len(referrals) == 0 {
		return nil
	}
	if f.opts.DryRun {
		log.Printf("[dry-run] CreateReferralsBatch: %d referrals (no DB write)", len(referrals))
		return nil
	}
	return f.db.Omit("Submitter", "MatchedMember").Create(&referrals).Error
}

func (f *Factory) maxDays() int {
	if f.opts.MaxDays <= 0 {
		return 45
	}
	return f.opts.MaxDays
}

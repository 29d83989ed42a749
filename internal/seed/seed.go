// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"errors"
	"fmt"
	"log"

	"guildhall/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumMembers      int
	NumApplications int
	NumReferrals    int
	MaxDays         int
	ShouldClean     bool
	DryRun          bool
	// RandSeed makes a run reproducible. Zero uses the clock.
	RandSeed int64
	// AdminEmail, when set, gets an admin profile.
	AdminEmail string
}

// Summary counts what a seed run created.
type Summary struct {
	Profiles     int
	Applications int
	Referrals    int
}

var (
	projectTypes = []string{
		"Kitchen remodel", "Commercial fit-out", "Brand identity", "Website rebuild",
		"Bookkeeping", "Tax planning", "Landscape design", "Roof replacement",
		"Office relocation", "Employment law advice", "Solar installation", "Event catering",
	}

	valueRanges = []string{"Under $5k", "$5k-$10k", "$10k-$25k", "$25k-$50k", "$50k-$100k", "$100k+"}

	timelines = []string{"ASAP", "Within 1 month", "1-3 months", "3-6 months", "Flexible"}

	badgeLevels = []models.BadgeLevel{models.BadgeVerified, models.BadgeVetted, models.BadgeElite}
)

// ErrNoMembers is returned when referrals are requested without any members to own them.
var ErrNoMembers = errors.New("seeding referrals requires at least two members")

// Seed populates the database with demo members, applications and referrals.
func Seed(db *gorm.DB, opts Options) (*Summary, error) {
	log.Printf("🌱 Starting database seeding with %d members, %d applications and %d referrals...",
		opts.NumMembers, opts.NumApplications, opts.NumReferrals)

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	f := NewFactory(db, opts)
	summary := &Summary{}

	var admin *models.Profile
	if opts.AdminEmail != "" {
		p, err := f.CreateProfile(func(p *models.Profile) {
			p.Email = opts.AdminEmail
			p.FullName = "Guildhall Admin"
			p.IsAdmin = true
			p.IsVerified = true
			p.IsPublic = false
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create admin profile: %w", err)
		}
		admin = p
		summary.Profiles++
	}

	members := make([]*models.Profile, 0, opts.NumMembers)
	for i := 0; i < opts.NumMembers; i++ {
		p, err := f.CreateProfile()
		if err != nil {
			log.Printf("Failed to create member profile: %v", err)
			continue
		}
		members = append(members, p)
	}
	summary.Profiles += len(members)
	log.Printf("✓ %d member profiles created", len(members))

	// One application per member; unverified members are the natural applicants.
	for _, m := range members {
		if summary.Applications >= opts.NumApplications {
			break
		}
		if m.IsVerified {
			continue
		}
		if _, err := f.CreateApplication(m); err != nil {
			return summary, fmt.Errorf("failed to create application: %w", err)
		}
		summary.Applications++
	}
	log.Printf("✓ %d pending applications created", summary.Applications)

	if opts.NumReferrals > 0 {
		if len(members) < 2 {
			return summary, ErrNoMembers
		}
		referrals := make([]*models.Referral, 0, opts.NumReferrals)
		for i := 0; i < opts.NumReferrals; i++ {
			submitter := members[f.rng.Intn(len(members))]
			matched := members[f.rng.Intn(len(members))]
			for matched.ID == submitter.ID {
				matched = members[f.rng.Intn(len(members))]
			}
			stage := models.ReferralStatuses[f.rng.Intn(len(models.ReferralStatuses))]
			referrals = append(referrals, f.BuildReferral(submitter, admin, matched, stage))
		}
		if err := f.CreateReferralsBatch(referrals); err != nil {
			return summary, fmt.Errorf("failed to create referrals: %w", err)
		}
		summary.Referrals = len(referrals)
		log.Printf("✓ %d referrals created", summary.Referrals)
	}

	log.Println("🎉 Database seeding completed successfully!")
	return summary, nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE admin_audit_log, referrals, applications, profiles CASCADE;`).Error
	}
	for _, table := range []string{"admin_audit_log", "referrals", "applications", "profiles"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}

// Command main runs the database seeder for Guildhall.
package main

import (
	"flag"
	"log"

	"guildhall/internal/config"
	"guildhall/internal/database"
	"guildhall/internal/seed"
)

func main() {
	// Parse command line flags
	numMembers := flag.Int("members", 40, "Number of member profiles to create")
	numApplications := flag.Int("applications", 15, "Number of vetting applications to create")
	numReferrals := flag.Int("referrals", 60, "Number of referrals to create")
	maxDays := flag.Int("days", 45, "Spread created_at over this many days")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build records without writing them")
	randSeed := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	adminEmail := flag.String("admin", "admin@guildhall.local", "Email of the admin profile to create (empty to skip)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d members, %d applications, %d referrals, clean=%v dry-run=%v\n",
		*numMembers, *numApplications, *numReferrals, *shouldClean, *dryRun)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	summary, err := seed.Seed(db, seed.Options{
		NumMembers:      *numMembers,
		NumApplications: *numApplications,
		NumReferrals:    *numReferrals,
		MaxDays:         *maxDays,
		ShouldClean:     *shouldClean,
		DryRun:          *dryRun,
		RandSeed:        *randSeed,
		AdminEmail:      *adminEmail,
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! profiles=%d applications=%d referrals=%d",
		summary.Profiles, summary.Applications, summary.Referrals)
}

// Command reminders runs one application reminder pass and exits.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"guildhall/internal/config"
	"guildhall/internal/database"
	"guildhall/internal/notifications"
	"guildhall/internal/reminders"
	"guildhall/internal/repository"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Minute, "Abort the pass after this long")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	mailer, err := notifications.NewMailerFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to configure email: %v", err)
	}

	runner := reminders.NewRunner(
		repository.NewApplicationRepository(db),
		repository.NewAuditLogRepository(db),
		mailer,
		cfg.ReminderSendRate,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := runner.RunPass(ctx)
	if err != nil {
		log.Fatalf("❌ Reminder pass failed: %v", err)
	}
	log.Printf("✅ Reminder pass: checked=%d sent=%d skipped=%d errors=%d",
		result.Checked, result.Sent, result.Skipped, result.Errors)
}

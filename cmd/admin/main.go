// Package main provides admin management utilities for Guildhall.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"guildhall/internal/cache"
	"guildhall/internal/config"
	"guildhall/internal/database"
	"guildhall/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const usage = `Usage:
  go run ./cmd/admin promote <email|profile_id>          - Grant admin
  go run ./cmd/admin demote <email|profile_id>           - Revoke admin
  go run ./cmd/admin set-badge <email|profile_id> <level> - Record a badge (verified, vetted, elite)
  go run ./cmd/admin list-admins                         - List all admins`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Role flags are cached by the API; drop the entry so changes apply immediately.
	cache.InitRedis(cfg.RedisURL)

	if err := run(context.Background(), db, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, db *gorm.DB, args []string, out io.Writer) error {
	switch args[0] {
	case "promote", "demote":
		if len(args) < 2 {
			return errors.New(usage)
		}
		return setAdmin(ctx, db, args[1], args[0] == "promote", out)
	case "set-badge":
		if len(args) < 3 {
			return errors.New(usage)
		}
		return setBadge(ctx, db, args[1], args[2], out)
	case "list-admins":
		return listAdmins(ctx, db, out)
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
}

// findProfile resolves a profile by id or by case-insensitive email.
func findProfile(ctx context.Context, db *gorm.DB, ref string) (*models.Profile, error) {
	var profile models.Profile
	q := db.WithContext(ctx)
	if id, err := uuid.Parse(ref); err == nil {
		q = q.Where("id = ?", id)
	} else {
		q = q.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(ref)))
	}
	if err := q.First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile %s not found", ref)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &profile, nil
}

func setAdmin(ctx context.Context, db *gorm.DB, ref string, admin bool, out io.Writer) error {
	profile, err := findProfile(ctx, db, ref)
	if err != nil {
		return err
	}

	verb := "promoted to"
	if !admin {
		verb = "demoted from"
	}
	if profile.IsAdmin == admin {
		_, _ = fmt.Fprintf(out, "%s (%s) is already %s\n", profile.Email, profile.ID, adminLabel(admin))
		return nil
	}

	if err := db.WithContext(ctx).Model(profile).Update("is_admin", admin).Error; err != nil {
		return fmt.Errorf("failed to update %s: %w", profile.Email, err)
	}
	cache.InvalidateCaller(ctx, profile.ID)

	_, _ = fmt.Fprintf(out, "✅ %s (%s) %s admin\n", profile.Email, profile.ID, verb)
	return nil
}

func adminLabel(admin bool) string {
	if admin {
		return "an admin"
	}
	return "not an admin"
}

func setBadge(ctx context.Context, db *gorm.DB, ref, level string, out io.Writer) error {
	badge, err := models.ParseBadgeLevel(level)
	if err != nil {
		return err
	}
	profile, err := findProfile(ctx, db, ref)
	if err != nil {
		return err
	}

	updates := map[string]any{"badge_level": badge, "is_verified": true}
	if err := db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update %s: %w", profile.Email, err)
	}

	_, _ = fmt.Fprintf(out, "✅ %s (%s) now holds the %s badge\n", profile.Email, profile.ID, badge.Label())
	return nil
}

func listAdmins(ctx context.Context, db *gorm.DB, out io.Writer) error {
	var admins []models.Profile
	if err := db.WithContext(ctx).Where("is_admin = ?", true).Order("email ASC").Find(&admins).Error; err != nil {
		return fmt.Errorf("failed to fetch admins: %w", err)
	}

	if len(admins) == 0 {
		_, _ = fmt.Fprintln(out, "No admins found in the system")
		return nil
	}

	_, _ = fmt.Fprintln(out, "\n📋 Current Admins:")
	_, _ = fmt.Fprintln(out, "─────────────────────────────────────")
	for _, admin := range admins {
		_, _ = fmt.Fprintf(out, "ID: %s | Name: %s | Email: %s\n", admin.ID, admin.DisplayName(), admin.Email)
	}
	_, _ = fmt.Fprintln(out, "─────────────────────────────────────")
	return nil
}

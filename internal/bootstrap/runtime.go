// Package bootstrap wires the shared runtime dependencies used by the binaries.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"guildhall/internal/cache"
	"guildhall/internal/config"
	"guildhall/internal/database"
	"guildhall/internal/middleware"
	"guildhall/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipDevAdmin leaves the development admin profile alone.
	SkipDevAdmin bool
}

// InitRuntime connects to DB and Redis and ensures the development admin exists.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if !opts.SkipDevAdmin {
		if err := EnsureDevAdmin(cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
		}
	}

	return db, r, nil
}

// EnsureDevAdmin creates or promotes the development admin profile. It only
// acts in the development environment with DEV_BOOTSTRAP_ADMIN enabled.
func EnsureDevAdmin(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapAdmin {
		return nil
	}

	email := strings.TrimSpace(strings.ToLower(cfg.DevAdminEmail))
	if email == "" {
		return errors.New("DEV_ADMIN_EMAIL must be set when DEV_BOOTSTRAP_ADMIN is enabled")
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var admin models.Profile
		findErr := tx.Where("email = ?", email).First(&admin).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			admin = models.Profile{
				Email:      email,
				FullName:   "Development Admin",
				IsAdmin:    true,
				IsVerified: true,
			}
			return tx.Create(&admin).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&models.Profile{}).Where("id = ?", admin.ID).Update("is_admin", true).Error
		}
	}); err != nil {
		return err
	}

	middleware.Logger.Info("development admin bootstrap ensured", slog.String("email", email))
	return nil
}

// Package database handles database connections and migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guildhall/internal/config"
	"guildhall/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB is the global database connection instance.
var DB *gorm.DB

// ReadDB is the optional read-replica connection; nil when no replica is configured.
var ReadDB *gorm.DB

// ConnectOptions tunes what Connect does after the pool is open.
type ConnectOptions struct {
	// ApplySchema runs SQL migrations and/or AutoMigrate per DB_SCHEMA_MODE.
	ApplySchema bool
}

// Connect opens the primary connection and applies the schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
}

// ConnectWithOptions opens the primary (and optional replica) connection.
func ConnectWithOptions(cfg *config.Config, opts ConnectOptions) (*gorm.DB, error) {
	dbInstance, err := gorm.Open(postgres.Open(primaryDSN(cfg)), &gorm.Config{
		Logger: NewGormLogger(middleware.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := configurePool(dbInstance, cfg); err != nil {
		return nil, err
	}
	middleware.Logger.Info("Database connected successfully")

	if opts.ApplySchema {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := ApplySchema(ctx, dbInstance, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.DBReadHost != "" {
		replica, err := gorm.Open(postgres.Open(readDSN(cfg)), &gorm.Config{Logger: NewGormLogger(middleware.Logger)})
		if err != nil {
			middleware.Logger.Warn("read replica unavailable, reads use primary", slog.String("error", err.Error()))
		} else if err := configurePool(replica, cfg); err == nil {
			ReadDB = replica
		}
	}

	DB = dbInstance
	return DB, nil
}

// GetReadDB returns the replica when configured, else the primary.
func GetReadDB() *gorm.DB {
	if ReadDB != nil {
		return ReadDB
	}
	return DB
}

func primaryDSN(cfg *config.Config) string {
	return buildDSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

func readDSN(cfg *config.Config) string {
	port, user, password := cfg.DBReadPort, cfg.DBReadUser, cfg.DBReadPassword
	if port == "" {
		port = cfg.DBPort
	}
	if user == "" {
		user, password = cfg.DBUser, cfg.DBPassword
	}
	return buildDSN(cfg.DBReadHost, port, user, password, cfg.DBName, cfg.DBSSLMode)
}

func buildDSN(host, port, user, password, name, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, sslMode,
	)
}

func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql pool: %w", err)
	}

	maxOpen, maxIdle, lifetime := cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMinutes
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if lifetime <= 0 {
		lifetime = 5
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(lifetime) * time.Minute)
	return nil
}

// Ping checks the primary connection.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

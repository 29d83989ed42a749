package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"guildhall/internal/config"
	"guildhall/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan is what ApplySchema will do for a configuration.
type SchemaPlan struct {
	Mode        string
	Environment string
	RunSQL      bool
	RunAuto     bool
}

// SchemaStatus reports the plan plus the migration and table state.
type SchemaStatus struct {
	SchemaPlan
	Applied       []SchemaMigration
	Pending       []Migration
	MissingTables []string
}

func protectedEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema resolves DB_SCHEMA_MODE. Hybrid runs SQL migrations everywhere and
// AutoMigrate only outside production-like environments. Auto mode in a
// production-like environment needs DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	plan := SchemaPlan{Mode: mode, Environment: cfg.Env}
	protected := protectedEnv(cfg.Env)

	switch mode {
	case SchemaModeSQL:
		plan.RunSQL = true
	case SchemaModeHybrid:
		plan.RunSQL = true
		plan.RunAuto = !protected
	case SchemaModeAuto:
		if protected && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.RunAuto = true
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
	return plan, nil
}

// ApplySchema brings the database to the shape the models expect.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.RunSQL {
		migrator, err := NewMigrator(db)
		if err != nil {
			return err
		}
		n, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		middleware.Logger.Info("sql migrations complete", slog.Int("applied", n))
	}

	if plan.RunAuto {
		if plan.Mode == SchemaModeAuto && protectedEnv(plan.Environment) {
			middleware.Logger.Warn("running AutoMigrate in a protected environment; review schema diffs first",
				slog.String("env", plan.Environment))
		}
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	if missing := missingTables(db); len(missing) > 0 {
		return fmt.Errorf("schema incomplete, missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GetSchemaStatus reports without changing anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan, MissingTables: missingTables(db)}

	migrator, err := NewMigrator(db)
	if err != nil {
		return nil, err
	}
	if status.Applied, err = migrator.Applied(ctx); err != nil {
		return nil, err
	}
	if status.Pending, err = migrator.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}

func missingTables(db *gorm.DB) []string {
	var missing []string
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			missing = append(missing, fmt.Sprintf("%T", model))
			continue
		}
		if !db.Migrator().HasTable(stmt.Schema.Table) {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing
}

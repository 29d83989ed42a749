package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"guildhall/internal/middleware"

	"gorm.io/gorm"
)

// SchemaMigration records one applied migration.
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (SchemaMigration) TableName() string { return "schema_migrations" }

// Migrator applies and rolls back a fixed, ordered set of migrations.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
	now        func() time.Time
}

// NewMigrator uses the embedded migrations.
func NewMigrator(db *gorm.DB) (*Migrator, error) {
	migs, err := EmbeddedMigrations()
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return NewMigratorWith(db, migs), nil
}

// NewMigratorWith runs an explicit migration list, oldest first.
func NewMigratorWith(db *gorm.DB, migs []Migration) *Migrator {
	return &Migrator{db: db, migrations: migs, now: func() time.Time { return time.Now().UTC() }}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&SchemaMigration{})
}

// Applied returns the recorded migrations ordered by version.
func (m *Migrator) Applied(ctx context.Context) ([]SchemaMigration, error) {
	if !m.db.Migrator().HasTable(&SchemaMigration{}) {
		return nil, nil
	}
	var rows []SchemaMigration
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return rows, nil
}

// Pending returns the known migrations that have not been applied.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.verify(applied); err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(applied))
	for _, row := range applied {
		done[row.Version] = true
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// verify rejects unknown versions and applied scripts whose content changed.
func (m *Migrator) verify(applied []SchemaMigration) error {
	known := make(map[int]Migration, len(m.migrations))
	for _, mig := range m.migrations {
		known[mig.Version] = mig
	}

	var unknown, edited []string
	for _, row := range applied {
		mig, ok := known[row.Version]
		switch {
		case !ok:
			unknown = append(unknown, fmt.Sprintf("%06d", row.Version))
		case row.Checksum != "" && row.Checksum != mig.Checksum():
			edited = append(edited, mig.String())
		}
	}
	sort.Strings(unknown)
	if len(unknown) > 0 {
		return fmt.Errorf("schema_migrations has versions unknown to this build: %s", strings.Join(unknown, ", "))
	}
	if len(edited) > 0 {
		return fmt.Errorf("applied migrations were edited after release: %s", strings.Join(edited, ", "))
	}
	return nil
}

// Up applies every pending migration, each in its own transaction.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}

	for i, mig := range pending {
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.Up).Error; err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   mig.Version,
				Name:      mig.Name,
				Checksum:  mig.Checksum(),
				AppliedAt: m.now(),
			}).Error
		})
		if err != nil {
			return i, fmt.Errorf("apply %s: %w", mig, err)
		}
		middleware.Logger.Info("migration applied", slog.String("migration", mig.String()))
	}
	return len(pending), nil
}

// Down reverts the most recently applied migration, which must be version.
func (m *Migrator) Down(ctx context.Context, version int) error {
	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return fmt.Errorf("no migrations have been applied")
	}
	if latest := applied[len(applied)-1].Version; latest != version {
		return fmt.Errorf("can only roll back the latest migration (%06d), not %06d", latest, version)
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %06d is not part of this build", version)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(target.Down).Error; err != nil {
			return err
		}
		return tx.Delete(&SchemaMigration{}, "version = ?", version).Error
	})
	if err != nil {
		return fmt.Errorf("roll back %s: %w", target, err)
	}
	middleware.Logger.Info("migration rolled back", slog.String("migration", target.String()))
	return nil
}

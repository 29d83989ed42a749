package database

import "guildhall/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.Application{},
		&models.Referral{},
		&models.AdminAuditLog{},
	}
}

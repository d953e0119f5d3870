package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/telemed-health/telemed-api/models"
)

// Migrate creates or updates the schema for every model.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.User{},
		&models.Patient{},
		&models.Provider{},
		&models.Appointment{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

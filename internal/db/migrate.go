package db

import (
	"fmt"

	"github.com/crewdeck/crewdeck/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Board{},
		&models.Gateway{},
		&models.Agent{},
		&models.Task{},
		&models.Approval{},
		&models.ApprovalTaskLink{},
		&models.ActivityEvent{},
		&models.BoardMemory{},
		&models.OnboardingSession{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

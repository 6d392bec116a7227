package db

import (
	"fmt"

	"github.com/zulandar/punchlist/internal/config"
	"github.com/zulandar/punchlist/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.Defect{},
		&models.DefectFile{},
		&models.DefectHistory{},
		&models.Task{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedUsers upserts User rows from configuration, keyed by email.
func SeedUsers(db *gorm.DB, users []config.UserConfig) error {
	for _, uc := range users {
		u := models.User{
			FullName: uc.FullName,
			Email:    uc.Email,
			Role:     models.Role(uc.Role),
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "role", "updated_at"}),
		}).Create(&u)
		if result.Error != nil {
			return fmt.Errorf("db: seed user %q: %w", uc.Email, result.Error)
		}
	}
	return nil
}

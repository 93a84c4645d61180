package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// AutoMigrate creates or updates every table the service owns
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.TierRange{},
		&models.Exam{},
		&models.Question{},
		&models.ExamResult{},
		&models.ModuleVariant{},
		&models.UserProgress{},
		&models.ExamSession{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SeedDefaultTiers stores the default tier table when none is configured
func SeedDefaultTiers(ctx context.Context, db *gorm.DB) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.TierRange{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count tier ranges: %w", err)
	}
	if count > 0 {
		return nil
	}
	defaults := models.DefaultTierRanges()
	if err := db.WithContext(ctx).Create(&defaults).Error; err != nil {
		return fmt.Errorf("failed to seed tier ranges: %w", err)
	}
	return nil
}

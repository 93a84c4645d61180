package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
)

type TierPostgreSQL struct {
	db *gorm.DB
}

func NewTierPostgreSQL(db *gorm.DB) repositories.TierRepository {
	return &TierPostgreSQL{db: db}
}

func (t *TierPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return t.db
}

// FindAll returns every stored row unvalidated; the classifier filters them
func (t *TierPostgreSQL) FindAll(ctx context.Context, tx *gorm.DB) ([]models.TierRange, error) {
	var ranges []models.TierRange
	if err := t.getDB(tx).WithContext(ctx).Order("min_pct ASC").Order("tier_key ASC").Find(&ranges).Error; err != nil {
		return nil, fmt.Errorf("failed to list tier ranges: %w", err)
	}
	return ranges, nil
}

func (t *TierPostgreSQL) ReplaceAll(ctx context.Context, tx *gorm.DB, ranges []models.TierRange) error {
	db := t.getDB(tx).WithContext(ctx)
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.TierRange{}).Error; err != nil {
		return fmt.Errorf("failed to clear tier ranges: %w", err)
	}
	if len(ranges) == 0 {
		return nil
	}
	rows := make([]models.TierRange, len(ranges))
	for i, r := range ranges {
		r.ID = 0
		rows[i] = r
	}
	if err := db.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to store tier ranges: %w", err)
	}
	return nil
}

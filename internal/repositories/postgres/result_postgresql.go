package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
)

type ResultPostgreSQL struct {
	db *gorm.DB
}

func NewResultPostgreSQL(db *gorm.DB) repositories.ResultRepository {
	return &ResultPostgreSQL{db: db}
}

func (r *ResultPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *ResultPostgreSQL) Create(ctx context.Context, tx *gorm.DB, result *models.ExamResult) error {
	if result.ID != 0 {
		return fmt.Errorf("exam result %d already stored, results are immutable", result.ID)
	}
	if err := r.getDB(tx).WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to create exam result: %w", err)
	}
	return nil
}

// FindLatestByUsername returns the most recent result, ties broken by id
func (r *ResultPostgreSQL) FindLatestByUsername(ctx context.Context, tx *gorm.DB, username string) (*models.ExamResult, error) {
	var result models.ExamResult
	err := r.getDB(tx).WithContext(ctx).
		Where("username = ?", username).
		Order("created_at DESC").Order("id DESC").
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NewNotFoundError("exam result", username)
		}
		return nil, fmt.Errorf("failed to get latest exam result: %w", err)
	}
	return &result, nil
}

func (r *ResultPostgreSQL) ListUsernames(ctx context.Context, tx *gorm.DB) ([]string, error) {
	var usernames []string
	err := r.getDB(tx).WithContext(ctx).
		Model(&models.ExamResult{}).
		Distinct("username").
		Order("username ASC").
		Pluck("username", &usernames).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list result usernames: %w", err)
	}
	return usernames, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/learning-path-service/internal/cache"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
)

type ProgressPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewProgressPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ProgressRepository {
	return &ProgressPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (p *ProgressPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}

func (p *ProgressPostgreSQL) FindByUsername(ctx context.Context, tx *gorm.DB, username string) (*models.UserProgress, error) {
	db := p.getDB(tx)

	fetch := func() (interface{}, error) {
		var progress models.UserProgress
		if err := db.WithContext(ctx).Where("username = ?", username).First(&progress).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.NewNotFoundError("user progress", username)
			}
			return nil, fmt.Errorf("failed to get user progress: %w", err)
		}
		return &progress, nil
	}

	if inTransaction(db) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		return v.(*models.UserProgress), nil
	}

	var progress models.UserProgress
	if err := p.cacheManager.Progress.CacheOrExecute(ctx, cache.ProgressKey(username), &progress, cache.ProgressCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return &progress, nil
}

// Upsert writes the whole row, keyed by username
func (p *ProgressPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, progress *models.UserProgress) error {
	db := p.getDB(tx).WithContext(ctx)

	var err error
	if progress.ID != 0 {
		err = db.Save(progress).Error
	} else {
		err = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			UpdateAll: true,
		}).Create(progress).Error
	}
	if err != nil {
		return fmt.Errorf("failed to upsert user progress: %w", err)
	}

	cache.InvalidateProgressCache(ctx, p.cacheManager, progress.Username)
	return nil
}

func (p *ProgressPostgreSQL) DeleteByUsername(ctx context.Context, tx *gorm.DB, username string) error {
	result := p.getDB(tx).WithContext(ctx).Where("username = ?", username).Delete(&models.UserProgress{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user progress: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.NewNotFoundError("user progress", username)
	}
	cache.InvalidateProgressCache(ctx, p.cacheManager, username)
	return nil
}

func (p *ProgressPostgreSQL) InvalidateCache(ctx context.Context, username string) {
	cache.InvalidateProgressCache(ctx, p.cacheManager, username)
}

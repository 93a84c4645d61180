package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/learning-path-service/internal/cache"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/scoring"
)

type ModulePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewModulePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ModuleRepository {
	return &ModulePostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (m *ModulePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return m.db
}

// FindActive lists active module variants in authoring order, with caching
func (m *ModulePostgreSQL) FindActive(ctx context.Context, tx *gorm.DB, filter repositories.ModuleFilter) ([]models.ModuleVariant, error) {
	db := m.getDB(tx)

	fetch := func() (interface{}, error) {
		var rows []models.ModuleVariant
		if err := applyModuleFilter(db.WithContext(ctx), filter).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to list modules: %w", err)
		}
		out := make([]models.ModuleVariant, 0, len(rows))
		for _, row := range rows {
			if matchesTopic(row.TopicTitle, filter.TopicKey) {
				out = append(out, row)
			}
		}
		return out, nil
	}

	if inTransaction(db) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		return v.([]models.ModuleVariant), nil
	}

	cacheKey := fmt.Sprintf("list:%s:%t", scoring.NormalizeTopic(filter.TopicKey), filter.ExcludeCheckpoints)
	var modules []models.ModuleVariant
	if err := m.cacheManager.Module.CacheOrExecute(ctx, cacheKey, &modules, cache.ModuleCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return modules, nil
}

// Upsert inserts new variants and updates existing ones matched by identity
func (m *ModulePostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, modules []models.ModuleVariant) (int, error) {
	if len(modules) == 0 {
		return 0, nil
	}

	result := m.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "topic_title"}, {Name: "tier"}, {Name: "title"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score_min", "score_max", "is_active", "is_checkpoint", "order", "updated_at",
			}),
		}).
		Create(&modules)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert modules: %w", result.Error)
	}

	cache.InvalidateModuleCache(ctx, m.cacheManager)
	return len(modules), nil
}

func (m *ModulePostgreSQL) InvalidateCache(ctx context.Context) {
	cache.InvalidateModuleCache(ctx, m.cacheManager)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/cache"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
)

type SessionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
	cacheTTL     time.Duration
}

// NewSessionPostgreSQL caches active-session lookups for cacheTTL; zero uses
// cache.SessionCacheConfig.TTL.
func NewSessionPostgreSQL(db *gorm.DB, redisClient *redis.Client, cacheTTL time.Duration) repositories.SessionRepository {
	if cacheTTL <= 0 {
		cacheTTL = cache.SessionCacheConfig.TTL
	}
	return &SessionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
		cacheTTL:     cacheTTL,
	}
}

func (s *SessionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Create inserts a session. A second active session for the same user and
// exam type violates idx_exam_sessions_one_active.
func (s *SessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	if err := s.getDB(tx).WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create exam session: %w", err)
	}
	cache.InvalidateSessionCache(ctx, s.cacheManager, session.Username)
	return nil
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ExamSession, error) {
	var session models.ExamSession
	if err := s.getDB(tx).WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NewNotFoundError("exam session", id)
		}
		return nil, fmt.Errorf("failed to get exam session: %w", err)
	}
	return &session, nil
}

// FindActive returns the user's active session for an exam type, with caching
func (s *SessionPostgreSQL) FindActive(ctx context.Context, tx *gorm.DB, username string, examType models.ExamType) (*models.ExamSession, error) {
	db := s.getDB(tx)
	examType = examType.OrDefault()

	fetch := func() (interface{}, error) {
		var session models.ExamSession
		err := db.WithContext(ctx).
			Where("username = ? AND exam_type = ? AND is_active = ?", username, examType, true).
			Order("started_at DESC").
			First(&session).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.NewNotFoundError("active exam session", username)
			}
			return nil, fmt.Errorf("failed to find active exam session: %w", err)
		}
		return &session, nil
	}

	if inTransaction(db) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		return v.(*models.ExamSession), nil
	}

	var session models.ExamSession
	if err := s.cacheManager.Session.CacheOrExecute(ctx, cache.ActiveSessionKey(username, examType), &session, s.cacheTTL, fetch); err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateProgress writes the progress columns of an active session and
// returns the rows affected; zero means the session is gone or inactive.
func (s *SessionPostgreSQL) UpdateProgress(ctx context.Context, tx *gorm.DB, session *models.ExamSession) (int64, error) {
	return s.updateActive(ctx, tx, session, map[string]interface{}{
		"answers":          session.Answers,
		"current_question": session.CurrentQuestion,
		"time_left":        session.TimeLeft,
		"last_saved_at":    session.LastSavedAt,
	})
}

// MarkCompleted stores the final answers and deactivates the session if it is
// still active. Zero rows affected means another request completed it first.
func (s *SessionPostgreSQL) MarkCompleted(ctx context.Context, tx *gorm.DB, session *models.ExamSession) (int64, error) {
	return s.updateActive(ctx, tx, session, map[string]interface{}{
		"answers":       session.Answers,
		"time_spent":    session.TimeSpent,
		"last_saved_at": session.LastSavedAt,
		"is_active":     false,
	})
}

func (s *SessionPostgreSQL) updateActive(ctx context.Context, tx *gorm.DB, session *models.ExamSession, columns map[string]interface{}) (int64, error) {
	result := s.getDB(tx).WithContext(ctx).
		Model(&models.ExamSession{}).
		Where("id = ? AND is_active = ?", session.ID, true).
		Updates(columns)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update exam session: %w", result.Error)
	}
	cache.InvalidateSessionCache(ctx, s.cacheManager, session.Username)
	return result.RowsAffected, nil
}

func (s *SessionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error {
	if err := s.getDB(tx).WithContext(ctx).Delete(&models.ExamSession{}, "id = ?", session.ID).Error; err != nil {
		return fmt.Errorf("failed to delete exam session: %w", err)
	}
	cache.InvalidateSessionCache(ctx, s.cacheManager, session.Username)
	return nil
}

func (s *SessionPostgreSQL) DeactivateActive(ctx context.Context, tx *gorm.DB, username string, examType models.ExamType) (int64, error) {
	result := s.getDB(tx).WithContext(ctx).
		Model(&models.ExamSession{}).
		Where("username = ? AND exam_type = ? AND is_active = ?", username, examType.OrDefault(), true).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate exam sessions: %w", result.Error)
	}
	cache.InvalidateSessionCache(ctx, s.cacheManager, username)
	return result.RowsAffected, nil
}

func (s *SessionPostgreSQL) InvalidateCache(ctx context.Context, username string) {
	cache.InvalidateSessionCache(ctx, s.cacheManager, username)
}

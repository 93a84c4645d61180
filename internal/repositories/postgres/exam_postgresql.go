package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/cache"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

// Create stores an exam together with its questions
func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	exam.ExamType = exam.ExamType.OrDefault()
	if err := db.WithContext(ctx).Create(exam).Error; err != nil {
		return fmt.Errorf("failed to create exam: %w", err)
	}
	cache.InvalidateExamCache(ctx, e.cacheManager)
	return nil
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).First(&exam, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NewNotFoundError("exam", id)
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return &exam, nil
}

// GetByIDWithQuestions loads an exam with its questions in authoring order.
// Never cached: canonical answers must not leave the database.
func (e *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"order\" ASC").Order("id ASC")
		}).
		First(&exam, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NewNotFoundError("exam", id)
		}
		return nil, fmt.Errorf("failed to get exam with questions: %w", err)
	}
	return &exam, nil
}

// GetActiveExam returns the newest active exam of a type, with caching
func (e *ExamPostgreSQL) GetActiveExam(ctx context.Context, tx *gorm.DB, examType models.ExamType) (*models.Exam, error) {
	db := e.getDB(tx)
	examType = examType.OrDefault()

	fetch := func() (interface{}, error) {
		var exam models.Exam
		err := db.WithContext(ctx).
			Where("exam_type = ? AND is_active = ?", examType, true).
			Order("updated_at DESC").Order("id DESC").
			First(&exam).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.NewNotFoundError("active exam", examType)
			}
			return nil, fmt.Errorf("failed to get active exam: %w", err)
		}
		return &exam, nil
	}

	if inTransaction(db) {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		return v.(*models.Exam), nil
	}

	var exam models.Exam
	if err := e.cacheManager.Exam.CacheOrExecute(ctx, cache.ActiveExamKey(examType), &exam, cache.ExamCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) ListTopicLabels(ctx context.Context, tx *gorm.DB) ([]string, error) {
	db := e.getDB(tx)
	var labels []string
	err := db.WithContext(ctx).
		Model(&models.Question{}).
		Where("topic_label <> ''").
		Distinct("topic_label").
		Order("topic_label ASC").
		Pluck("topic_label", &labels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list topic labels: %w", err)
	}
	return labels, nil
}

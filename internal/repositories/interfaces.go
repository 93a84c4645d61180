package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ModuleFilter struct {
	// Normalized topic key; empty means every topic
	TopicKey           string `json:"topic_key"`
	ExcludeCheckpoints bool   `json:"exclude_checkpoints"`
}

// ===== DOMAIN REPOSITORIES =====

// ExamRepository reads exam content. Questions are owned by their exam.
type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetActiveExam(ctx context.Context, tx *gorm.DB, examType models.ExamType) (*models.Exam, error)
	// Distinct non-empty topic labels across all questions
	ListTopicLabels(ctx context.Context, tx *gorm.DB) ([]string, error)
}

// ResultRepository is append-only; results are never updated.
type ResultRepository interface {
	Create(ctx context.Context, tx *gorm.DB, result *models.ExamResult) error
	FindLatestByUsername(ctx context.Context, tx *gorm.DB, username string) (*models.ExamResult, error)
	ListUsernames(ctx context.Context, tx *gorm.DB) ([]string, error)
}

type ModuleRepository interface {
	FindActive(ctx context.Context, tx *gorm.DB, filter ModuleFilter) ([]models.ModuleVariant, error)
	// Upsert inserts or updates by (topic_title, tier, title)
	Upsert(ctx context.Context, tx *gorm.DB, modules []models.ModuleVariant) (int, error)
	// InvalidateCache drops cached catalog listings; call after a commit
	InvalidateCache(ctx context.Context)
}

type ProgressRepository interface {
	FindByUsername(ctx context.Context, tx *gorm.DB, username string) (*models.UserProgress, error)
	Upsert(ctx context.Context, tx *gorm.DB, progress *models.UserProgress) error
	DeleteByUsername(ctx context.Context, tx *gorm.DB, username string) error
	// InvalidateCache drops the cached progress row; call after a commit
	InvalidateCache(ctx context.Context, username string)
}

type TierRepository interface {
	FindAll(ctx context.Context, tx *gorm.DB) ([]models.TierRange, error)
	// ReplaceAll swaps the whole table
	ReplaceAll(ctx context.Context, tx *gorm.DB, ranges []models.TierRange) error
}

type SessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ExamSession, error)
	FindActive(ctx context.Context, tx *gorm.DB, username string, examType models.ExamType) (*models.ExamSession, error)
	// UpdateProgress and MarkCompleted only touch an active session and
	// return the rows affected
	UpdateProgress(ctx context.Context, tx *gorm.DB, session *models.ExamSession) (int64, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, session *models.ExamSession) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, session *models.ExamSession) error
	// DeactivateActive marks every active session of the user for the exam type inactive
	DeactivateActive(ctx context.Context, tx *gorm.DB, username string, examType models.ExamType) (int64, error)
	// InvalidateCache drops cached active-session lookups; call after a commit
	InvalidateCache(ctx context.Context, username string)
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
)

type examService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ExamService {
	return &examService{repo: repo, db: db, logger: logger}
}

// GetActiveExam returns the exam a user takes, without correct answers.
func (s *examService) GetActiveExam(ctx context.Context, examType models.ExamType) (*models.PublicExam, error) {
	examType = examType.OrDefault()

	active, err := s.repo.Exam().GetActiveExam(ctx, s.db, examType)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			s.logger.Warn("No active exam configured", "exam_type", examType)
			return nil, ErrNoActiveExam
		}
		return nil, fmt.Errorf("failed to get active exam: %w", err)
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, active.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNoActiveExam
		}
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}
	return models.NewPublicExam(exam), nil
}

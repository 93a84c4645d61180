package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/events"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

type examSessionService struct {
	repo        repositories.Repository
	db          *gorm.DB
	logger      *slog.Logger
	validator   *validator.Validator
	assignments AssignmentService
	publisher   events.EventPublisher
	now         func() time.Time
}

func NewExamSessionService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	assignments AssignmentService,
	publisher events.EventPublisher,
) ExamSessionService {
	return &examSessionService{
		repo:        repo,
		db:          db,
		logger:      logger,
		validator:   validator,
		assignments: assignments,
		publisher:   publisher,
		now:         time.Now,
	}
}

// ===== LIFECYCLE =====

func (s *examSessionService) Start(ctx context.Context, username string, req *StartSessionRequest) (*models.ExamSession, error) {
	s.logger.Info("Starting exam session",
		"username", username,
		"exam_id", req.ExamID,
		"exam_type", req.ExamType)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	examType := req.ExamType.OrDefault()

	exam, err := s.repo.Exam().GetByID(ctx, s.db, req.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !exam.IsActive {
		return nil, ErrNoActiveExam
	}
	if exam.ExamType != examType {
		return nil, ErrExamTypeMismatch
	}

	current, err := s.repo.Session().FindActive(ctx, s.db, username, examType)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}
	if current != nil && current.ExamID == exam.ID {
		s.logger.Info("Resuming existing exam session", "session_id", current.ID, "username", username)
		return current, nil
	}

	now := s.now().UTC()
	session := &models.ExamSession{
		Username:    username,
		ExamID:      exam.ID,
		ExamType:    examType,
		Answers:     []byte("{}"),
		TimeLeft:    exam.TimeLimit * 60,
		StartedAt:   now,
		LastSavedAt: now,
		IsActive:    true,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		replaced, err := s.repo.Session().DeactivateActive(ctx, tx, username, examType)
		if err != nil {
			return err
		}
		if replaced > 0 {
			s.logger.Info("Replacing active exam session for a different exam",
				"username", username,
				"exam_type", examType,
				"replaced", replaced)
		}
		return s.repo.Session().Create(ctx, tx, session)
	})
	s.repo.Session().InvalidateCache(ctx, username)

	if err != nil {
		if !repositories.IsDuplicateError(err) {
			return nil, fmt.Errorf("failed to start exam session: %w", err)
		}
		// A concurrent start won the race
		winner, findErr := s.repo.Session().FindActive(ctx, s.db, username, examType)
		if findErr != nil {
			return nil, fmt.Errorf("failed to start exam session: %w", err)
		}
		if winner.ExamID != exam.ID {
			return nil, NewBusinessRuleError("one_active_session",
				"another exam session was started concurrently",
				map[string]interface{}{"session_id": winner.ID, "exam_id": winner.ExamID})
		}
		return winner, nil
	}

	s.logger.Info("Exam session started", "session_id", session.ID, "username", username)
	return session, nil
}

func (s *examSessionService) GetActive(ctx context.Context, username string, examType models.ExamType) (*models.ExamSession, error) {
	session, err := s.repo.Session().FindActive(ctx, s.db, username, examType.OrDefault())
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return session, nil
}

func (s *examSessionService) SaveProgress(ctx context.Context, sessionID, username string, req *SaveProgressRequest) (*models.ExamSession, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.getOwnedActive(ctx, sessionID, username, "save")
	if err != nil {
		return nil, err
	}

	if req.Answers != nil {
		answers, err := models.EncodeAnswers(req.Answers)
		if err != nil {
			return nil, fmt.Errorf("failed to encode answers: %w", err)
		}
		session.Answers = answers
	}
	session.CurrentQuestion = req.CurrentQuestion
	session.TimeLeft = req.TimeLeft
	session.LastSavedAt = s.now().UTC()

	// Completed or cancelled since the read above
	saved, err := s.repo.Session().UpdateProgress(ctx, s.db, session)
	if err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	if saved == 0 {
		return nil, ErrSessionNotActive
	}

	s.logger.Debug("Exam session progress saved",
		"session_id", session.ID,
		"current_question", session.CurrentQuestion,
		"time_left", session.TimeLeft)
	return session, nil
}

// Complete stores the result and recomputes the assignment. A failed
// recompute is logged; the stored result is still returned.
func (s *examSessionService) Complete(ctx context.Context, sessionID, username string, req *CompleteSessionRequest) (*models.CompletionResult, error) {
	s.logger.Info("Completing exam session", "session_id", sessionID, "username", username)

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.getOwnedActive(ctx, sessionID, username, "complete")
	if err != nil {
		return nil, err
	}

	merged := mergeAnswers(session.AnswerMap(), req.FinalAnswers)
	answers, err := models.EncodeAnswers(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	now := s.now().UTC()
	timeSpent := req.TimeSpent
	if timeSpent == 0 {
		timeSpent = int(now.Sub(session.StartedAt).Seconds())
	}

	result := &models.ExamResult{
		Username:  username,
		ExamID:    session.ExamID,
		ExamType:  session.ExamType,
		SessionID: session.ID,
		Answers:   answers,
		TimeSpent: timeSpent,
		CreatedAt: now,
	}

	session.Answers = answers
	session.TimeSpent = timeSpent
	session.LastSavedAt = now

	// Only the request that deactivates the session stores a result
	err = s.db.Transaction(func(tx *gorm.DB) error {
		completed, err := s.repo.Session().MarkCompleted(ctx, tx, session)
		if err != nil {
			return err
		}
		if completed == 0 {
			return ErrSessionNotActive
		}
		return s.repo.Result().Create(ctx, tx, result)
	})
	s.repo.Session().InvalidateCache(ctx, username)
	if err != nil {
		if errors.Is(err, ErrSessionNotActive) {
			return nil, ErrSessionNotActive
		}
		return nil, fmt.Errorf("failed to complete exam session: %w", err)
	}
	session.IsActive = false

	s.logger.Info("Exam result stored",
		"result_id", result.ID,
		"session_id", session.ID,
		"username", username,
		"answers", len(merged))

	if s.publisher != nil {
		payload := events.ExamCompletedPayload{
			ResultID:  result.ID,
			SessionID: session.ID,
			ExamID:    result.ExamID,
			ExamType:  string(result.ExamType),
			TimeSpent: result.TimeSpent,
		}
		if err := s.publisher.Publish(ctx, events.EventExamCompleted, username, payload); err != nil {
			s.logger.Error("Failed to publish exam completed event", "result_id", result.ID, "error", err)
		}
	}

	completion := &models.CompletionResult{Result: result}
	assignment, err := s.assignments.Recompute(ctx, username)
	if err != nil {
		s.logger.Error("Assignment recompute after completion failed",
			"username", username,
			"result_id", result.ID,
			"error", err)
		return completion, nil
	}
	completion.Assignment = assignment
	return completion, nil
}

func (s *examSessionService) Cancel(ctx context.Context, sessionID, username string) error {
	s.logger.Info("Cancelling exam session", "session_id", sessionID, "username", username)

	session, err := s.getOwned(ctx, sessionID, username, "cancel")
	if err != nil {
		return err
	}
	if err := s.repo.Session().Delete(ctx, s.db, session); err != nil {
		return fmt.Errorf("failed to cancel exam session: %w", err)
	}
	return nil
}

// ===== HELPERS =====

func (s *examSessionService) getOwned(ctx context.Context, sessionID, username, action string) (*models.ExamSession, error) {
	session, err := s.repo.Session().GetByID(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get exam session: %w", err)
	}
	if session.Username != username {
		return nil, NewPermissionError(username, sessionID, "exam session", action, "not owned by user")
	}
	return session, nil
}

func (s *examSessionService) getOwnedActive(ctx context.Context, sessionID, username, action string) (*models.ExamSession, error) {
	session, err := s.getOwned(ctx, sessionID, username, action)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, ErrSessionNotActive
	}
	return session, nil
}

// mergeAnswers overlays final answers on the saved ones.
func mergeAnswers(saved, final map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(saved)+len(final))
	for k, v := range saved {
		out[k] = v
	}
	for k, v := range final {
		out[k] = v
	}
	return out
}

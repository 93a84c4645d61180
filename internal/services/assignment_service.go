package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/events"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/scoring"
	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

var tracer = otel.Tracer("github.com/SAP-F-2025/learning-path-service/internal/services")

type assignmentService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	classifier *scoring.TierClassifier
	selector   *scoring.ModuleSelector
	publisher  events.EventPublisher
	now        func() time.Time
}

func NewAssignmentService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	classifier *scoring.TierClassifier,
	selector *scoring.ModuleSelector,
	publisher events.EventPublisher,
) AssignmentService {
	return &assignmentService{
		repo:       repo,
		db:         db,
		logger:     logger,
		validator:  validator,
		classifier: classifier,
		selector:   selector,
		publisher:  publisher,
		now:        time.Now,
	}
}

// ===== RECOMPUTATION =====

func (s *assignmentService) Recompute(ctx context.Context, username string) (*RecomputeOutcome, error) {
	ctx, span := tracer.Start(ctx, "AssignmentService.Recompute",
		trace.WithAttributes(attribute.String("username", username)))
	defer span.End()

	outcome, err := s.recompute(ctx, username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("overall_pct", outcome.OverallPct),
		attribute.Int("assigned", len(outcome.AssignedIDs)),
		attribute.Bool("changed", outcome.Changed),
	)
	return outcome, nil
}

func (s *assignmentService) recompute(ctx context.Context, username string) (*RecomputeOutcome, error) {
	s.logger.Debug("Recomputing module assignment", "username", username)

	result, err := s.repo.Result().FindLatestByUsername(ctx, s.db, username)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			s.logger.Debug("No exam result, progress unchanged", "username", username)
			return s.unchanged(ctx, username)
		}
		return nil, fmt.Errorf("failed to load latest result: %w", err)
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, s.db, result.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			s.logger.Warn("Exam of latest result no longer exists, progress unchanged",
				"username", username,
				"result_id", result.ID,
				"exam_id", result.ExamID)
			return s.unchanged(ctx, username)
		}
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	answers, err := result.AnswerMap()
	if err != nil {
		s.logger.Warn("Malformed answers, scoring as unanswered", "username", username, "error", err)
	}

	agg := scoring.Aggregate(exam.Questions, answers, s.classifier, s.logger)

	catalog, err := s.repo.Module().FindActive(ctx, s.db, repositories.ModuleFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load module catalog: %w", err)
	}

	advanced := s.selector.IsAdvanced(agg.OverallPct)
	sel := s.selector.Select(agg.TopicStats, advanced, catalog)

	outcome := &RecomputeOutcome{
		TopicStats:    agg.TopicStats,
		OverallPct:    agg.OverallPct,
		AdvancedUser:  advanced,
		AssignedIDs:   sel.AssignedIDs,
		AccessibleIDs: sel.AccessibleIDs,
		Skipped:       sel.Skipped,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		progress, err := s.repo.Progress().FindByUsername(ctx, tx, username)
		if err != nil {
			if !repositories.IsNotFoundError(err) {
				return err
			}
			progress = &models.UserProgress{Username: username}
		}

		outcome.Changed = applyOutcome(progress, outcome)

		now := s.now().UTC()
		if !progress.HasCompletedPreAssessment {
			completedAt := result.CreatedAt
			progress.HasCompletedPreAssessment = true
			progress.PreAssessmentCompletedAt = &completedAt
			outcome.Changed = true
		}
		progress.LastRecomputedAt = &now

		return s.repo.Progress().Upsert(ctx, tx, progress)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store user progress: %w", err)
	}
	s.repo.Progress().InvalidateCache(ctx, username)

	s.logger.Info("Module assignment recomputed",
		"username", username,
		"result_id", result.ID,
		"overall_pct", outcome.OverallPct,
		"advanced", outcome.AdvancedUser,
		"assigned", outcome.AssignedIDs,
		"skipped_topics", len(outcome.Skipped),
		"changed", outcome.Changed)

	s.publish(ctx, username, outcome)
	return outcome, nil
}

// applyOutcome copies the outcome onto progress and reports whether anything changed.
func applyOutcome(progress *models.UserProgress, outcome *RecomputeOutcome) bool {
	scores := make(models.TopicScores, len(outcome.TopicStats))
	legacy := make(map[string]int, len(outcome.TopicStats))
	for _, st := range outcome.TopicStats {
		scores[st.Key] = st
		legacy[st.Label] = st.Pct
	}

	changed := progress.OverallScore != outcome.OverallPct ||
		progress.AdvancedUser != outcome.AdvancedUser ||
		!slices.Equal([]uint(progress.AssignedModuleIDs), outcome.AssignedIDs) ||
		!slices.Equal([]uint(progress.AccessibleModuleIDs), outcome.AccessibleIDs) ||
		!sameTopicScores(progress.TopicScores.Data(), scores)

	progress.TopicScores = datatypes.NewJSONType(scores)
	progress.LegacyTopicScores = datatypes.NewJSONType(legacy)
	progress.OverallScore = outcome.OverallPct
	progress.AdvancedUser = outcome.AdvancedUser
	progress.AssignedModuleIDs = datatypes.JSONSlice[uint](slices.Clone(outcome.AssignedIDs))
	progress.AccessibleModuleIDs = datatypes.JSONSlice[uint](slices.Clone(outcome.AccessibleIDs))
	if progress.CompletedModuleIDs == nil {
		progress.CompletedModuleIDs = datatypes.JSONSlice[uint]{}
	}
	return changed
}

func sameTopicScores(a, b models.TopicScores) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// unchanged reports the stored progress without touching it.
func (s *assignmentService) unchanged(ctx context.Context, username string) (*RecomputeOutcome, error) {
	progress, err := s.repo.Progress().FindByUsername(ctx, s.db, username)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return &RecomputeOutcome{
				TopicStats:    []models.TopicScoreStat{},
				AssignedIDs:   []uint{},
				AccessibleIDs: []uint{},
			}, nil
		}
		return nil, fmt.Errorf("failed to load user progress: %w", err)
	}
	return &RecomputeOutcome{
		TopicStats:    sortedTopicStats(progress.TopicScores.Data()),
		OverallPct:    progress.OverallScore,
		AdvancedUser:  progress.AdvancedUser,
		AssignedIDs:   append([]uint{}, progress.AssignedModuleIDs...),
		AccessibleIDs: append([]uint{}, progress.AccessibleModuleIDs...),
	}, nil
}

func sortedTopicStats(scores models.TopicScores) []models.TopicScoreStat {
	stats := make([]models.TopicScoreStat, 0, len(scores))
	for _, st := range scores {
		stats = append(stats, st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Key < stats[j].Key })
	return stats
}

func (s *assignmentService) publish(ctx context.Context, username string, outcome *RecomputeOutcome) {
	if s.publisher == nil {
		return
	}
	payload := events.AssignmentsRecomputedPayload{
		OverallPct:    outcome.OverallPct,
		AdvancedUser:  outcome.AdvancedUser,
		AssignedIDs:   outcome.AssignedIDs,
		AccessibleIDs: outcome.AccessibleIDs,
		Changed:       outcome.Changed,
		SkippedTopics: len(outcome.Skipped),
	}
	if err := s.publisher.Publish(ctx, events.EventAssignmentsRecomputed, username, payload); err != nil {
		s.logger.Error("Failed to publish assignments event", "username", username, "error", err)
	}
}

func (s *assignmentService) RecomputeAll(ctx context.Context) (*BatchReport, error) {
	start := s.now()

	usernames, err := s.repo.Result().ListUsernames(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with results: %w", err)
	}

	report := &BatchReport{Users: len(usernames)}
	for _, username := range usernames {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome, err := s.Recompute(ctx, username)
		if err != nil {
			s.logger.Error("Recompute failed", "username", username, "error", err)
			report.Failed++
			report.Failures = append(report.Failures, username)
			continue
		}
		if outcome.Changed {
			report.Changed++
		}
	}
	report.Duration = s.now().Sub(start)

	s.logger.Info("Batch recompute finished",
		"users", report.Users,
		"changed", report.Changed,
		"failed", report.Failed,
		"duration", report.Duration)
	return report, nil
}

// ===== PROGRESS READS =====

func (s *assignmentService) GetProgress(ctx context.Context, username string) (*models.ProgressResponse, error) {
	if _, err := s.Recompute(ctx, username); err != nil {
		return nil, err
	}

	progress, err := s.repo.Progress().FindByUsername(ctx, s.db, username)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return emptyProgress(username), nil
		}
		return nil, fmt.Errorf("failed to load user progress: %w", err)
	}
	return toProgressResponse(progress), nil
}

func emptyProgress(username string) *models.ProgressResponse {
	return &models.ProgressResponse{
		Username:            username,
		TopicScores:         []models.TopicScoreStat{},
		LegacyTopicScores:   map[string]int{},
		AssignedModuleIDs:   []uint{},
		AccessibleModuleIDs: []uint{},
		CompletedModuleIDs:  []uint{},
	}
}

func toProgressResponse(p *models.UserProgress) *models.ProgressResponse {
	legacy := p.LegacyTopicScores.Data()
	if legacy == nil {
		legacy = map[string]int{}
	}
	return &models.ProgressResponse{
		Username:                  p.Username,
		TopicScores:               sortedTopicStats(p.TopicScores.Data()),
		LegacyTopicScores:         legacy,
		OverallScore:              p.OverallScore,
		AdvancedUser:              p.AdvancedUser,
		AssignedModuleIDs:         append([]uint{}, p.AssignedModuleIDs...),
		AccessibleModuleIDs:       append([]uint{}, p.AccessibleModuleIDs...),
		CompletedModuleIDs:        append([]uint{}, p.CompletedModuleIDs...),
		HasCompletedPreAssessment: p.HasCompletedPreAssessment,
		PreAssessmentCompletedAt:  p.PreAssessmentCompletedAt,
		LastRecomputedAt:          p.LastRecomputedAt,
	}
}

// ListModules returns the accessible modules in catalog order.
func (s *assignmentService) ListModules(ctx context.Context, username string) ([]models.ModuleView, error) {
	progress, err := s.repo.Progress().FindByUsername(ctx, s.db, username)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return []models.ModuleView{}, nil
		}
		return nil, fmt.Errorf("failed to load user progress: %w", err)
	}

	catalog, err := s.repo.Module().FindActive(ctx, s.db, repositories.ModuleFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load module catalog: %w", err)
	}

	accessible := idSet(progress.AccessibleModuleIDs)
	assigned := idSet(progress.AssignedModuleIDs)
	completed := idSet(progress.CompletedModuleIDs)

	views := make([]models.ModuleView, 0, len(accessible))
	for _, m := range catalog {
		if !accessible[m.ID] {
			continue
		}
		views = append(views, models.ModuleView{
			ModuleVariant: m,
			Assigned:      assigned[m.ID],
			Completed:     completed[m.ID],
		})
	}
	return views, nil
}

func idSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (s *assignmentService) DeleteProgress(ctx context.Context, username string) error {
	s.logger.Info("Deleting user progress", "username", username)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.repo.Progress().DeleteByUsername(ctx, tx, username)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrProgressNotFound
		}
		return fmt.Errorf("failed to delete user progress: %w", err)
	}
	s.repo.Progress().InvalidateCache(ctx, username)
	return nil
}

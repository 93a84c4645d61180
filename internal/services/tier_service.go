package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/scoring"
	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

type tierService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	classifier *scoring.TierClassifier
}

func NewTierService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) TierService {
	s := &tierService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
	s.classifier = scoring.NewTierClassifier(scoring.TierSourceFunc(s.load), validator, logger)
	return s
}

func (s *tierService) load(ctx context.Context) ([]models.TierRange, error) {
	return s.repo.Tier().FindAll(ctx, s.db)
}

func (s *tierService) Classifier() *scoring.TierClassifier {
	return s.classifier
}

func (s *tierService) Ranges() []models.TierRange {
	return s.classifier.Ranges()
}

func (s *tierService) Refresh(ctx context.Context) ([]models.TierRange, error) {
	return s.classifier.Refresh(ctx)
}

func (s *tierService) Replace(ctx context.Context, ranges []models.TierRange) ([]models.TierRange, error) {
	s.logger.Info("Replacing tier table", "ranges", len(ranges))

	if len(ranges) == 0 {
		return nil, NewBusinessRuleError("tier_table_not_empty", "at least one tier range is required", nil)
	}

	seen := make(map[string]bool, len(ranges))
	var errs ValidationErrors
	for i := range ranges {
		ranges[i].Key = strings.TrimSpace(strings.ToLower(ranges[i].Key))
		ranges[i].Label = strings.TrimSpace(ranges[i].Label)
		if err := s.validator.Validate(&ranges[i]); err != nil {
			for _, fe := range validator.ToValidationErrors(err) {
				fe.Field = fmt.Sprintf("ranges[%d].%s", i, fe.Field)
				errs = append(errs, fe)
			}
			continue
		}
		if seen[ranges[i].Key] {
			errs = append(errs, validator.ValidationError{
				Field:   fmt.Sprintf("ranges[%d].Key", i),
				Message: "is duplicated",
				Value:   ranges[i].Key,
				Rule:    "unique",
			})
		}
		seen[ranges[i].Key] = true
	}
	if len(errs) > 0 {
		return nil, errs
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.repo.Tier().ReplaceAll(ctx, tx, ranges)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replace tier table: %w", err)
	}

	return s.classifier.Refresh(ctx)
}

func (s *tierService) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.classifier.Refresh(ctx); err != nil {
					s.logger.Warn("Background tier refresh failed", "error", err)
				}
			}
		}
	}()
}

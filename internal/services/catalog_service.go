package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/scoring"
	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

const ModuleSheet = "modules"

var moduleColumns = []string{"topic", "tier", "min", "max", "title", "order", "checkpoint", "active"}

type catalogService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	classifier *scoring.TierClassifier
	topics     *scoring.TopicRegistry
}

func NewCatalogService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	classifier *scoring.TierClassifier,
	topics *scoring.TopicRegistry,
) CatalogService {
	return &catalogService{
		repo:       repo,
		db:         db,
		logger:     logger,
		validator:  validator,
		classifier: classifier,
		topics:     topics,
	}
}

// RefreshTopics rebuilds the topic registry from the exam content.
func (s *catalogService) RefreshTopics(ctx context.Context) error {
	labels, err := s.repo.Exam().ListTopicLabels(ctx, s.db)
	if err != nil {
		return fmt.Errorf("failed to load topic labels: %w", err)
	}
	s.topics.Replace(labels)
	s.logger.Info("Topic registry refreshed", "topics", s.topics.Len())
	return nil
}

func (s *catalogService) Topics() []string {
	keys := s.topics.Keys()
	titles := make([]string, 0, len(keys))
	for _, k := range keys {
		titles = append(titles, s.topics.Title(k))
	}
	return titles
}

func (s *catalogService) Import(ctx context.Context, r io.Reader) (*models.ImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	rows, err := f.GetRows(ModuleSheet)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrInvalidWorkbook, ModuleSheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrInvalidWorkbook, ModuleSheet)
	}

	columns, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	if s.topics.Len() == 0 {
		if err := s.RefreshTopics(ctx); err != nil {
			return nil, err
		}
	}

	report := &models.ImportReport{Errors: []models.ImportRowError{}}
	var modules []models.ModuleVariant
	for i, cells := range rows[1:] {
		rowNum := i + 2
		if blankRow(cells) {
			continue
		}
		module, err := s.parseRow(columns, cells)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, models.ImportRowError{Row: rowNum, Message: err.Error()})
			continue
		}
		modules = append(modules, *module)
	}

	if len(modules) > 0 {
		err = s.db.Transaction(func(tx *gorm.DB) error {
			n, err := s.repo.Module().Upsert(ctx, tx, modules)
			report.Imported = n
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to import modules: %w", err)
		}
		s.repo.Module().InvalidateCache(ctx)
	}

	s.logger.Info("Module catalog imported",
		"imported", report.Imported,
		"skipped", report.Skipped)
	return report, nil
}

func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range moduleColumns[:5] {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidWorkbook, required)
		}
	}
	return idx, nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(columns map[string]int, cells []string, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func (s *catalogService) parseRow(columns map[string]int, cells []string) (*models.ModuleVariant, error) {
	row := validator.ModuleImportRow{
		Topic:  cell(columns, cells, "topic"),
		Tier:   cell(columns, cells, "tier"),
		Title:  cell(columns, cells, "title"),
		Active: true,
	}

	var err error
	if row.Min, err = parseFloatCell(cell(columns, cells, "min")); err != nil {
		return nil, fmt.Errorf("min: %w", err)
	}
	if row.Max, err = parseFloatCell(cell(columns, cells, "max")); err != nil {
		return nil, fmt.Errorf("max: %w", err)
	}
	if v := cell(columns, cells, "order"); v != "" {
		if row.Order, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("order: %q is not a whole number", v)
		}
	}
	if row.Checkpoint, err = parseBoolCell(cell(columns, cells, "checkpoint"), false); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	if row.Active, err = parseBoolCell(cell(columns, cells, "active"), true); err != nil {
		return nil, fmt.Errorf("active: %w", err)
	}

	if err := s.validator.Validate(&row); err != nil {
		return nil, err
	}

	topicKey, known := s.topics.Resolve(row.Topic)
	if !known {
		return nil, fmt.Errorf("unknown topic %q", row.Topic)
	}
	tier, ok := s.classifier.NormalizeKey(row.Tier)
	if !ok {
		return nil, fmt.Errorf("unknown tier %q", row.Tier)
	}

	title := s.topics.Title(topicKey)
	if title == "" {
		title = row.Topic
	}
	return &models.ModuleVariant{
		TopicTitle:   title,
		Tier:         tier,
		ScoreMin:     row.Min,
		ScoreMax:     row.Max,
		IsActive:     row.Active,
		IsCheckpoint: row.Checkpoint,
		Title:        row.Title,
		Order:        row.Order,
	}, nil
}

func parseFloatCell(v string) (float64, error) {
	if v == "" {
		return 0, errors.New("is required")
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", v)
	}
	return f, nil
}

func parseBoolCell(v string, def bool) (bool, error) {
	switch strings.ToLower(v) {
	case "":
		return def, nil
	case "1", "true", "yes", "y", "x":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a yes/no value", v)
}

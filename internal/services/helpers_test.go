package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/events"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/learning-path-service/internal/scoring"
	"github.com/SAP-F-2025/learning-path-service/internal/testutil"
	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type stubUsers struct{}

func (stubUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id, Username: id}, nil
}

func (stubUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return &models.User{ID: username, Username: username}, nil
}

type testEnv struct {
	db        *gorm.DB
	repo      repositories.Repository
	publisher *events.MockEventPublisher

	tiers       TierService
	assignments *assignmentService
	sessions    *examSessionService
	catalog     CatalogService
	exams       ExamService
}

func newTestEnv(t *testing.T, opts ...scoring.SelectorOption) *testEnv {
	t.Helper()

	db := testutil.DB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{
		DB:             db,
		RedisClient:    client,
		UserRepository: stubUsers{},
	})

	logger := testutil.Logger(t)
	v := validator.New()
	publisher := events.NewMockEventPublisher(logger)

	tiers := NewTierService(repo, db, logger, v)
	classifier := tiers.Classifier()
	selector := scoring.NewModuleSelector(classifier, logger, opts...)

	assignments := NewAssignmentService(repo, db, logger, v, classifier, selector, publisher).(*assignmentService)
	assignments.now = func() time.Time { return fixedNow }

	sessions := NewExamSessionService(repo, db, logger, v, assignments, publisher).(*examSessionService)
	sessions.now = func() time.Time { return fixedNow }

	return &testEnv{
		db:          db,
		repo:        repo,
		publisher:   publisher,
		tiers:       tiers,
		assignments: assignments,
		sessions:    sessions,
		catalog:     NewCatalogService(repo, db, logger, v, classifier, scoring.NewTopicRegistry()),
		exams:       NewExamService(repo, db, logger),
	}
}

func loadProgress(t *testing.T, db *gorm.DB, username string) *models.UserProgress {
	t.Helper()
	var p models.UserProgress
	if err := db.Where("username = ?", username).First(&p).Error; err != nil {
		t.Fatalf("load progress of %s: %v", username, err)
	}
	return &p
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func equalIDs(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

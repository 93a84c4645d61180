package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/events"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/scoring"
	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Overall percentage at which every active module becomes accessible
	AdvancedThreshold int
	// Zero disables the background tier refresh
	TierRefreshInterval time.Duration
	// Nil keeps scoring.PreferSpecific
	SelectorPolicy scoring.SelectorPolicy
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	config    ServiceManagerConfig

	// Service instances
	assignmentService  AssignmentService
	examSessionService ExamSessionService
	examService        ExamService
	tierService        TierService
	catalogService     CatalogService

	// Lifecycle management
	stopRefresh context.CancelFunc
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		config:    config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices(ctx context.Context) error {
	sm.tierService = NewTierService(sm.repo, sm.db, sm.logger, sm.validator)
	if _, err := sm.tierService.Refresh(ctx); err != nil {
		// The classifier keeps its default table
		sm.logger.Warn("Initial tier refresh failed", "error", err)
	}
	sm.logger.Info("Tier service initialized", "ranges", len(sm.tierService.Ranges()))

	classifier := sm.tierService.Classifier()
	selector := scoring.NewModuleSelector(classifier, sm.logger,
		scoring.WithAdvancedThreshold(sm.config.AdvancedThreshold),
		scoring.WithPolicy(sm.config.SelectorPolicy),
	)

	sm.catalogService = NewCatalogService(sm.repo, sm.db, sm.logger, sm.validator, classifier, scoring.NewTopicRegistry())
	if err := sm.catalogService.RefreshTopics(ctx); err != nil {
		sm.logger.Warn("Initial topic registry load failed", "error", err)
	}
	sm.logger.Info("Catalog service initialized")

	sm.assignmentService = NewAssignmentService(sm.repo, sm.db, sm.logger, sm.validator, classifier, selector, sm.publisher)
	sm.logger.Info("Assignment service initialized")

	sm.examSessionService = NewExamSessionService(sm.repo, sm.db, sm.logger, sm.validator, sm.assignmentService, sm.publisher)
	sm.logger.Info("Exam session service initialized")

	sm.examService = NewExamService(sm.repo, sm.db, sm.logger)
	sm.logger.Info("Exam service initialized")

	if sm.config.TierRefreshInterval > 0 {
		refreshCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		sm.stopRefresh = cancel
		sm.tierService.StartAutoRefresh(refreshCtx, sm.config.TierRefreshInterval)
	}

	return nil
}

// Service getters
func (sm *serviceManager) Assignment() AssignmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.assignmentService
}

func (sm *serviceManager) ExamSession() ExamSessionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.examSessionService
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.examService
}

func (sm *serviceManager) Tier() TierService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.tierService
}

func (sm *serviceManager) Catalog() CatalogService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.catalogService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.stopRefresh != nil {
		sm.stopRefresh()
	}

	if sm.publisher != nil {
		if err := sm.publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/scoring"
)

// ===== REQUEST/RESPONSE DTOs =====

type StartSessionRequest = models.StartSessionRequest
type SaveProgressRequest = models.SaveProgressRequest
type CompleteSessionRequest = models.CompleteSessionRequest

// RecomputeOutcome is what one assignment pass produced.
type RecomputeOutcome = models.AssignmentSummary

// BatchReport summarizes RecomputeAll.
type BatchReport struct {
	Users    int           `json:"users"`
	Changed  int           `json:"changed"`
	Failed   int           `json:"failed"`
	Failures []string      `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ===== ASSIGNMENT =====

type AssignmentService interface {
	// Recompute derives the user's module assignment from their latest
	// exam result. A user without a result gets their progress unchanged.
	Recompute(ctx context.Context, username string) (*RecomputeOutcome, error)
	RecomputeAll(ctx context.Context) (*BatchReport, error)

	// GetProgress recomputes first, then returns the stored progress
	GetProgress(ctx context.Context, username string) (*models.ProgressResponse, error)
	ListModules(ctx context.Context, username string) ([]models.ModuleView, error)
	DeleteProgress(ctx context.Context, username string) error
}

// ===== EXAM SESSIONS =====

type ExamSessionService interface {
	// Start resumes the active session for the same exam or replaces one for
	// a different exam. Never leaves two active sessions of one exam type.
	Start(ctx context.Context, username string, req *StartSessionRequest) (*models.ExamSession, error)
	// GetActive returns nil without error when the user has no active session
	GetActive(ctx context.Context, username string, examType models.ExamType) (*models.ExamSession, error)
	SaveProgress(ctx context.Context, sessionID, username string, req *SaveProgressRequest) (*models.ExamSession, error)
	Complete(ctx context.Context, sessionID, username string, req *CompleteSessionRequest) (*models.CompletionResult, error)
	Cancel(ctx context.Context, sessionID, username string) error
}

// ===== EXAM CONTENT =====

type ExamService interface {
	GetActiveExam(ctx context.Context, examType models.ExamType) (*models.PublicExam, error)
}

// ===== TIERS =====

type TierService interface {
	Classifier() *scoring.TierClassifier
	Ranges() []models.TierRange
	Refresh(ctx context.Context) ([]models.TierRange, error)
	// Replace stores a new tier table and reloads the classifier
	Replace(ctx context.Context, ranges []models.TierRange) ([]models.TierRange, error)
	// StartAutoRefresh reloads the table every interval until ctx is done
	StartAutoRefresh(ctx context.Context, interval time.Duration)
}

// ===== MODULE CATALOG =====

type CatalogService interface {
	// Import reads a workbook with a "modules" sheet and upserts the valid rows
	Import(ctx context.Context, r io.Reader) (*models.ImportReport, error)
	RefreshTopics(ctx context.Context) error
	Topics() []string
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Assignment() AssignmentService
	ExamSession() ExamSessionService
	Exam() ExamService
	Tier() TierService
	Catalog() CatalogService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

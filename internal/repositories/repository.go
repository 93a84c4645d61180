package repositories

import "context"

// Repository aggregates every repository the service uses
type Repository interface {
	// Exam content
	Exam() ExamRepository
	Result() ResultRepository

	// Learning path
	Module() ModuleRepository
	Progress() ProgressRepository
	Tier() TierRepository

	// Server-side exam sessions
	Session() SessionRepository

	// User domain (read-only, backed by the identity provider)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}

package pkg

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-path-service/internal/config"
	"github.com/SAP-F-2025/learning-path-service/internal/events"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/learning-path-service/internal/services"
	"github.com/SAP-F-2025/learning-path-service/internal/validator"
)

// App holds the connections and services shared by the server and learnctl.
type App struct {
	DB          *gorm.DB
	RedisClient *redis.Client
	Repos       repositories.RepositoryManager
	Services    services.ServiceManager
	Validator   *validator.Validator
}

type AppOptions struct {
	// Overrides cfg.Learning.TierRefreshInterval; learnctl passes zero
	TierRefreshInterval *time.Duration
}

// NewApp connects to Postgres and Redis, migrates the schema and starts the
// service layer.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts AppOptions) (*App, error) {
	db, err := InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	app := &App{DB: db, Validator: validator.New()}

	if cfg.RedisURL != "" {
		app.RedisClient, err = NewRedisClient(cfg)
		if err != nil {
			// Caching is optional
			logger.Warn("Failed to initialize Redis, continuing without cache", "error", err)
		}
	}

	app.Repos = postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:              db,
		RedisClient:     app.RedisClient,
		SessionCacheTTL: cfg.Learning.SessionCacheTTL,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
	})
	if err := app.Repos.Initialize(); err != nil {
		app.closeConnections()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	publisher, err := NewEventPublisher(cfg, logger)
	if err != nil {
		app.closeConnections()
		return nil, err
	}

	refresh := cfg.Learning.TierRefreshInterval
	if opts.TierRefreshInterval != nil {
		refresh = *opts.TierRefreshInterval
	}
	app.Services = services.NewServiceManager(db, app.Repos.GetRepository(), logger, app.Validator, publisher, services.ServiceManagerConfig{
		AdvancedThreshold:   cfg.Learning.AdvancedThreshold,
		TierRefreshInterval: refresh,
	})
	if err := app.Services.Initialize(ctx); err != nil {
		_ = publisher.Close()
		app.closeConnections()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return app, nil
}

// NewEventPublisher publishes to Kafka when brokers are configured and to an
// in-process channel otherwise.
func NewEventPublisher(cfg *config.Config, logger *slog.Logger) (events.EventPublisher, error) {
	if len(cfg.Events.KafkaBrokers) > 0 {
		return events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.TopicPrefix, logger)
	}
	logger.Info("No Kafka brokers configured, publishing events in-process")
	return events.NewWatermillPublisher(events.NewInMemoryPubSub(logger), cfg.Events.TopicPrefix, logger), nil
}

// Close stops the services, then the repositories (which own the Postgres
// and Redis connections).
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.Services != nil {
		if err := a.Services.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if a.Repos != nil {
		if err := a.Repos.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) closeConnections() {
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}
}

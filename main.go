package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-path-service/internal/config"
	"github.com/SAP-F-2025/learning-path-service/internal/handlers"
	"github.com/SAP-F-2025/learning-path-service/internal/observability"
	"github.com/SAP-F-2025/learning-path-service/internal/utils"
	"github.com/SAP-F-2025/learning-path-service/pkg"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	shutdownTracing := observability.InitOTel(context.Background(), slogLogger, observability.OtelConfig{
		Enabled:     cfg.OTelEnabled,
		Environment: cfg.Environment,
		Version:     version,
	})

	// Database, cache, repositories, events and services
	app, err := pkg.NewApp(context.Background(), cfg, slogLogger, pkg.AppOptions{})
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	handlers.SetupMiddleware(router, logger, handlers.MiddlewareOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Tracing:        cfg.OTelEnabled,
	})

	// Authentication is applied per route group in SetupRoutes
	handlerManager := handlers.NewHandlerManager(app.Services, logger, cfg.Casdoor, app.Repos.GetRepository().User())
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment, "version", version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := app.Close(ctx); err != nil {
		logger.Error("Failed to close application", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("Failed to flush traces", "error", err)
	}

	logger.Info("Server exited")
}

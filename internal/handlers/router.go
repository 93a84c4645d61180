package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-path-service/internal/config"
	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/observability"
	"github.com/SAP-F-2025/learning-path-service/internal/repositories"
	"github.com/SAP-F-2025/learning-path-service/internal/services"
	"github.com/SAP-F-2025/learning-path-service/internal/utils"
)

type HandlerManager struct {
	examSessionHandler *ExamSessionHandler
	examHandler        *ExamHandler
	progressHandler    *ProgressHandler
	tierHandler        *TierHandler
	moduleHandler      *ModuleHandler
	authMiddleware     Authenticator
	serviceManager     services.ServiceManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo, logger)
	return NewHandlerManagerWithAuth(serviceManager, logger, authMiddleware)
}

// NewHandlerManagerWithAuth wires the handlers behind a custom authenticator
func NewHandlerManagerWithAuth(serviceManager services.ServiceManager, logger utils.Logger, auth Authenticator) *HandlerManager {
	return &HandlerManager{
		examSessionHandler: NewExamSessionHandler(serviceManager.ExamSession(), logger),
		examHandler:        NewExamHandler(serviceManager.Exam(), logger),
		progressHandler:    NewProgressHandler(serviceManager.Assignment(), logger),
		tierHandler:        NewTierHandler(serviceManager.Tier(), logger),
		moduleHandler:      NewModuleHandler(serviceManager.Catalog(), logger),
		authMiddleware:     auth,
		serviceManager:     serviceManager,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	staff := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin)

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Exam session routes - the caller's own sessions
		sessions := v1.Group("/exam-sessions")
		{
			sessions.POST("/start", hm.examSessionHandler.StartSession)
			sessions.GET("/active", hm.examSessionHandler.GetActiveSession)
			sessions.PUT("/:id/progress", hm.examSessionHandler.SaveProgress)
			sessions.POST("/:id/complete", hm.examSessionHandler.CompleteSession)
			sessions.DELETE("/:id", hm.examSessionHandler.CancelSession)
		}

		exams := v1.Group("/exams")
		{
			exams.GET("/active", hm.examHandler.GetActiveExam)
		}

		progress := v1.Group("/progress")
		{
			progress.GET("/me", hm.progressHandler.GetMyProgress)
			progress.POST("/recompute", hm.progressHandler.RecomputeMine)

			// Teachers and Admins only
			progress.POST("/:username/recompute", staff, hm.progressHandler.RecomputeUser)
			progress.DELETE("/:username", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.progressHandler.DeleteProgress)
		}

		modules := v1.Group("/modules")
		{
			modules.GET("/me", hm.progressHandler.GetMyModules)

			// Catalog authoring - Teachers and Admins only
			modules.GET("/topics", staff, hm.moduleHandler.ListTopics)
			modules.POST("/import", staff, hm.moduleHandler.ImportModules)
		}

		// Tier routes - Teachers and Admins only
		tiers := v1.Group("/tiers")
		tiers.Use(staff)
		{
			tiers.GET("", hm.tierHandler.ListTiers)
			tiers.PUT("", hm.tierHandler.ReplaceTiers)
			tiers.POST("/refresh", hm.tierHandler.RefreshTiers)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": observability.ServiceName,
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": observability.ServiceName,
		})
	})
}

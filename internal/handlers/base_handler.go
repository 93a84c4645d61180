package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/services"
	"github.com/SAP-F-2025/learning-path-service/internal/utils"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps payloads that carry a message
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// Logger returns the request-scoped logger when ContextLogger ran
func (h *BaseHandler) Logger(c *gin.Context) utils.Logger {
	return utils.GetLogger(c, h.logger)
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, keyvals ...interface{}) {
	keyvals = append(keyvals,
		"method", c.Request.Method,
		"path", c.FullPath(),
		"username", c.GetString("username"))
	h.Logger(c).Info(msg, keyvals...)
}

// currentUsername reads the authenticated username; it writes 401 and
// returns false when the auth middleware did not run.
func (h *BaseHandler) currentUsername(c *gin.Context) (string, bool) {
	username := c.GetString("username")
	if username == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return "", false
	}
	return username, true
}

func examTypeQuery(c *gin.Context) models.ExamType {
	return models.ExamType(c.Query("exam_type"))
}

// handleTypedError writes the response for the typed service errors shared
// by every handler and reports whether it did.
func (h *BaseHandler) handleTypedError(c *gin.Context, err error) bool {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return true
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return true
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return true
	}
	return false
}

func (h *BaseHandler) internalError(c *gin.Context, err error) {
	h.Logger(c).Error("Request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Message: "Internal server error",
	})
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/services"
	"github.com/SAP-F-2025/learning-path-service/internal/utils"
)

type ExamSessionHandler struct {
	BaseHandler
	sessionService services.ExamSessionService
}

func NewExamSessionHandler(sessionService services.ExamSessionService, logger utils.Logger) *ExamSessionHandler {
	return &ExamSessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
	}
}

// StartSession starts or resumes the caller's exam session
// @Summary Start exam session
// @Tags exam-sessions
// @Accept json
// @Produce json
// @Param session body services.StartSessionRequest true "Exam to start"
// @Success 201 {object} models.SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /exam-sessions/start [post]
func (h *ExamSessionHandler) StartSession(c *gin.Context) {
	h.LogRequest(c, "Starting exam session")

	var req services.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	username, ok := h.currentUsername(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), username, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SessionResponse{Session: session})
}

// GetActiveSession returns the caller's active session, or null
// @Summary Get active exam session
// @Tags exam-sessions
// @Produce json
// @Param exam_type query string false "Exam type"
// @Success 200 {object} models.SessionResponse
// @Router /exam-sessions/active [get]
func (h *ExamSessionHandler) GetActiveSession(c *gin.Context) {
	username, ok := h.currentUsername(c)
	if !ok {
		return
	}

	examType := examTypeQuery(c)
	if examType != "" && !examType.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid exam_type"})
		return
	}

	session, err := h.sessionService.GetActive(c.Request.Context(), username, examType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SessionResponse{Session: session})
}

// SaveProgress stores the current question, answers and remaining time
// @Summary Save exam session progress
// @Tags exam-sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param progress body services.SaveProgressRequest true "Progress"
// @Success 200 {object} models.SessionResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /exam-sessions/{id}/progress [put]
func (h *ExamSessionHandler) SaveProgress(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Saving exam session progress", "session_id", sessionID)

	var req services.SaveProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	username, ok := h.currentUsername(c)
	if !ok {
		return
	}

	session, err := h.sessionService.SaveProgress(c.Request.Context(), sessionID, username, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SessionResponse{Session: session})
}

// CompleteSession stores the result and returns the recomputed assignment
// @Summary Complete exam session
// @Tags exam-sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param completion body services.CompleteSessionRequest true "Final answers"
// @Success 200 {object} models.CompletionResult
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /exam-sessions/{id}/complete [post]
func (h *ExamSessionHandler) CompleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Completing exam session", "session_id", sessionID)

	var req services.CompleteSessionRequest
	// An empty body completes with the saved answers
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	username, ok := h.currentUsername(c)
	if !ok {
		return
	}

	completion, err := h.sessionService.Complete(c.Request.Context(), sessionID, username, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, completion)
}

// CancelSession discards the session without storing a result
// @Summary Cancel exam session
// @Tags exam-sessions
// @Param id path string true "Session ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /exam-sessions/{id} [delete]
func (h *ExamSessionHandler) CancelSession(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Cancelling exam session", "session_id", sessionID)

	username, ok := h.currentUsername(c)
	if !ok {
		return
	}

	if err := h.sessionService.Cancel(c.Request.Context(), sessionID, username); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (h *ExamSessionHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleTypedError(c, err) {
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam session not found",
		})
	case errors.Is(err, services.ErrSessionAccessDenied):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied to exam session",
		})
	case errors.Is(err, services.ErrSessionNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Exam session is not active",
		})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrNoActiveExam):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "No active exam",
		})
	case errors.Is(err, services.ErrExamTypeMismatch):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Exam does not match the requested exam type",
		})
	default:
		h.internalError(c, err)
	}
}

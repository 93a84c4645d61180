package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-path-service/internal/services"
	"github.com/SAP-F-2025/learning-path-service/internal/utils"
)

type ProgressHandler struct {
	BaseHandler
	assignmentService services.AssignmentService
}

func NewProgressHandler(assignmentService services.AssignmentService, logger utils.Logger) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:       NewBaseHandler(logger),
		assignmentService: assignmentService,
	}
}

// GetMyProgress returns the caller's scores and module assignment
// @Summary Get my progress
// @Tags progress
// @Produce json
// @Success 200 {object} models.ProgressResponse
// @Router /progress/me [get]
func (h *ProgressHandler) GetMyProgress(c *gin.Context) {
	username, ok := h.currentUsername(c)
	if !ok {
		return
	}

	progress, err := h.assignmentService.GetProgress(c.Request.Context(), username)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

// GetMyModules lists the modules the caller can open
// @Summary Get my modules
// @Tags modules
// @Produce json
// @Success 200 {array} models.ModuleView
// @Router /modules/me [get]
func (h *ProgressHandler) GetMyModules(c *gin.Context) {
	username, ok := h.currentUsername(c)
	if !ok {
		return
	}

	modules, err := h.assignmentService.ListModules(c.Request.Context(), username)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, modules)
}

// RecomputeMine re-derives the caller's assignment from their latest result
// @Summary Recompute my assignment
// @Tags progress
// @Produce json
// @Success 200 {object} models.AssignmentSummary
// @Router /progress/recompute [post]
func (h *ProgressHandler) RecomputeMine(c *gin.Context) {
	h.LogRequest(c, "Recomputing module assignment")

	username, ok := h.currentUsername(c)
	if !ok {
		return
	}

	outcome, err := h.assignmentService.Recompute(c.Request.Context(), username)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// RecomputeUser re-derives another user's assignment
// @Summary Recompute a user's assignment
// @Tags progress
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} models.AssignmentSummary
// @Router /progress/{username}/recompute [post]
func (h *ProgressHandler) RecomputeUser(c *gin.Context) {
	username := c.Param("username")
	h.LogRequest(c, "Recomputing module assignment for user", "target", username)

	outcome, err := h.assignmentService.Recompute(c.Request.Context(), username)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// DeleteProgress removes a user's stored progress
// @Summary Delete a user's progress
// @Tags progress
// @Param username path string true "Username"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /progress/{username} [delete]
func (h *ProgressHandler) DeleteProgress(c *gin.Context) {
	username := c.Param("username")
	h.LogRequest(c, "Deleting user progress", "target", username)

	if err := h.assignmentService.DeleteProgress(c.Request.Context(), username); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Progress deleted"})
}

func (h *ProgressHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleTypedError(c, err) {
		return
	}
	if errors.Is(err, services.ErrProgressNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Progress not found",
		})
		return
	}
	h.internalError(c, err)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-path-service/internal/models"
	"github.com/SAP-F-2025/learning-path-service/internal/services"
	"github.com/SAP-F-2025/learning-path-service/internal/utils"
)

type TierHandler struct {
	BaseHandler
	tierService services.TierService
}

func NewTierHandler(tierService services.TierService, logger utils.Logger) *TierHandler {
	return &TierHandler{
		BaseHandler: NewBaseHandler(logger),
		tierService: tierService,
	}
}

type TierTableResponse struct {
	Ranges []models.TierRange `json:"ranges"`
}

type ReplaceTiersRequest struct {
	Ranges []models.TierRange `json:"ranges"`
}

// ListTiers returns the tier table the classifier currently uses
// @Summary List tier ranges
// @Tags tiers
// @Produce json
// @Success 200 {object} TierTableResponse
// @Router /tiers [get]
func (h *TierHandler) ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, TierTableResponse{Ranges: h.tierService.Ranges()})
}

// RefreshTiers reloads the tier table from the database
// @Summary Refresh tier ranges
// @Tags tiers
// @Produce json
// @Success 200 {object} TierTableResponse
// @Router /tiers/refresh [post]
func (h *TierHandler) RefreshTiers(c *gin.Context) {
	h.LogRequest(c, "Refreshing tier table")

	ranges, err := h.tierService.Refresh(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, TierTableResponse{Ranges: ranges})
}

// ReplaceTiers stores a new tier table
// @Summary Replace tier ranges
// @Tags tiers
// @Accept json
// @Produce json
// @Param tiers body ReplaceTiersRequest true "Tier table"
// @Success 200 {object} TierTableResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /tiers [put]
func (h *TierHandler) ReplaceTiers(c *gin.Context) {
	h.LogRequest(c, "Replacing tier table")

	var req ReplaceTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	ranges, err := h.tierService.Replace(c.Request.Context(), req.Ranges)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, TierTableResponse{Ranges: ranges})
}

func (h *TierHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleTypedError(c, err) {
		return
	}
	h.internalError(c, err)
}

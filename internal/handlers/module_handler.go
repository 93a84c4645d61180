package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-path-service/internal/services"
	"github.com/SAP-F-2025/learning-path-service/internal/utils"
)

// maxWorkbookSize bounds catalog uploads
const maxWorkbookSize = 10 << 20

type ModuleHandler struct {
	BaseHandler
	catalogService services.CatalogService
}

func NewModuleHandler(catalogService services.CatalogService, logger utils.Logger) *ModuleHandler {
	return &ModuleHandler{
		BaseHandler:    NewBaseHandler(logger),
		catalogService: catalogService,
	}
}

// ImportModules upserts the module catalog from an XLSX upload
// @Summary Import module catalog
// @Tags modules
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Workbook with a modules sheet"
// @Success 200 {object} models.ImportReport
// @Failure 400 {object} ErrorResponse
// @Router /modules/import [post]
func (h *ModuleHandler) ImportModules(c *gin.Context) {
	h.LogRequest(c, "Importing module catalog")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWorkbookSize)
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Workbook file is required",
			Details: err.Error(),
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to read workbook",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	report, err := h.catalogService.Import(c.Request.Context(), file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Logger(c).Info("Module catalog import finished",
		"file", header.Filename,
		"imported", report.Imported,
		"skipped", report.Skipped)
	c.JSON(http.StatusOK, report)
}

// ListTopics returns the topics module rows may reference
// @Summary List known topics
// @Tags modules
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /modules/topics [get]
func (h *ModuleHandler) ListTopics(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if err := h.catalogService.RefreshTopics(c.Request.Context()); err != nil {
			h.handleServiceError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"topics": h.catalogService.Topics()})
}

func (h *ModuleHandler) handleServiceError(c *gin.Context, err error) {
	if h.handleTypedError(c, err) {
		return
	}
	if errors.Is(err, services.ErrInvalidWorkbook) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid workbook",
			Details: err.Error(),
		})
		return
	}
	h.internalError(c, err)
}

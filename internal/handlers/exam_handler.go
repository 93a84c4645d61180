package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/learning-path-service/internal/services"
	"github.com/SAP-F-2025/learning-path-service/internal/utils"
)

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
}

func NewExamHandler(examService services.ExamService, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
	}
}

// GetActiveExam returns the active exam without correct answers
// @Summary Get active exam
// @Tags exams
// @Produce json
// @Param exam_type query string false "Exam type"
// @Success 200 {object} models.PublicExam
// @Failure 404 {object} ErrorResponse
// @Router /exams/active [get]
func (h *ExamHandler) GetActiveExam(c *gin.Context) {
	examType := examTypeQuery(c)
	if examType != "" && !examType.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid exam_type"})
		return
	}

	exam, err := h.examService.GetActiveExam(c.Request.Context(), examType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

func (h *ExamHandler) handleServiceError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrNoActiveExam) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "No active exam",
		})
		return
	}
	h.internalError(c, err)
}

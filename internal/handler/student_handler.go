package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/almufid-api/internal/middleware"
	"github.com/noah-isme/almufid-api/internal/service"
	"github.com/noah-isme/almufid-api/pkg/response"
)

// StudentHandler exposes the approved-santri roster for assessment entry.
type StudentHandler struct {
	assessments *service.AssessmentService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(assessments *service.AssessmentService) *StudentHandler {
	return &StudentHandler{assessments: assessments}
}

// List godoc
// @Summary List assessable students
// @Description Roster of approved santri ordered by name
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /ustadz/students [get]
func (h *StudentHandler) List(c *gin.Context) {
	students, err := h.assessments.ListStudents(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, students, nil)
}

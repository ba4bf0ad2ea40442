package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/almufid-api/internal/middleware"
	"github.com/noah-isme/almufid-api/internal/models"
	"github.com/noah-isme/almufid-api/internal/service"
	appErrors "github.com/noah-isme/almufid-api/pkg/errors"
	"github.com/noah-isme/almufid-api/pkg/response"
)

// AssessmentHandler exposes assessment recording and retrieval endpoints
// for both ustadz and santri route groups.
type AssessmentHandler struct {
	assessments *service.AssessmentService
	metrics     *service.MetricsService
}

// NewAssessmentHandler creates a new handler.
func NewAssessmentHandler(assessments *service.AssessmentService, metrics *service.MetricsService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments, metrics: metrics}
}

func parseAssessmentFilter(c *gin.Context) models.AssessmentFilter {
	filter := models.AssessmentFilter{Unit: c.Query("unit")}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.FromDate = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.ToDate = &t
		}
	}
	if limit := c.Query("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	return filter
}

// Create godoc
// @Summary Record an assessment
// @Description Validate marks, derive scores server-side and persist the record
// @Tags Assessments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /ustadz/assessments [post]
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req models.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assessment payload"))
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	assessment, err := h.assessments.Create(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveAssessmentRecorded(assessment.FinalScore)

	response.Created(c, assessment)
}

// List godoc
// @Summary List authored assessments
// @Description List assessments authored by the current ustadz
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param unit query string false "Filter by surah or jilid"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /ustadz/assessments [get]
func (h *AssessmentHandler) List(c *gin.Context) {
	assessments, err := h.assessments.List(c.Request.Context(), middleware.Actor(c), parseAssessmentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, assessments, nil)
}

// Get godoc
// @Summary Assessment detail
// @Description Load one assessment with its five category breakdowns
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ustadz/assessments/{id} [get]
func (h *AssessmentHandler) Get(c *gin.Context) {
	assessment, err := h.assessments.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, assessment, nil)
}

// Delete godoc
// @Summary Delete assessment
// @Description Remove an authored assessment and its category records
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment id"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ustadz/assessments/{id} [delete]
func (h *AssessmentHandler) Delete(c *gin.Context) {
	if err := h.assessments.Delete(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Export godoc
// @Summary Export assessments
// @Description Download the actor-scoped assessment list as CSV or PDF
// @Tags Assessments
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /ustadz/assessments/export [get]
func (h *AssessmentHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	file, err := h.assessments.Export(c.Request.Context(), middleware.Actor(c), format, parseAssessmentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Download(c, file.Name, file.ContentType, file.Content)
}

// UstadzStats godoc
// @Summary Ustadz dashboard counters
// @Description Totals and recent activity for the current ustadz
// @Tags Assessments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /ustadz/stats [get]
func (h *AssessmentHandler) UstadzStats(c *gin.Context) {
	stats, err := h.assessments.UstadzStats(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// OwnList godoc
// @Summary Own assessments
// @Description List the current santri's assessments
// @Tags Santri
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /santri/assessments [get]
func (h *AssessmentHandler) OwnList(c *gin.Context) {
	assessments, err := h.assessments.List(c.Request.Context(), middleware.Actor(c), parseAssessmentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, assessments, nil)
}

// OwnGet godoc
// @Summary Own assessment detail
// @Description Load one of the current santri's assessments with breakdowns
// @Tags Santri
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /santri/assessments/{id} [get]
func (h *AssessmentHandler) OwnGet(c *gin.Context) {
	assessment, err := h.assessments.Get(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, assessment, nil)
}

// SantriStats godoc
// @Summary Santri progress counters
// @Description Totals, average score and recent results for the current santri
// @Tags Santri
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /santri/stats [get]
func (h *AssessmentHandler) SantriStats(c *gin.Context) {
	stats, err := h.assessments.SantriStats(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// ReportCard godoc
// @Summary Download progress report
// @Description Render the current santri's results as a PDF or CSV
// @Tags Santri
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "pdf or csv (default pdf)"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /santri/report [get]
func (h *AssessmentHandler) ReportCard(c *gin.Context) {
	file, err := h.assessments.ReportCard(c.Request.Context(), middleware.Actor(c), c.DefaultQuery("format", "pdf"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Download(c, file.Name, file.ContentType, file.Content)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/almufid-api/internal/middleware"
	"github.com/noah-isme/almufid-api/internal/models"
	"github.com/noah-isme/almufid-api/internal/service"
	"github.com/noah-isme/almufid-api/pkg/response"
)

// AccountHandler exposes the admin account management endpoints.
type AccountHandler struct {
	accounts *service.AccountService
	metrics  *service.MetricsService
}

// NewAccountHandler creates a new handler.
func NewAccountHandler(accounts *service.AccountService, metrics *service.MetricsService) *AccountHandler {
	return &AccountHandler{accounts: accounts, metrics: metrics}
}

// List godoc
// @Summary List accounts
// @Description List accounts with role, status and search filters
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "Filter by role"
// @Param status query string false "Filter by approval status"
// @Param search query string false "Search email or name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users [get]
func (h *AccountHandler) List(c *gin.Context) {
	filter := models.UserFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}
	if status := c.Query("status"); status != "" {
		s := models.ApprovalStatus(status)
		filter.Status = &s
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	users, pagination, err := h.accounts.ListUsers(c.Request.Context(), middleware.Actor(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, pagination)
}

// Approve godoc
// @Summary Approve account
// @Description Approve a pending registration; repeated decisions are no-ops
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/approve [post]
func (h *AccountHandler) Approve(c *gin.Context) {
	user, err := h.accounts.Approve(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveAccountReview(string(models.ApprovalApproved))

	response.JSON(c, http.StatusOK, user, nil)
}

// Reject godoc
// @Summary Reject account
// @Description Reject a pending registration; repeated decisions are no-ops
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/reject [post]
func (h *AccountHandler) Reject(c *gin.Context) {
	user, err := h.accounts.Reject(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObserveAccountReview(string(models.ApprovalRejected))

	response.JSON(c, http.StatusOK, user, nil)
}

// Delete godoc
// @Summary Delete account
// @Description Permanently remove an account and everything it owns
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User id"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [delete]
func (h *AccountHandler) Delete(c *gin.Context) {
	if err := h.accounts.DeleteUser(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Stats godoc
// @Summary Admin dashboard counters
// @Description Aggregate account and assessment counters
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/stats [get]
func (h *AccountHandler) Stats(c *gin.Context) {
	stats, err := h.accounts.AdminStats(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

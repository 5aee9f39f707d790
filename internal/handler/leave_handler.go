package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imjasonkam/leave-sub000/internal/models"
	"github.com/imjasonkam/leave-sub000/internal/service"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
	"github.com/imjasonkam/leave-sub000/pkg/response"
)

type leaveService interface {
	Submit(ctx context.Context, req service.SubmitLeaveRequest, claims *models.JWTClaims, meta models.LoginRequest) (*models.LeaveApplication, error)
	List(ctx context.Context, filter models.ApplicationFilter, claims *models.JWTClaims) ([]models.LeaveApplication, *models.Pagination, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.LeaveApplication, error)
	Decide(ctx context.Context, id string, req service.DecisionRequest, claims *models.JWTClaims, meta models.LoginRequest) (*models.LeaveApplication, error)
	Reverse(ctx context.Context, id string, req service.ReverseRequest, claims *models.JWTClaims, meta models.LoginRequest) (*models.LeaveApplication, error)
}

// LeaveHandler handles leave application endpoints.
type LeaveHandler struct {
	service leaveService
}

// NewLeaveHandler creates a new leave handler.
func NewLeaveHandler(svc leaveService) *LeaveHandler {
	return &LeaveHandler{service: svc}
}

// Submit godoc
// @Summary Submit leave application
// @Description File a leave application for the current user or, for ADMIN/HR, on behalf of another employee
// @Tags Leave
// @Accept json
// @Produce json
// @Param payload body service.SubmitLeaveRequest true "Leave payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /leave-applications [post]
func (h *LeaveHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	app, err := h.service.Submit(c.Request.Context(), req, claims, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, app)
}

// List godoc
// @Summary List leave applications
// @Description List leave applications; employees only see their own
// @Tags Leave
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param applicant_id query string false "Applicant filter"
// @Param leave_type_id query string false "Leave type filter"
// @Param status query string false "Status filter"
// @Param from query string false "Overlap window start (YYYY-MM-DD)"
// @Param to query string false "Overlap window end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /leave-applications [get]
func (h *LeaveHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.ApplicationFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.ApplicantID = c.Query("applicant_id")
	filter.LeaveTypeID = c.Query("leave_type_id")
	if status := c.Query("status"); status != "" {
		s := models.ApplicationStatus(status)
		filter.Status = &s
	}
	if from := c.Query("from"); from != "" {
		if ts, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = &ts
		}
	}
	if to := c.Query("to"); to != "" {
		if ts, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = &ts
		}
	}

	apps, pagination, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, apps, pagination)
}

// Get godoc
// @Summary Get leave application
// @Description Get a leave application; access is limited to the applicant, chain participants and ADMIN/HR
// @Tags Leave
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave-applications/{id} [get]
func (h *LeaveHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	app, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, app, nil)
}

// Decide godoc
// @Summary Decide on a leave application
// @Description Approve or reject the current stage of a pending application
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave-applications/{id}/decision [post]
func (h *LeaveHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	app, err := h.service.Decide(c.Request.Context(), c.Param("id"), req, claims, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, app, nil)
}

// Reverse godoc
// @Summary Reverse an approved leave application
// @Description Create a compensating reversal that credits the deducted days back
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.ReverseRequest true "Reverse payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave-applications/{id}/reverse [post]
func (h *LeaveHandler) Reverse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	reversal, err := h.service.Reverse(c.Request.Context(), c.Param("id"), req, claims, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, reversal)
}

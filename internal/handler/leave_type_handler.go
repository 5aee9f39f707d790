package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imjasonkam/leave-sub000/internal/middleware"
	"github.com/imjasonkam/leave-sub000/internal/service"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
	"github.com/imjasonkam/leave-sub000/pkg/response"
)

// LeaveTypeHandler handles leave type catalogue endpoints.
type LeaveTypeHandler struct {
	service *service.LeaveTypeService
}

// NewLeaveTypeHandler creates a new leave type handler.
func NewLeaveTypeHandler(svc *service.LeaveTypeService) *LeaveTypeHandler {
	return &LeaveTypeHandler{service: svc}
}

// List godoc
// @Summary List leave types
// @Description List leave types, active only by default
// @Tags LeaveTypes
// @Produce json
// @Param include_inactive query bool false "Include inactive types"
// @Success 200 {object} response.Envelope
// @Router /leave-types [get]
func (h *LeaveTypeHandler) List(c *gin.Context) {
	activeOnly := true
	if raw := c.Query("include_inactive"); raw != "" {
		if val, err := strconv.ParseBool(raw); err == nil && val {
			activeOnly = false
		}
	}

	types, cacheHit, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, types, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get leave type
// @Description Get leave type detail
// @Tags LeaveTypes
// @Produce json
// @Param id path string true "Leave type ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave-types/{id} [get]
func (h *LeaveTypeHandler) Get(c *gin.Context) {
	lt, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lt, nil)
}

// Create godoc
// @Summary Create leave type
// @Description Create a new leave type
// @Tags LeaveTypes
// @Accept json
// @Produce json
// @Param payload body service.CreateLeaveTypeRequest true "Create leave type payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave-types [post]
func (h *LeaveTypeHandler) Create(c *gin.Context) {
	var req service.CreateLeaveTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	lt, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, lt)
}

// Update godoc
// @Summary Update leave type
// @Description Update a leave type
// @Tags LeaveTypes
// @Accept json
// @Produce json
// @Param id path string true "Leave type ID"
// @Param payload body service.UpdateLeaveTypeRequest true "Update leave type payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave-types/{id} [put]
func (h *LeaveTypeHandler) Update(c *gin.Context) {
	var req service.UpdateLeaveTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	lt, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lt, nil)
}

// Delete godoc
// @Summary Delete leave type
// @Description Deactivate a leave type
// @Tags LeaveTypes
// @Produce json
// @Param id path string true "Leave type ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave-types/{id} [delete]
func (h *LeaveTypeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

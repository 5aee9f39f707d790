package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imjasonkam/leave-sub000/internal/models"
	"github.com/imjasonkam/leave-sub000/internal/service"
	"github.com/imjasonkam/leave-sub000/pkg/response"
)

// AlertHandler handles payroll alert endpoints.
type AlertHandler struct {
	service *service.AlertService
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(svc *service.AlertService) *AlertHandler {
	return &AlertHandler{service: svc}
}

// List godoc
// @Summary List payroll alerts
// @Description List payroll alerts with pagination and filtering
// @Tags PayrollAlerts
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param user_id query string false "User filter"
// @Param period query string false "Pay period filter (YYYY-MM)"
// @Param acknowledged query bool false "Acknowledged filter"
// @Success 200 {object} response.Envelope
// @Router /payroll-alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	var filter models.PayrollAlertFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.UserID = c.Query("user_id")
	filter.Period = c.Query("period")
	if ack := c.Query("acknowledged"); ack != "" {
		if val, err := strconv.ParseBool(ack); err == nil {
			filter.Acknowledged = &val
		}
	}

	alerts, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, alerts, pagination)
}

// Acknowledge godoc
// @Summary Acknowledge payroll alert
// @Description Mark a payroll alert as handled
// @Tags PayrollAlerts
// @Produce json
// @Param id path string true "Alert ID"
// @Success 204 {object} response.Envelope
// @Router /payroll-alerts/{id}/ack [post]
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	if err := h.service.Acknowledge(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

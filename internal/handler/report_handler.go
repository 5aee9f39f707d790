package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/imjasonkam/leave-sub000/internal/service"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
	"github.com/imjasonkam/leave-sub000/pkg/response"
)

// ReportHandler handles report generation and download endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// GenerateLeaveReport godoc
// @Summary Export leave applications
// @Description Render a CSV or PDF export and return a signed download token
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body service.LeaveReportRequest true "Report selection"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/leave [post]
func (h *ReportHandler) GenerateLeaveReport(c *gin.Context) {
	var req service.LeaveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	artifact, err := h.service.GenerateLeaveReport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, artifact)
}

// GenerateBalanceReport godoc
// @Summary Export balances
// @Description Render a CSV or PDF balance export and return a signed download token
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body service.BalanceReportRequest true "Report selection"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/balances [post]
func (h *ReportHandler) GenerateBalanceReport(c *gin.Context) {
	var req service.BalanceReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	artifact, err := h.service.GenerateBalanceReport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, artifact)
}

// Download godoc
// @Summary Download report
// @Description Stream a generated report using its signed token
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, name, err := h.service.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.FileAttachment(file.Name(), filepath.Base(name))
}

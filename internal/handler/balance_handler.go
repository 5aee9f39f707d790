package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imjasonkam/leave-sub000/internal/middleware"
	"github.com/imjasonkam/leave-sub000/internal/models"
	"github.com/imjasonkam/leave-sub000/internal/service"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
	"github.com/imjasonkam/leave-sub000/pkg/response"
)

type balanceService interface {
	Summary(ctx context.Context, userID string, year int) ([]models.BalanceSummary, bool, error)
	Entries(ctx context.Context, userID, leaveTypeID string, year int) ([]models.LedgerEntry, error)
	Grant(ctx context.Context, req service.GrantRequest, actorID string, meta models.LoginRequest) (*models.LedgerEntry, error)
}

// BalanceHandler handles balance and grant endpoints.
type BalanceHandler struct {
	service balanceService
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(svc balanceService) *BalanceHandler {
	return &BalanceHandler{service: svc}
}

func (h *BalanceHandler) yearParam(c *gin.Context) int {
	if raw := c.Query("year"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			return year
		}
	}
	return time.Now().UTC().Year()
}

// Summary godoc
// @Summary User balance summary
// @Description Per-leave-type balances derived from the ledger for one user and year
// @Tags Balances
// @Produce json
// @Param id path string true "User ID"
// @Param year query int false "Year, defaults to current"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/balances [get]
func (h *BalanceHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	targetID := c.Param("id")
	if claims.Role == models.RoleEmployee && targetID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot view another employee's balances"))
		return
	}

	summaries, cacheHit, err := h.service.Summary(c.Request.Context(), targetID, h.yearParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, summaries, nil, middleware.ExtractMeta(c))
}

// Entries godoc
// @Summary Ledger entries
// @Description Raw ledger entries behind one user/leave-type/year balance
// @Tags Balances
// @Produce json
// @Param id path string true "User ID"
// @Param leave_type_id query string true "Leave type ID"
// @Param year query int false "Year, defaults to current"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/balances/entries [get]
func (h *BalanceHandler) Entries(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	targetID := c.Param("id")
	if claims.Role == models.RoleEmployee && targetID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot view another employee's ledger"))
		return
	}

	leaveTypeID := c.Query("leave_type_id")
	if leaveTypeID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "leave_type_id is required"))
		return
	}

	entries, err := h.service.Entries(c.Request.Context(), targetID, leaveTypeID, h.yearParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// Grant godoc
// @Summary Grant leave days
// @Description Append a positive ledger entry crediting days to a user
// @Tags Balances
// @Accept json
// @Produce json
// @Param payload body service.GrantRequest true "Grant payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /balances/grants [post]
func (h *BalanceHandler) Grant(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	entry, err := h.service.Grant(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, entry)
}

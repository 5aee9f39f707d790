package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjasonkam/leave-sub000/internal/middleware"
	"github.com/imjasonkam/leave-sub000/internal/models"
	"github.com/imjasonkam/leave-sub000/internal/service"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
)

type balanceServiceMock struct {
	summaryResp   []models.BalanceSummary
	summaryHit    bool
	summaryErr    error
	entriesResp   []models.LedgerEntry
	entriesErr    error
	grantResp     *models.LedgerEntry
	grantErr      error
	lastUserID    string
	lastYear      int
	summaryCalled bool
	entriesCalled bool
	grantCalled   bool
}

func (m *balanceServiceMock) Summary(ctx context.Context, userID string, year int) ([]models.BalanceSummary, bool, error) {
	m.summaryCalled = true
	m.lastUserID = userID
	m.lastYear = year
	return m.summaryResp, m.summaryHit, m.summaryErr
}

func (m *balanceServiceMock) Entries(ctx context.Context, userID, leaveTypeID string, year int) ([]models.LedgerEntry, error) {
	m.entriesCalled = true
	m.lastUserID = userID
	m.lastYear = year
	return m.entriesResp, m.entriesErr
}

func (m *balanceServiceMock) Grant(ctx context.Context, req service.GrantRequest, actorID string, meta models.LoginRequest) (*models.LedgerEntry, error) {
	m.grantCalled = true
	return m.grantResp, m.grantErr
}

func TestBalanceHandlerSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &balanceServiceMock{
		summaryResp: []models.BalanceSummary{{UserID: "emp-1", LeaveTypeID: "lt-1", Balance: decimal.NewFromInt(10)}},
	}
	handler := NewBalanceHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/users/emp-1/balances?year=2026", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "emp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleEmployee})

	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.summaryCalled)
	assert.Equal(t, "emp-1", mockSvc.lastUserID)
	assert.Equal(t, 2026, mockSvc.lastYear)
}

func TestBalanceHandlerSummaryCacheHitMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &balanceServiceMock{
		summaryResp: []models.BalanceSummary{{UserID: "emp-1"}},
		summaryHit:  true,
	}
	handler := NewBalanceHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/users/emp-1/balances", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "emp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleEmployee})

	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestBalanceHandlerSummaryOtherEmployeeForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &balanceServiceMock{}
	handler := NewBalanceHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/users/emp-2/balances", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "emp-2"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleEmployee})

	handler.Summary(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, mockSvc.summaryCalled)
}

func TestBalanceHandlerSummaryHRViewsAnyUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &balanceServiceMock{}
	handler := NewBalanceHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/users/emp-2/balances", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "emp-2"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR})

	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "emp-2", mockSvc.lastUserID)
}

func TestBalanceHandlerEntriesRequiresLeaveType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &balanceServiceMock{}
	handler := NewBalanceHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/users/emp-1/balances/entries", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "emp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleEmployee})

	handler.Entries(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.entriesCalled)
}

func TestBalanceHandlerGrant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &balanceServiceMock{
		grantResp: &models.LedgerEntry{ID: "entry-1", Amount: decimal.NewFromFloat(14.5)},
	}
	handler := NewBalanceHandler(mockSvc)

	payload, _ := json.Marshal(service.GrantRequest{
		UserID:      "emp-1",
		LeaveTypeID: "lt-1",
		Year:        2026,
		Amount:      decimal.NewFromFloat(14.5),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/balances/grants", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR})

	handler.Grant(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.grantCalled)
}

func TestBalanceHandlerGrantInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &balanceServiceMock{}
	handler := NewBalanceHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/balances/grants", bytes.NewBufferString(`{"amount":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR})

	handler.Grant(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.grantCalled)
}

func TestBalanceHandlerGrantServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &balanceServiceMock{grantErr: appErrors.Clone(appErrors.ErrValidation, "amount must be a positive multiple of 0.5")}
	handler := NewBalanceHandler(mockSvc)

	payload, _ := json.Marshal(service.GrantRequest{
		UserID:      "emp-1",
		LeaveTypeID: "lt-1",
		Year:        2026,
		Amount:      decimal.NewFromFloat(1.25),
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/balances/grants", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR})

	handler.Grant(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, mockSvc.grantCalled)
}

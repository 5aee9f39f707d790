package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjasonkam/leave-sub000/internal/middleware"
	"github.com/imjasonkam/leave-sub000/internal/models"
	"github.com/imjasonkam/leave-sub000/internal/service"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
)

type leaveServiceMock struct {
	submitResp    *models.LeaveApplication
	submitErr     error
	listResp      []models.LeaveApplication
	listErr       error
	getResp       *models.LeaveApplication
	getErr        error
	decideResp    *models.LeaveApplication
	decideErr     error
	reverseResp   *models.LeaveApplication
	reverseErr    error
	lastFilter    models.ApplicationFilter
	lastDecision  service.DecisionRequest
	lastDecideID  string
	submitCalled  bool
	listCalled    bool
	getCalled     bool
	decideCalled  bool
	reverseCalled bool
}

func (m *leaveServiceMock) Submit(ctx context.Context, req service.SubmitLeaveRequest, claims *models.JWTClaims, meta models.LoginRequest) (*models.LeaveApplication, error) {
	m.submitCalled = true
	return m.submitResp, m.submitErr
}

func (m *leaveServiceMock) List(ctx context.Context, filter models.ApplicationFilter, claims *models.JWTClaims) ([]models.LeaveApplication, *models.Pagination, error) {
	m.listCalled = true
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, m.listErr
}

func (m *leaveServiceMock) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.LeaveApplication, error) {
	m.getCalled = true
	return m.getResp, m.getErr
}

func (m *leaveServiceMock) Decide(ctx context.Context, id string, req service.DecisionRequest, claims *models.JWTClaims, meta models.LoginRequest) (*models.LeaveApplication, error) {
	m.decideCalled = true
	m.lastDecideID = id
	m.lastDecision = req
	return m.decideResp, m.decideErr
}

func (m *leaveServiceMock) Reverse(ctx context.Context, id string, req service.ReverseRequest, claims *models.JWTClaims, meta models.LoginRequest) (*models.LeaveApplication, error) {
	m.reverseCalled = true
	return m.reverseResp, m.reverseErr
}

func TestLeaveHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{
		submitResp: &models.LeaveApplication{ID: "app-1"},
	}
	handler := NewLeaveHandler(mockSvc)

	payload, _ := json.Marshal(service.SubmitLeaveRequest{
		LeaveTypeID: "lt-1",
		StartDate:   "2026-03-02",
		EndDate:     "2026-03-04",
		Reason:      "family matters",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/leave-applications", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleEmployee})

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.submitCalled)
}

func TestLeaveHandlerSubmitInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{}
	handler := NewLeaveHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/leave-applications", bytes.NewBufferString(`{"leave_type_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleEmployee})

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.submitCalled)
}

func TestLeaveHandlerSubmitMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{}
	handler := NewLeaveHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/leave-applications", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Submit(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, mockSvc.submitCalled)
}

func TestLeaveHandlerSubmitInsufficientBalance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{submitErr: appErrors.ErrInsufficientBalance}
	handler := NewLeaveHandler(mockSvc)

	payload, _ := json.Marshal(service.SubmitLeaveRequest{
		LeaveTypeID: "lt-1",
		StartDate:   "2026-03-02",
		EndDate:     "2026-03-04",
		Reason:      "family matters",
	})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/leave-applications", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleEmployee})

	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrInsufficientBalance.Code, envelope.Error.Code)
}

func TestLeaveHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{
		listResp: []models.LeaveApplication{{ID: "app-1"}},
	}
	handler := NewLeaveHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/leave-applications?page=2&page_size=5&status=pending&applicant_id=emp-2&from=2026-03-01&to=2026-03-31", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.listCalled)
	assert.Equal(t, 2, mockSvc.lastFilter.Page)
	assert.Equal(t, 5, mockSvc.lastFilter.PageSize)
	assert.Equal(t, "emp-2", mockSvc.lastFilter.ApplicantID)
	require.NotNil(t, mockSvc.lastFilter.Status)
	assert.Equal(t, models.StatusPending, *mockSvc.lastFilter.Status)
	require.NotNil(t, mockSvc.lastFilter.From)
	assert.Equal(t, "2026-03-01", mockSvc.lastFilter.From.Format("2006-01-02"))
}

func TestLeaveHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{getErr: appErrors.ErrNotFound}
	handler := NewLeaveHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/leave-applications/unknown", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "unknown"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleEmployee})

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, mockSvc.getCalled)
}

func TestLeaveHandlerDecide(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{
		decideResp: &models.LeaveApplication{ID: "app-1", Status: models.StatusApproved},
	}
	handler := NewLeaveHandler(mockSvc)

	payload, _ := json.Marshal(service.DecisionRequest{Action: "approve"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/leave-applications/app-1/decision", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mgr-1", Role: models.RoleEmployee})

	handler.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.decideCalled)
	assert.Equal(t, "app-1", mockSvc.lastDecideID)
	assert.Equal(t, "approve", mockSvc.lastDecision.Action)
}

func TestLeaveHandlerDecideForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{decideErr: appErrors.ErrForbidden}
	handler := NewLeaveHandler(mockSvc)

	payload, _ := json.Marshal(service.DecisionRequest{Action: "approve"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/leave-applications/app-1/decision", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stranger", Role: models.RoleEmployee})

	handler.Decide(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestLeaveHandlerDecideConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{decideErr: appErrors.ErrNotPending}
	handler := NewLeaveHandler(mockSvc)

	payload, _ := json.Marshal(service.DecisionRequest{Action: "reject"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/leave-applications/app-1/decision", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "mgr-1", Role: models.RoleEmployee})

	handler.Decide(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestLeaveHandlerReverse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{
		reverseResp: &models.LeaveApplication{ID: "rev-1"},
	}
	handler := NewLeaveHandler(mockSvc)

	payload, _ := json.Marshal(service.ReverseRequest{Reason: "employee returned early"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/leave-applications/app-1/reverse", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR})

	handler.Reverse(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.reverseCalled)
}

func TestLeaveHandlerReverseAlreadyReversed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &leaveServiceMock{reverseErr: appErrors.ErrAlreadyReversed}
	handler := NewLeaveHandler(mockSvc)

	payload, _ := json.Marshal(service.ReverseRequest{Reason: "duplicate"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/leave-applications/app-1/reverse", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR})

	handler.Reverse(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

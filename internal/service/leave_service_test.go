package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjasonkam/leave-sub000/internal/approval"
	"github.com/imjasonkam/leave-sub000/internal/models"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
)

type mockApplicationRepo struct {
	apps       map[string]*models.LeaveApplication
	reversals  map[string]bool
	finalized  []*models.LedgerEntry
	createErr  error
	decisions  []approval.Stage
	rejections []string
}

func newMockApplicationRepo() *mockApplicationRepo {
	return &mockApplicationRepo{
		apps:      make(map[string]*models.LeaveApplication),
		reversals: make(map[string]bool),
	}
}

func (m *mockApplicationRepo) Create(ctx context.Context, app *models.LeaveApplication) error {
	if m.createErr != nil {
		return m.createErr
	}
	copy := *app
	m.apps[app.ID] = &copy
	return nil
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.LeaveApplication, error) {
	app, ok := m.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *app
	return &copy, nil
}

func (m *mockApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.LeaveApplication, int, error) {
	var out []models.LeaveApplication
	for _, app := range m.apps {
		if filter.ApplicantID != "" && app.ApplicantID != filter.ApplicantID {
			continue
		}
		out = append(out, *app)
	}
	return out, len(out), nil
}

func (m *mockApplicationRepo) RecordSlotDecision(ctx context.Context, id string, stage approval.Stage, decidedAt time.Time, remarks *string) error {
	app, ok := m.apps[id]
	if !ok || app.Status != models.StatusPending {
		return sql.ErrNoRows
	}
	ts := decidedAt
	switch stage {
	case approval.StageChecker:
		if app.CheckerDecidedAt != nil {
			return sql.ErrNoRows
		}
		app.CheckerDecidedAt = &ts
	case approval.StageApprover1:
		if app.Approver1DecidedAt != nil {
			return sql.ErrNoRows
		}
		app.Approver1DecidedAt = &ts
	case approval.StageApprover2:
		if app.Approver2DecidedAt != nil {
			return sql.ErrNoRows
		}
		app.Approver2DecidedAt = &ts
	case approval.StageApprover3:
		if app.Approver3DecidedAt != nil {
			return sql.ErrNoRows
		}
		app.Approver3DecidedAt = &ts
	}
	m.decisions = append(m.decisions, stage)
	return nil
}

func (m *mockApplicationRepo) FinalizeApproval(ctx context.Context, id string, approvedAt time.Time, entry *models.LedgerEntry) error {
	app, ok := m.apps[id]
	if !ok || app.Status != models.StatusPending {
		return sql.ErrNoRows
	}
	app.Status = models.StatusApproved
	m.finalized = append(m.finalized, entry)
	return nil
}

func (m *mockApplicationRepo) Reject(ctx context.Context, id, rejectedBy string, rejectedAt time.Time, reason *string) error {
	app, ok := m.apps[id]
	if !ok || app.Status != models.StatusPending {
		return sql.ErrNoRows
	}
	app.Status = models.StatusRejected
	app.RejectedBy = &rejectedBy
	m.rejections = append(m.rejections, id)
	return nil
}

func (m *mockApplicationRepo) HasReversal(ctx context.Context, originalID string) (bool, error) {
	return m.reversals[originalID], nil
}

func (m *mockApplicationRepo) CreateReversal(ctx context.Context, reversal *models.LeaveApplication, credit *models.LedgerEntry) error {
	copy := *reversal
	m.apps[reversal.ID] = &copy
	m.reversals[*reversal.ReversalOf] = true
	m.finalized = append(m.finalized, credit)
	return nil
}

type mockUserLookup struct {
	users map[string]*models.User
}

func (m *mockUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *user
	return &copy, nil
}

type mockLeaveTypeLookup struct {
	types map[string]*models.LeaveType
}

func (m *mockLeaveTypeLookup) FindByID(ctx context.Context, id string) (*models.LeaveType, error) {
	lt, ok := m.types[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *lt
	return &copy, nil
}

type mockBalanceLookup struct {
	balance decimal.Decimal
}

func (m *mockBalanceLookup) SummarizeOne(ctx context.Context, userID, leaveTypeID string, year int) (*models.BalanceSummary, error) {
	return &models.BalanceSummary{
		UserID:      userID,
		LeaveTypeID: leaveTypeID,
		Year:        year,
		Balance:     m.balance,
	}, nil
}

type mockMembership struct {
	groups map[string][]string
	hr     map[string]bool
}

func (m *mockMembership) MemberGroupIDs(ctx context.Context, userID string) ([]string, error) {
	return m.groups[userID], nil
}

func (m *mockMembership) HasHRAuthority(ctx context.Context, userID string) (bool, error) {
	return m.hr[userID], nil
}

type mockAuditor struct {
	logs []*models.AuditLog
}

func (m *mockAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockPayroll struct {
	notified []*models.LeaveApplication
}

func (m *mockPayroll) NotifyApproved(app *models.LeaveApplication) {
	m.notified = append(m.notified, app)
}

type leaveFixture struct {
	svc     *LeaveService
	apps    *mockApplicationRepo
	users   *mockUserLookup
	types   *mockLeaveTypeLookup
	balance *mockBalanceLookup
	groups  *mockMembership
	payroll *mockPayroll
}

func strPtr(s string) *string { return &s }

func newLeaveFixture() *leaveFixture {
	annual := &models.LeaveType{ID: "lt-annual", Code: "AL", Name: "Annual Leave", Tracked: true, Active: true}
	unpaid := &models.LeaveType{ID: "lt-unpaid", Code: "UL", Name: "Unpaid Leave", Tracked: false, Active: true}

	applicant := &models.User{
		ID:     "emp-1",
		Email:  "emp@example.com",
		Role:   models.RoleEmployee,
		Active: true,

		CheckerRefID:     strPtr("checker-1"),
		CheckerRefKind:   strPtr("user"),
		Approver1RefID:   strPtr("grp-mgmt"),
		Approver1RefKind: strPtr("group"),
	}

	f := &leaveFixture{
		apps:    newMockApplicationRepo(),
		users:   &mockUserLookup{users: map[string]*models.User{"emp-1": applicant}},
		types:   &mockLeaveTypeLookup{types: map[string]*models.LeaveType{"lt-annual": annual, "lt-unpaid": unpaid}},
		balance: &mockBalanceLookup{balance: decimal.NewFromInt(10)},
		groups: &mockMembership{
			groups: map[string][]string{"mgr-1": {"grp-mgmt"}, "hr-1": {"grp-hr"}},
			hr:     map[string]bool{"hr-1": true},
		},
		payroll: &mockPayroll{},
	}
	f.svc = NewLeaveService(f.apps, f.users, f.types, f.balance, f.groups, &mockAuditor{}, nil, nil, f.payroll, nil, nil)
	return f
}

func employeeClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleEmployee}
}

func TestSubmitSnapshotsRouting(t *testing.T) {
	f := newLeaveFixture()

	app, err := f.svc.Submit(context.Background(), SubmitLeaveRequest{
		LeaveTypeID: "lt-annual",
		StartDate:   "2026-03-02",
		EndDate:     "2026-03-04",
		Reason:      "family trip",
	}, employeeClaims("emp-1"), models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, app.Status)
	assert.True(t, app.Days.Equal(decimal.NewFromInt(3)))
	require.NotNil(t, app.CheckerRefID)
	assert.Equal(t, "checker-1", *app.CheckerRefID)
	require.NotNil(t, app.Approver1RefKind)
	assert.Equal(t, "group", *app.Approver1RefKind)
	assert.Nil(t, app.Approver2RefID)
}

func TestSubmitExactBalanceSucceeds(t *testing.T) {
	f := newLeaveFixture()
	f.balance.balance = decimal.NewFromInt(3)

	_, err := f.svc.Submit(context.Background(), SubmitLeaveRequest{
		LeaveTypeID: "lt-annual",
		StartDate:   "2026-03-02",
		EndDate:     "2026-03-04",
		Reason:      "exactly the remainder",
	}, employeeClaims("emp-1"), models.LoginRequest{})
	require.NoError(t, err)
}

func TestSubmitInsufficientBalance(t *testing.T) {
	f := newLeaveFixture()
	f.balance.balance = decimal.New(25, -1)

	_, err := f.svc.Submit(context.Background(), SubmitLeaveRequest{
		LeaveTypeID: "lt-annual",
		StartDate:   "2026-03-02",
		EndDate:     "2026-03-04",
		Reason:      "too long",
	}, employeeClaims("emp-1"), models.LoginRequest{})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInsufficientBalance.Code, appErr.Code)
}

func TestSubmitUntrackedSkipsBalanceCheck(t *testing.T) {
	f := newLeaveFixture()
	f.balance.balance = decimal.Zero

	_, err := f.svc.Submit(context.Background(), SubmitLeaveRequest{
		LeaveTypeID: "lt-unpaid",
		StartDate:   "2026-03-02",
		EndDate:     "2026-03-06",
		Reason:      "unpaid stretch",
	}, employeeClaims("emp-1"), models.LoginRequest{})
	require.NoError(t, err)
}

func TestSubmitHalfDaySessions(t *testing.T) {
	f := newLeaveFixture()

	app, err := f.svc.Submit(context.Background(), SubmitLeaveRequest{
		LeaveTypeID:  "lt-annual",
		StartDate:    "2026-03-02",
		EndDate:      "2026-03-03",
		StartSession: strPtr(models.SessionPM),
		EndSession:   strPtr(models.SessionAM),
		Reason:       "two half days",
	}, employeeClaims("emp-1"), models.LoginRequest{})
	require.NoError(t, err)
	assert.True(t, app.Days.Equal(decimal.NewFromInt(1)), "PM start and AM end drop a half day each")
}

func submitPending(t *testing.T, f *leaveFixture) *models.LeaveApplication {
	t.Helper()
	app, err := f.svc.Submit(context.Background(), SubmitLeaveRequest{
		LeaveTypeID: "lt-annual",
		StartDate:   "2026-03-02",
		EndDate:     "2026-03-04",
		Reason:      "pending fixture",
	}, employeeClaims("emp-1"), models.LoginRequest{})
	require.NoError(t, err)
	return app
}

func TestDecideApproveProgressesChain(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)

	updated, err := f.svc.Decide(context.Background(), app.ID, DecisionRequest{Action: "approve"}, employeeClaims("checker-1"), models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, updated.Status)
	assert.NotNil(t, updated.CheckerDecidedAt)
	assert.Nil(t, updated.Approver1DecidedAt)
	assert.Empty(t, f.payroll.notified)
}

func TestDecideFinalApprovalDeductsAndNotifies(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)

	_, err := f.svc.Decide(context.Background(), app.ID, DecisionRequest{Action: "approve"}, employeeClaims("checker-1"), models.LoginRequest{})
	require.NoError(t, err)

	updated, err := f.svc.Decide(context.Background(), app.ID, DecisionRequest{Action: "approve"}, employeeClaims("mgr-1"), models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, updated.Status)
	require.Len(t, f.apps.finalized, 1)
	entry := f.apps.finalized[0]
	require.NotNil(t, entry)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(-3)), "deduction is the negated day count")
	assert.Equal(t, "mgr-1", entry.RecordedBy, "recorded by the approver who finalized")
	assert.Len(t, f.payroll.notified, 1)
}

func TestDecideApproveOutOfTurnForbidden(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)

	// mgr-1 holds approver_1, but the checker stage is still unresolved.
	_, err := f.svc.Decide(context.Background(), app.ID, DecisionRequest{Action: "approve"}, employeeClaims("mgr-1"), models.LoginRequest{})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDecideHRAuthorityRejectsAnyStage(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)

	updated, err := f.svc.Decide(context.Background(), app.ID, DecisionRequest{Action: "reject"}, employeeClaims("hr-1"), models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)
}

func TestDecideHRAuthorityCannotApprove(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)

	_, err := f.svc.Decide(context.Background(), app.ID, DecisionRequest{Action: "approve"}, employeeClaims("hr-1"), models.LoginRequest{})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDecideOnDecidedApplicationConflicts(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)

	_, err := f.svc.Decide(context.Background(), app.ID, DecisionRequest{Action: "reject"}, employeeClaims("checker-1"), models.LoginRequest{})
	require.NoError(t, err)

	_, err = f.svc.Decide(context.Background(), app.ID, DecisionRequest{Action: "approve"}, employeeClaims("checker-1"), models.LoginRequest{})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotPending.Code, appErr.Code)
}

func approveAll(t *testing.T, f *leaveFixture, appID string) {
	t.Helper()
	_, err := f.svc.Decide(context.Background(), appID, DecisionRequest{Action: "approve"}, employeeClaims("checker-1"), models.LoginRequest{})
	require.NoError(t, err)
	_, err = f.svc.Decide(context.Background(), appID, DecisionRequest{Action: "approve"}, employeeClaims("mgr-1"), models.LoginRequest{})
	require.NoError(t, err)
}

func TestReverseCreditsBalance(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)
	approveAll(t, f, app.ID)

	claims := &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR}
	reversal, err := f.svc.Reverse(context.Background(), app.ID, ReverseRequest{Reason: "leave not taken"}, claims, models.LoginRequest{})
	require.NoError(t, err)

	require.NotNil(t, reversal.ReversalOf)
	assert.Equal(t, app.ID, *reversal.ReversalOf)
	assert.Equal(t, models.StatusApproved, reversal.Status)

	credit := f.apps.finalized[len(f.apps.finalized)-1]
	require.NotNil(t, credit)
	assert.True(t, credit.Amount.Equal(decimal.NewFromInt(3)), "credit mirrors the original day count")
}

func TestReverseTwiceConflicts(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)
	approveAll(t, f, app.ID)

	claims := &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR}
	_, err := f.svc.Reverse(context.Background(), app.ID, ReverseRequest{Reason: "first"}, claims, models.LoginRequest{})
	require.NoError(t, err)

	_, err = f.svc.Reverse(context.Background(), app.ID, ReverseRequest{Reason: "second"}, claims, models.LoginRequest{})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAlreadyReversed.Code, appErr.Code)
}

func TestReversePendingRejected(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)

	claims := &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR}
	_, err := f.svc.Reverse(context.Background(), app.ID, ReverseRequest{Reason: "too soon"}, claims, models.LoginRequest{})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotApproved.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestSubmitZeroSlotChainAutoApproves(t *testing.T) {
	f := newLeaveFixture()
	f.users.users["emp-2"] = &models.User{ID: "emp-2", Email: "solo@example.com", Role: models.RoleEmployee, Active: true}

	app, err := f.svc.Submit(context.Background(), SubmitLeaveRequest{
		LeaveTypeID: "lt-annual",
		StartDate:   "2026-03-02",
		EndDate:     "2026-03-04",
		Reason:      "no approvers configured",
	}, employeeClaims("emp-2"), models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, app.Status)
	stored, err := f.apps.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)

	require.Len(t, f.apps.finalized, 1)
	entry := f.apps.finalized[0]
	require.NotNil(t, entry)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(-3)), "deduction lands at submission")
	assert.Equal(t, "emp-2", entry.RecordedBy, "recorded by the submitter")
	assert.Len(t, f.payroll.notified, 1)
}

func TestGetAnnotatesCurrentStage(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)

	got, err := f.svc.Get(context.Background(), app.ID, employeeClaims("emp-1"))
	require.NoError(t, err)
	assert.Equal(t, string(approval.StageChecker), got.CurrentStage)

	_, err = f.svc.Decide(context.Background(), app.ID, DecisionRequest{Action: "approve"}, employeeClaims("checker-1"), models.LoginRequest{})
	require.NoError(t, err)

	got, err = f.svc.Get(context.Background(), app.ID, employeeClaims("emp-1"))
	require.NoError(t, err)
	assert.Equal(t, string(approval.StageApprover1), got.CurrentStage)
}

func TestGetAccessControl(t *testing.T) {
	f := newLeaveFixture()
	app := submitPending(t, f)

	// Applicant can read their own application.
	_, err := f.svc.Get(context.Background(), app.ID, employeeClaims("emp-1"))
	require.NoError(t, err)

	// Chain participant through group membership.
	_, err = f.svc.Get(context.Background(), app.ID, employeeClaims("mgr-1"))
	require.NoError(t, err)

	// Unrelated employee is denied.
	_, err = f.svc.Get(context.Background(), app.ID, employeeClaims("stranger"))
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestListScopesEmployeesToOwn(t *testing.T) {
	f := newLeaveFixture()
	submitPending(t, f)

	apps, _, err := f.svc.List(context.Background(), models.ApplicationFilter{ApplicantID: "someone-else"}, employeeClaims("emp-1"))
	require.NoError(t, err)
	for _, app := range apps {
		assert.Equal(t, "emp-1", app.ApplicantID)
	}
	assert.Len(t, apps, 1)
}

func TestComputeDays(t *testing.T) {
	mon := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	wed := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		start, end   time.Time
		startSession *string
		endSession   *string
		want         string
	}{
		{"full range", mon, wed, nil, nil, "3"},
		{"single day", mon, mon, nil, nil, "1"},
		{"half day morning", mon, mon, nil, strPtr(models.SessionAM), "0.5"},
		{"half day afternoon", mon, mon, strPtr(models.SessionPM), nil, "0.5"},
		{"pm start", mon, wed, strPtr(models.SessionPM), nil, "2.5"},
		{"both trimmed", mon, wed, strPtr(models.SessionPM), strPtr(models.SessionAM), "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeDays(tt.start, tt.end, tt.startSession, tt.endSession)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

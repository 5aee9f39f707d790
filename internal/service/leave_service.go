package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imjasonkam/leave-sub000/internal/approval"
	"github.com/imjasonkam/leave-sub000/internal/models"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
)

const dateLayout = "2006-01-02"

type leaveApplicationRepository interface {
	Create(ctx context.Context, app *models.LeaveApplication) error
	FindByID(ctx context.Context, id string) (*models.LeaveApplication, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.LeaveApplication, int, error)
	RecordSlotDecision(ctx context.Context, id string, stage approval.Stage, decidedAt time.Time, remarks *string) error
	FinalizeApproval(ctx context.Context, id string, approvedAt time.Time, entry *models.LedgerEntry) error
	Reject(ctx context.Context, id, rejectedBy string, rejectedAt time.Time, reason *string) error
	HasReversal(ctx context.Context, originalID string) (bool, error)
	CreateReversal(ctx context.Context, reversal *models.LeaveApplication, credit *models.LedgerEntry) error
}

type leaveUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type leaveBalanceLookup interface {
	SummarizeOne(ctx context.Context, userID, leaveTypeID string, year int) (*models.BalanceSummary, error)
}

type membershipLookup interface {
	MemberGroupIDs(ctx context.Context, userID string) ([]string, error)
	HasHRAuthority(ctx context.Context, userID string) (bool, error)
}

// PayrollNotifier receives approved applications for payroll alerting.
type PayrollNotifier interface {
	NotifyApproved(app *models.LeaveApplication)
}

// SubmitLeaveRequest payload for filing a leave application.
type SubmitLeaveRequest struct {
	ApplicantID  string  `json:"applicant_id"`
	LeaveTypeID  string  `json:"leave_type_id" validate:"required"`
	StartDate    string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartSession *string `json:"start_session" validate:"omitempty,oneof=AM PM"`
	EndSession   *string `json:"end_session" validate:"omitempty,oneof=AM PM"`
	Reason       string  `json:"reason" validate:"required"`
}

// DecisionRequest payload for acting on a pending application.
type DecisionRequest struct {
	Action  string  `json:"action" validate:"required,oneof=approve reject"`
	Remarks *string `json:"remarks"`
}

// ReverseRequest payload for reversing an approved application.
type ReverseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// LeaveService owns the leave application lifecycle: submission with a
// routing snapshot, staged approval, rejection, and reversal.
type LeaveService struct {
	apps       leaveApplicationRepository
	users      leaveUserLookup
	leaveTypes balanceLeaveTypeLookup
	balances   leaveBalanceLookup
	groups     membershipLookup
	auditor    auditRecorder
	cache      *CacheService
	metrics    *MetricsService
	payroll    PayrollNotifier
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewLeaveService creates an instance of LeaveService.
func NewLeaveService(
	apps leaveApplicationRepository,
	users leaveUserLookup,
	leaveTypes balanceLeaveTypeLookup,
	balances leaveBalanceLookup,
	groups membershipLookup,
	auditor auditRecorder,
	cache *CacheService,
	metrics *MetricsService,
	payroll PayrollNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *LeaveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LeaveService{
		apps:       apps,
		users:      users,
		leaveTypes: leaveTypes,
		balances:   balances,
		groups:     groups,
		auditor:    auditor,
		cache:      cache,
		metrics:    metrics,
		payroll:    payroll,
		validator:  validate,
		logger:     logger,
	}
}

// Submit files a leave application for the actor, or for another employee
// when an ADMIN or HR user files on their behalf. The applicant's current
// routing is copied onto the application; later routing changes do not
// affect it.
func (s *LeaveService) Submit(ctx context.Context, req SubmitLeaveRequest, claims *models.JWTClaims, meta models.LoginRequest) (*models.LeaveApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave payload")
	}

	applicantID := claims.UserID
	var filedBy *string
	if req.ApplicantID != "" && req.ApplicantID != claims.UserID {
		if claims.Role != models.RoleAdmin && claims.Role != models.RoleHR {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot file leave for another employee")
		}
		applicantID = req.ApplicantID
		actor := claims.UserID
		filedBy = &actor
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	if endDate.Before(startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date precedes start date")
	}

	days := computeDays(startDate, endDate, req.StartSession, req.EndSession)
	if !days.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "leave range resolves to zero days")
	}

	applicant, err := s.users.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	if !applicant.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "applicant account is inactive")
	}

	lt, err := s.leaveTypes.FindByID(ctx, req.LeaveTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}
	if !lt.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "leave type is inactive")
	}

	// Advisory check only: the balance may still change before final
	// approval, where the deduction is applied transactionally. Requesting
	// exactly the remaining balance is allowed.
	if lt.Tracked {
		summary, err := s.balances.SummarizeOne(ctx, applicantID, lt.ID, startDate.Year())
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check balance")
		}
		if days.GreaterThan(summary.Balance) {
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "requested days exceed remaining balance")
		}
	}

	app := &models.LeaveApplication{
		ID:           uuid.NewString(),
		ApplicantID:  applicantID,
		FiledBy:      filedBy,
		LeaveTypeID:  lt.ID,
		StartDate:    startDate,
		EndDate:      endDate,
		StartSession: req.StartSession,
		EndSession:   req.EndSession,
		Days:         days,
		Reason:       req.Reason,
		Status:       models.StatusPending,

		CheckerRefID:     applicant.CheckerRefID,
		CheckerRefKind:   applicant.CheckerRefKind,
		Approver1RefID:   applicant.Approver1RefID,
		Approver1RefKind: applicant.Approver1RefKind,
		Approver2RefID:   applicant.Approver2RefID,
		Approver2RefKind: applicant.Approver2RefKind,
		Approver3RefID:   applicant.Approver3RefID,
		Approver3RefKind: applicant.Approver3RefKind,
	}

	if err := s.apps.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave application")
	}

	// A fully unconfigured chain has nobody to ask: the application is
	// approved on the spot and, for tracked types, the deduction lands
	// immediately.
	if approval.Resolve(approval.FromApplication(app)) == approval.StageCompleted {
		if err := s.finalize(ctx, app, time.Now().UTC(), claims.UserID); err != nil {
			return nil, err
		}
		app.Status = models.StatusApproved
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"leave_type_id": lt.ID, "days": days.String()})
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionLeaveSubmit,
		Resource:   "leave_applications",
		ResourceID: &app.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record submit audit log", zap.Error(err))
	}

	return app, nil
}

// Get loads an application, restricting access to the applicant, users
// referenced by the chain, and ADMIN/HR roles.
func (s *LeaveService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.LeaveApplication, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave application")
	}

	if claims.Role == models.RoleAdmin || claims.Role == models.RoleHR || app.ApplicantID == claims.UserID {
		return annotateStage(app), nil
	}

	actor, err := s.buildActor(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !approval.Involves(approval.FromApplication(app), actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not involved in this application")
	}

	return annotateStage(app), nil
}

// annotateStage fills the derived CurrentStage field from the slot columns.
func annotateStage(app *models.LeaveApplication) *models.LeaveApplication {
	app.CurrentStage = string(approval.Resolve(approval.FromApplication(app)))
	return app
}

// List returns applications matching the filter. Employees only see their
// own applications regardless of the requested filter.
func (s *LeaveService) List(ctx context.Context, filter models.ApplicationFilter, claims *models.JWTClaims) ([]models.LeaveApplication, *models.Pagination, error) {
	if claims.Role == models.RoleEmployee {
		filter.ApplicantID = claims.UserID
	}

	apps, total, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave applications")
	}
	for i := range apps {
		annotateStage(&apps[i])
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return apps, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Decide applies an approve or reject decision to a pending application.
// Approval walks the chain one stage at a time; the stage holder for the
// current unresolved slot is the only one who may approve. Rejection is open
// to the current stage holder and to HR-authority group members at any
// stage. Approving the final configured slot finalizes the application and,
// for tracked leave types, appends the balance deduction in the same
// transaction.
func (s *LeaveService) Decide(ctx context.Context, id string, req DecisionRequest, claims *models.JWTClaims, meta models.LoginRequest) (*models.LeaveApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave application")
	}

	if app.Status != models.StatusPending {
		return nil, appErrors.Clone(appErrors.ErrNotPending, "application is no longer pending")
	}

	actor, err := s.buildActor(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	chain := approval.FromApplication(app)
	stage := approval.Resolve(chain)

	now := time.Now().UTC()

	switch req.Action {
	case "approve":
		if !approval.CanApprove(chain, actor) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not the current stage holder")
		}
		if err := s.approve(ctx, app, chain, stage, now, req.Remarks, claims.UserID); err != nil {
			return nil, err
		}
	case "reject":
		if !approval.CanReject(chain, actor) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to reject this application")
		}
		if err := s.apps.Reject(ctx, app.ID, claims.UserID, now, req.Remarks); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotPending, "application is no longer pending")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject application")
		}
	}

	s.metrics.RecordDecision(req.Action, string(stage))

	newPayload, _ := json.Marshal(map[string]interface{}{"action": req.Action, "stage": string(stage)})
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionLeaveDecision,
		Resource:   "leave_applications",
		ResourceID: &app.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record decision audit log", zap.Error(err))
	}

	updated, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload leave application")
	}
	return annotateStage(updated), nil
}

func (s *LeaveService) approve(ctx context.Context, app *models.LeaveApplication, chain approval.Chain, stage approval.Stage, now time.Time, remarks *string, actorID string) error {
	if err := s.apps.RecordSlotDecision(ctx, app.ID, stage, now, remarks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotPending, "stage already decided")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	if approval.Resolve(chain.WithDecision(stage, now)) != approval.StageCompleted {
		return nil
	}

	return s.finalize(ctx, app, now, actorID)
}

// finalize flips the application to approved and, for tracked types, lands
// the balance deduction in the same transaction. recordedBy is whoever
// triggered the finalization: the last approver, or the submitter when the
// chain had nobody to ask.
func (s *LeaveService) finalize(ctx context.Context, app *models.LeaveApplication, now time.Time, recordedBy string) error {
	var entry *models.LedgerEntry
	lt, err := s.leaveTypes.FindByID(ctx, app.LeaveTypeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}
	if lt.Tracked {
		remark := "deduction for approved leave " + app.ID
		entry = &models.LedgerEntry{
			ID:          uuid.NewString(),
			UserID:      app.ApplicantID,
			LeaveTypeID: app.LeaveTypeID,
			Year:        app.StartDate.Year(),
			Amount:      app.Days.Neg(),
			Remarks:     &remark,
			RecordedBy:  recordedBy,
		}
	}

	if err := s.apps.FinalizeApproval(ctx, app.ID, now, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotPending, "application is no longer pending")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize approval")
	}

	s.cache.InvalidateBalances(ctx, app.ApplicantID)
	if s.payroll != nil {
		s.payroll.NotifyApproved(app)
	}

	return nil
}

// Reverse creates a compensating application for an approved leave that was
// not actually taken. The original row is untouched; the reversal links back
// through ReversalOf and, for tracked types, the offsetting credit lands in
// the same transaction. Each application can be reversed at most once.
func (s *LeaveService) Reverse(ctx context.Context, id string, req ReverseRequest, claims *models.JWTClaims, meta models.LoginRequest) (*models.LeaveApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reverse payload")
	}

	original, err := s.apps.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave application")
	}

	if original.Status != models.StatusApproved {
		return nil, appErrors.Clone(appErrors.ErrNotApproved, "only approved applications can be reversed")
	}
	if original.ReversalOf != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a reversal cannot itself be reversed")
	}

	reversed, err := s.apps.HasReversal(ctx, original.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check reversal state")
	}
	if reversed {
		return nil, appErrors.Clone(appErrors.ErrAlreadyReversed, "application has already been reversed")
	}

	reversal := &models.LeaveApplication{
		ID:           uuid.NewString(),
		ApplicantID:  original.ApplicantID,
		FiledBy:      &claims.UserID,
		LeaveTypeID:  original.LeaveTypeID,
		StartDate:    original.StartDate,
		EndDate:      original.EndDate,
		StartSession: original.StartSession,
		EndSession:   original.EndSession,
		Days:         original.Days,
		Reason:       req.Reason,
		Status:       models.StatusApproved,
		ReversalOf:   &original.ID,
	}

	var credit *models.LedgerEntry
	lt, err := s.leaveTypes.FindByID(ctx, original.LeaveTypeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}
	if lt.Tracked {
		remark := "reversal credit for leave " + original.ID
		credit = &models.LedgerEntry{
			ID:          uuid.NewString(),
			UserID:      original.ApplicantID,
			LeaveTypeID: original.LeaveTypeID,
			Year:        original.StartDate.Year(),
			Amount:      original.Days,
			Remarks:     &remark,
			RecordedBy:  claims.UserID,
		}
	}

	if err := s.apps.CreateReversal(ctx, reversal, credit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reversal")
	}

	s.cache.InvalidateBalances(ctx, original.ApplicantID)

	newPayload, _ := json.Marshal(map[string]interface{}{"reversal_of": original.ID, "days": original.Days.String()})
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionLeaveReverse,
		Resource:   "leave_applications",
		ResourceID: &reversal.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record reverse audit log", zap.Error(err))
	}

	return reversal, nil
}

func (s *LeaveService) buildActor(ctx context.Context, userID string) (approval.Actor, error) {
	groupIDs, err := s.groups.MemberGroupIDs(ctx, userID)
	if err != nil {
		return approval.Actor{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group membership")
	}
	hr, err := s.groups.HasHRAuthority(ctx, userID)
	if err != nil {
		return approval.Actor{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load HR authority")
	}
	return approval.Actor{UserID: userID, GroupIDs: groupIDs, HRAuthority: hr}, nil
}

// computeDays converts a date range with optional half-day sessions into a
// day count in 0.5 increments. A PM start skips the first morning; an AM end
// skips the last afternoon.
func computeDays(start, end time.Time, startSession, endSession *string) decimal.Decimal {
	fullDays := int64(end.Sub(start).Hours()/24) + 1
	days := decimal.NewFromInt(fullDays)
	half := decimal.New(5, -1)
	if startSession != nil && *startSession == models.SessionPM {
		days = days.Sub(half)
	}
	if endSession != nil && *endSession == models.SessionAM {
		days = days.Sub(half)
	}
	return days
}

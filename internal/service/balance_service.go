package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imjasonkam/leave-sub000/internal/models"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
)

type balanceLedgerRepository interface {
	Insert(ctx context.Context, entry *models.LedgerEntry) error
	Summarize(ctx context.Context, userID string, year int) ([]models.BalanceSummary, error)
	SummarizeOne(ctx context.Context, userID, leaveTypeID string, year int) (*models.BalanceSummary, error)
	ListEntries(ctx context.Context, userID, leaveTypeID string, year int) ([]models.LedgerEntry, error)
}

type balanceLeaveTypeLookup interface {
	FindByID(ctx context.Context, id string) (*models.LeaveType, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// GrantRequest payload for crediting leave days to a user.
type GrantRequest struct {
	UserID      string          `json:"user_id" validate:"required"`
	LeaveTypeID string          `json:"leave_type_id" validate:"required"`
	Year        int             `json:"year" validate:"required,min=2000,max=2100"`
	Amount      decimal.Decimal `json:"amount"`
	ValidFrom   *time.Time      `json:"valid_from"`
	ValidTo     *time.Time      `json:"valid_to"`
	Remarks     *string         `json:"remarks"`
}

// BalanceService derives balances from the ledger and records grants.
type BalanceService struct {
	ledger     balanceLedgerRepository
	leaveTypes balanceLeaveTypeLookup
	auditor    auditRecorder
	cache      *CacheService
	cacheTTL   time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewBalanceService creates an instance of BalanceService.
func NewBalanceService(ledger balanceLedgerRepository, leaveTypes balanceLeaveTypeLookup, auditor auditRecorder, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BalanceService{
		ledger:     ledger,
		leaveTypes: leaveTypes,
		auditor:    auditor,
		cache:      cache,
		cacheTTL:   cacheTTL,
		validator:  validate,
		logger:     logger,
	}
}

func balancesCacheKey(userID string, year int) string {
	return fmt.Sprintf("balances:%s:%d", userID, year)
}

// Summary returns per-leave-type balances for a user and year. The second
// return reports whether the cache answered.
func (s *BalanceService) Summary(ctx context.Context, userID string, year int) ([]models.BalanceSummary, bool, error) {
	key := balancesCacheKey(userID, year)

	var cached []models.BalanceSummary
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	summaries, err := s.ledger.Summarize(ctx, userID, year)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize balances")
	}

	s.cache.Set(ctx, key, summaries, s.cacheTTL)
	return summaries, false, nil
}

// SummaryFor returns the balance for one (user, leave type, year). A user
// with no ledger entries has a zero balance, not an error.
func (s *BalanceService) SummaryFor(ctx context.Context, userID, leaveTypeID string, year int) (*models.BalanceSummary, error) {
	summary, err := s.ledger.SummarizeOne(ctx, userID, leaveTypeID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize balance")
	}
	return summary, nil
}

// Entries returns the raw ledger entries behind a balance.
func (s *BalanceService) Entries(ctx context.Context, userID, leaveTypeID string, year int) ([]models.LedgerEntry, error) {
	entries, err := s.ledger.ListEntries(ctx, userID, leaveTypeID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger entries")
	}
	return entries, nil
}

// Grant credits days to a user's balance by appending a positive ledger
// entry. The amount must be a positive multiple of 0.5 days.
func (s *BalanceService) Grant(ctx context.Context, req GrantRequest, actorID string, meta models.LoginRequest) (*models.LedgerEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grant payload")
	}

	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grant amount must be positive")
	}
	if !isHalfDayMultiple(req.Amount) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grant amount must be a multiple of 0.5")
	}

	lt, err := s.leaveTypes.FindByID(ctx, req.LeaveTypeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}
	if !lt.Tracked {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot grant balance for an untracked leave type")
	}

	entry := &models.LedgerEntry{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		LeaveTypeID: req.LeaveTypeID,
		Year:        req.Year,
		Amount:      req.Amount,
		ValidFrom:   req.ValidFrom,
		ValidTo:     req.ValidTo,
		Remarks:     req.Remarks,
		RecordedBy:  actorID,
	}

	if err := s.ledger.Insert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grant")
	}

	s.cache.InvalidateBalances(ctx, req.UserID)

	newPayload, _ := json.Marshal(map[string]interface{}{
		"user_id":       req.UserID,
		"leave_type_id": req.LeaveTypeID,
		"year":          req.Year,
		"amount":        req.Amount.String(),
	})
	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionBalanceGrant,
		Resource:   "balances",
		ResourceID: &entry.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record grant audit log", zap.Error(err))
	}

	return entry, nil
}

func isHalfDayMultiple(amount decimal.Decimal) bool {
	doubled := amount.Mul(decimal.NewFromInt(2))
	return doubled.Equal(doubled.Truncate(0))
}

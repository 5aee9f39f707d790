package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imjasonkam/leave-sub000/internal/models"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
)

const leaveTypesCacheKey = "leave_types:active"

type leaveTypeRepository interface {
	FindByID(ctx context.Context, id string) (*models.LeaveType, error)
	FindByCode(ctx context.Context, code string) (*models.LeaveType, error)
	List(ctx context.Context, activeOnly bool) ([]models.LeaveType, error)
	Create(ctx context.Context, lt *models.LeaveType) error
	Update(ctx context.Context, lt *models.LeaveType) error
	Delete(ctx context.Context, id string) error
}

// CreateLeaveTypeRequest payload for creating leave types.
type CreateLeaveTypeRequest struct {
	Code    string `json:"code" validate:"required,uppercase"`
	Name    string `json:"name" validate:"required"`
	Tracked bool   `json:"tracked"`
	Active  bool   `json:"active"`
}

// UpdateLeaveTypeRequest payload for updating leave types.
type UpdateLeaveTypeRequest struct {
	Name    string `json:"name" validate:"required"`
	Tracked *bool  `json:"tracked"`
	Active  *bool  `json:"active"`
}

// LeaveTypeService manages the leave type catalogue.
type LeaveTypeService struct {
	repo      leaveTypeRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLeaveTypeService creates an instance of LeaveTypeService.
func NewLeaveTypeService(repo leaveTypeRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *LeaveTypeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LeaveTypeService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns leave types, serving active listings from cache when possible.
// The second return reports whether the cache answered.
func (s *LeaveTypeService) List(ctx context.Context, activeOnly bool) ([]models.LeaveType, bool, error) {
	if activeOnly {
		var cached []models.LeaveType
		if s.cache.Get(ctx, leaveTypesCacheKey, &cached) {
			return cached, true, nil
		}
	}

	types, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave types")
	}

	if activeOnly {
		s.cache.Set(ctx, leaveTypesCacheKey, types, s.cacheTTL)
	}

	return types, false, nil
}

// Get returns a leave type by ID.
func (s *LeaveTypeService) Get(ctx context.Context, id string) (*models.LeaveType, error) {
	lt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}
	return lt, nil
}

// Create adds a new leave type.
func (s *LeaveTypeService) Create(ctx context.Context, req CreateLeaveTypeRequest) (*models.LeaveType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create leave type payload")
	}

	if _, err := s.repo.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "leave type code already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check code uniqueness")
	}

	lt := &models.LeaveType{
		ID:      uuid.NewString(),
		Code:    strings.ToUpper(req.Code),
		Name:    req.Name,
		Tracked: req.Tracked,
		Active:  req.Active,
	}

	if err := s.repo.Create(ctx, lt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave type")
	}

	s.cache.InvalidateLeaveTypes(ctx)
	return lt, nil
}

// Update modifies a leave type.
func (s *LeaveTypeService) Update(ctx context.Context, id string, req UpdateLeaveTypeRequest) (*models.LeaveType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update leave type payload")
	}

	lt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}

	lt.Name = req.Name
	if req.Tracked != nil {
		lt.Tracked = *req.Tracked
	}
	if req.Active != nil {
		lt.Active = *req.Active
	}

	if err := s.repo.Update(ctx, lt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave type")
	}

	s.cache.InvalidateLeaveTypes(ctx)
	return lt, nil
}

// Delete deactivates a leave type. Historic applications and ledger entries
// keep referencing it.
func (s *LeaveTypeService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "leave type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave type")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete leave type")
	}

	s.cache.InvalidateLeaveTypes(ctx)
	return nil
}

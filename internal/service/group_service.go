package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imjasonkam/leave-sub000/internal/models"
	appErrors "github.com/imjasonkam/leave-sub000/pkg/errors"
)

type groupRepository interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error)
}

type groupUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateGroupRequest payload for creating approver groups.
type CreateGroupRequest struct {
	Name        string           `json:"name" validate:"required"`
	Kind        models.GroupKind `json:"kind" validate:"required,oneof=DEPARTMENT DELEGATION"`
	HRAuthority bool             `json:"hr_authority"`
	Active      bool             `json:"active"`
}

// UpdateGroupRequest payload for updating approver groups.
type UpdateGroupRequest struct {
	Name        string           `json:"name" validate:"required"`
	Kind        models.GroupKind `json:"kind" validate:"required,oneof=DEPARTMENT DELEGATION"`
	HRAuthority *bool            `json:"hr_authority"`
	Active      *bool            `json:"active"`
}

// GroupService manages approver groups and their membership.
type GroupService struct {
	repo      groupRepository
	users     groupUserLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService creates an instance of GroupService.
func NewGroupService(repo groupRepository, users groupUserLookup, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns paginated groups.
func (s *GroupService) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, *models.Pagination, error) {
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return groups, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a group by ID.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// Create adds a new group.
func (s *GroupService) Create(ctx context.Context, req CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create group payload")
	}

	group := &models.Group{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Kind:        req.Kind,
		HRAuthority: req.HRAuthority,
		Active:      req.Active,
	}

	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}

	return group, nil
}

// Update modifies a group.
func (s *GroupService) Update(ctx context.Context, id string, req UpdateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update group payload")
	}

	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	group.Name = req.Name
	group.Kind = req.Kind
	if req.HRAuthority != nil {
		group.HRAuthority = *req.HRAuthority
	}
	if req.Active != nil {
		group.Active = *req.Active
	}

	if err := s.repo.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}

	return group, nil
}

// Delete deactivates a group. Slot references to the group remain valid on
// existing applications; an inactive group simply no longer matches members.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete group")
	}

	return nil
}

// AddMember enrolls a user into a group.
func (s *GroupService) AddMember(ctx context.Context, groupID, userID string) error {
	if _, err := s.repo.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.repo.AddMember(ctx, groupID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add member")
	}

	return nil
}

// RemoveMember removes a user from a group.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID string) error {
	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove member")
	}
	return nil
}

// Members lists the current membership of a group.
func (s *GroupService) Members(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	if _, err := s.repo.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return members, nil
}

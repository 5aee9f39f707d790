package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/imjasonkam/leave-sub000/internal/models"
)

// GroupRepository provides database access for approver groups and membership.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository creates a new instance of GroupRepository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// FindByID returns a group by identifier.
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*models.Group, error) {
	const query = `SELECT id, name, kind, hr_authority, active, created_at, updated_at FROM groups WHERE id = $1 LIMIT 1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group by id: %w", err)
	}
	return &group, nil
}

// List returns groups matching the filter with total count.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error) {
	baseQuery := `FROM groups WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, *filter.Kind)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, name, kind, hr_authority, active, created_at, updated_at %s ORDER BY name ASC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list groups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count groups: %w", err)
	}

	return groups, total, nil
}

// Create inserts a new group.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	const query = `INSERT INTO groups (id, name, kind, hr_authority, active, created_at, updated_at)
VALUES (:id, :name, :kind, :hr_authority, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// Update updates mutable fields of a group.
func (r *GroupRepository) Update(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE groups SET name = :name, kind = :kind, hr_authority = :hr_authority, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// Delete performs a soft delete by marking the group inactive.
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE groups SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}

// AddMember links a user into a group.
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	const query = `INSERT INTO group_members (group_id, user_id, added_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a group.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	const query = `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return nil
}

// ListMembers returns the members of a group.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	const query = `SELECT group_id, user_id, added_at FROM group_members WHERE group_id = $1 ORDER BY added_at ASC`
	var members []models.GroupMember
	if err := r.db.SelectContext(ctx, &members, query, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}

// MemberGroupIDs returns the IDs of the active groups a user belongs to.
// Membership is resolved at call time so changes apply to not-yet-decided stages.
func (r *GroupRepository) MemberGroupIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT gm.group_id FROM group_members gm
JOIN groups g ON g.id = gm.group_id
WHERE gm.user_id = $1 AND g.active = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("member group ids: %w", err)
	}
	return ids, nil
}

// HasHRAuthority reports whether the user belongs to any active HR authority group.
func (r *GroupRepository) HasHRAuthority(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM group_members gm
JOIN groups g ON g.id = gm.group_id
WHERE gm.user_id = $1 AND g.active = TRUE AND g.hr_authority = TRUE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID); err != nil {
		return false, fmt.Errorf("check hr authority: %w", err)
	}
	return exists, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/imjasonkam/leave-sub000/internal/models"
)

// LeaveTypeRepository provides database access for leave categories.
type LeaveTypeRepository struct {
	db *sqlx.DB
}

// NewLeaveTypeRepository creates a new instance of LeaveTypeRepository.
func NewLeaveTypeRepository(db *sqlx.DB) *LeaveTypeRepository {
	return &LeaveTypeRepository{db: db}
}

// FindByID returns a leave type by identifier.
func (r *LeaveTypeRepository) FindByID(ctx context.Context, id string) (*models.LeaveType, error) {
	const query = `SELECT id, code, name, tracked, active, created_at, updated_at FROM leave_types WHERE id = $1 LIMIT 1`
	var lt models.LeaveType
	if err := r.db.GetContext(ctx, &lt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find leave type by id: %w", err)
	}
	return &lt, nil
}

// FindByCode returns a leave type by its short code.
func (r *LeaveTypeRepository) FindByCode(ctx context.Context, code string) (*models.LeaveType, error) {
	const query = `SELECT id, code, name, tracked, active, created_at, updated_at FROM leave_types WHERE code = $1 LIMIT 1`
	var lt models.LeaveType
	if err := r.db.GetContext(ctx, &lt, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find leave type by code: %w", err)
	}
	return &lt, nil
}

// List returns all leave types, optionally restricted to active ones.
func (r *LeaveTypeRepository) List(ctx context.Context, activeOnly bool) ([]models.LeaveType, error) {
	query := `SELECT id, code, name, tracked, active, created_at, updated_at FROM leave_types`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY code ASC`

	var types []models.LeaveType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list leave types: %w", err)
	}
	return types, nil
}

// Create inserts a new leave type.
func (r *LeaveTypeRepository) Create(ctx context.Context, lt *models.LeaveType) error {
	if lt.ID == "" {
		lt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lt.CreatedAt.IsZero() {
		lt.CreatedAt = now
	}
	lt.UpdatedAt = now

	const query = `INSERT INTO leave_types (id, code, name, tracked, active, created_at, updated_at)
VALUES (:id, :code, :name, :tracked, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lt); err != nil {
		return fmt.Errorf("create leave type: %w", err)
	}
	return nil
}

// Update updates mutable fields of a leave type.
func (r *LeaveTypeRepository) Update(ctx context.Context, lt *models.LeaveType) error {
	lt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE leave_types SET name = :name, tracked = :tracked, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lt); err != nil {
		return fmt.Errorf("update leave type: %w", err)
	}
	return nil
}

// Delete performs a soft delete by marking the leave type inactive.
func (r *LeaveTypeRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE leave_types SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete leave type: %w", err)
	}
	return nil
}

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

// AlertRepository provides database access for payroll alerts.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new instance of AlertRepository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Insert stores a payroll alert. Duplicate (application, period) pairs are ignored
// so the dispatcher can safely retry.
func (r *AlertRepository) Insert(ctx context.Context, alert *models.PayrollAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	alert.UpdatedAt = now

	const query = `INSERT INTO payroll_alerts (id, user_id, leave_application_id, period, message, acknowledged, created_at, updated_at)
VALUES (:id, :user_id, :leave_application_id, :period, :message, :acknowledged, :created_at, :updated_at)
ON CONFLICT (leave_application_id, period) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, alert); err != nil {
		return fmt.Errorf("insert payroll alert: %w", err)
	}
	return nil
}

// List returns alerts matching the filter with total count.
func (r *AlertRepository) List(ctx context.Context, filter models.PayrollAlertFilter) ([]models.PayrollAlert, int, error) {
	baseQuery := `FROM payroll_alerts WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Period != "" {
		conditions = append(conditions, fmt.Sprintf("period = $%d", len(args)+1))
		args = append(args, filter.Period)
	}
	if filter.Acknowledged != nil {
		conditions = append(conditions, fmt.Sprintf("acknowledged = $%d", len(args)+1))
		args = append(args, *filter.Acknowledged)
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

	listQuery := fmt.Sprintf("SELECT id, user_id, leave_application_id, period, message, acknowledged, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var alerts []models.PayrollAlert
	if err := r.db.SelectContext(ctx, &alerts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payroll alerts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payroll alerts: %w", err)
	}

	return alerts, total, nil
}

// Acknowledge marks an alert as handled.
func (r *AlertRepository) Acknowledge(ctx context.Context, id string) error {
	const query = `UPDATE payroll_alerts SET acknowledged = TRUE, updated_at = $2 WHERE id = $1 AND acknowledged = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("acknowledge payroll alert: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

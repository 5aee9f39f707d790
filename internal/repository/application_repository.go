package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/imjasonkam/leave-sub000/internal/approval"
	"github.com/imjasonkam/leave-sub000/internal/models"
)

const applicationColumns = `id, applicant_id, filed_by, leave_type_id, start_date, end_date, start_session, end_session, days, reason, status,
checker_ref_id, checker_ref_kind, checker_decided_at, checker_remarks,
approver_1_ref_id, approver_1_ref_kind, approver_1_decided_at, approver_1_remarks,
approver_2_ref_id, approver_2_ref_kind, approver_2_decided_at, approver_2_remarks,
approver_3_ref_id, approver_3_ref_kind, approver_3_decided_at, approver_3_remarks,
rejected_by, rejected_at, reject_reason, reversal_of, created_at, updated_at`

// slotColumn maps a chain stage onto its column prefix. Keeping the mapping
// here prevents ad-hoc column strings from leaking into services.
var slotColumn = map[approval.Stage]string{
	approval.StageChecker:   "checker",
	approval.StageApprover1: "approver_1",
	approval.StageApprover2: "approver_2",
	approval.StageApprover3: "approver_3",
}

// LeaveApplicationRepository provides database access for leave applications.
// Application rows are never deleted; they form the audit trail.
type LeaveApplicationRepository struct {
	db *sqlx.DB
}

// NewLeaveApplicationRepository creates a new instance of LeaveApplicationRepository.
func NewLeaveApplicationRepository(db *sqlx.DB) *LeaveApplicationRepository {
	return &LeaveApplicationRepository{db: db}
}

// Create inserts a new leave application with its routing snapshot.
func (r *LeaveApplicationRepository) Create(ctx context.Context, app *models.LeaveApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now

	const query = `INSERT INTO leave_applications (id, applicant_id, filed_by, leave_type_id, start_date, end_date, start_session, end_session, days, reason, status,
checker_ref_id, checker_ref_kind, checker_decided_at, checker_remarks,
approver_1_ref_id, approver_1_ref_kind, approver_1_decided_at, approver_1_remarks,
approver_2_ref_id, approver_2_ref_kind, approver_2_decided_at, approver_2_remarks,
approver_3_ref_id, approver_3_ref_kind, approver_3_decided_at, approver_3_remarks,
rejected_by, rejected_at, reject_reason, reversal_of, created_at, updated_at)
VALUES (:id, :applicant_id, :filed_by, :leave_type_id, :start_date, :end_date, :start_session, :end_session, :days, :reason, :status,
:checker_ref_id, :checker_ref_kind, :checker_decided_at, :checker_remarks,
:approver_1_ref_id, :approver_1_ref_kind, :approver_1_decided_at, :approver_1_remarks,
:approver_2_ref_id, :approver_2_ref_kind, :approver_2_decided_at, :approver_2_remarks,
:approver_3_ref_id, :approver_3_ref_kind, :approver_3_decided_at, :approver_3_remarks,
:rejected_by, :rejected_at, :reject_reason, :reversal_of, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create leave application: %w", err)
	}
	return nil
}

// FindByID returns a leave application by identifier.
func (r *LeaveApplicationRepository) FindByID(ctx context.Context, id string) (*models.LeaveApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM leave_applications WHERE id = $1 LIMIT 1`, applicationColumns)
	var app models.LeaveApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find leave application by id: %w", err)
	}
	return &app, nil
}

// List returns applications matching the filter with total count.
func (r *LeaveApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.LeaveApplication, int, error) {
	baseQuery := `FROM leave_applications WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ApplicantID != "" {
		conditions = append(conditions, fmt.Sprintf("applicant_id = $%d", len(args)+1))
		args = append(args, filter.ApplicantID)
	}
	if filter.LeaveTypeID != "" {
		conditions = append(conditions, fmt.Sprintf("leave_type_id = $%d", len(args)+1))
		args = append(args, filter.LeaveTypeID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("end_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", applicationColumns, baseQuery, pageSize, offset)

	var apps []models.LeaveApplication
	if err := r.db.SelectContext(ctx, &apps, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list leave applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count leave applications: %w", err)
	}

	return apps, total, nil
}

// RecordSlotDecision stamps the decision timestamp and remarks for one slot.
// The guard clauses keep the stamp single-shot and restricted to pending rows.
func (r *LeaveApplicationRepository) RecordSlotDecision(ctx context.Context, id string, stage approval.Stage, decidedAt time.Time, remarks *string) error {
	column, ok := slotColumn[stage]
	if !ok {
		return fmt.Errorf("record slot decision: unknown stage %q", stage)
	}
	query := fmt.Sprintf(`UPDATE leave_applications SET %s_decided_at = $2, %s_remarks = $3, updated_at = $4
WHERE id = $1 AND status = 'pending' AND %s_decided_at IS NULL`, column, column, column)
	res, err := r.db.ExecContext(ctx, query, id, decidedAt, remarks, decidedAt)
	if err != nil {
		return fmt.Errorf("record slot decision: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FinalizeApproval marks a pending application approved and, for tracked
// leave types, appends the deduction ledger entry in the same transaction.
func (r *LeaveApplicationRepository) FinalizeApproval(ctx context.Context, id string, approvedAt time.Time, entry *models.LedgerEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin approval tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE leave_applications SET status = 'approved', updated_at = $2 WHERE id = $1 AND status = 'pending'`
	res, err := tx.ExecContext(ctx, query, id, approvedAt)
	if err != nil {
		return fmt.Errorf("finalize approval: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if entry != nil {
		if err := insertLedgerEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approval tx: %w", err)
	}
	return nil
}

// Reject marks a pending application rejected with rejection metadata.
// Other slots' decision timestamps are left exactly as they were.
func (r *LeaveApplicationRepository) Reject(ctx context.Context, id, rejectedBy string, rejectedAt time.Time, reason *string) error {
	const query = `UPDATE leave_applications SET status = 'rejected', rejected_by = $2, rejected_at = $3, reject_reason = $4, updated_at = $3
WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, rejectedBy, rejectedAt, reason)
	if err != nil {
		return fmt.Errorf("reject leave application: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HasReversal reports whether a reversal application references the original.
func (r *LeaveApplicationRepository) HasReversal(ctx context.Context, originalID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM leave_applications WHERE reversal_of = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, originalID); err != nil {
		return false, fmt.Errorf("check reversal: %w", err)
	}
	return exists, nil
}

// CreateReversal inserts the reversal application and its offsetting credit
// entry in one transaction. The original row is never touched.
func (r *LeaveApplicationRepository) CreateReversal(ctx context.Context, reversal *models.LeaveApplication, credit *models.LedgerEntry) error {
	if reversal.ID == "" {
		reversal.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if reversal.CreatedAt.IsZero() {
		reversal.CreatedAt = now
	}
	reversal.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reversal tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO leave_applications (id, applicant_id, filed_by, leave_type_id, start_date, end_date, start_session, end_session, days, reason, status,
reversal_of, created_at, updated_at)
VALUES (:id, :applicant_id, :filed_by, :leave_type_id, :start_date, :end_date, :start_session, :end_session, :days, :reason, :status,
:reversal_of, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, reversal); err != nil {
		return fmt.Errorf("create reversal application: %w", err)
	}

	if credit != nil {
		if err := insertLedgerEntry(ctx, tx, credit); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reversal tx: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjasonkam/leave-sub000/internal/approval"
	"github.com/imjasonkam/leave-sub000/internal/models"
)

func TestApplicationCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveApplicationRepository(db)

	mock.ExpectExec("INSERT INTO leave_applications").WillReturnResult(sqlmock.NewResult(1, 1))

	app := &models.LeaveApplication{
		ApplicantID: "u1",
		LeaveTypeID: "annual",
		StartDate:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		Days:        decimal.NewFromInt(3),
		Status:      models.StatusPending,
	}
	err := repo.Create(context.Background(), app)
	require.NoError(t, err)
	assert.NotEmpty(t, app.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSlotDecision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveApplicationRepository(db)

	now := time.Now().UTC()
	remarks := "looks fine"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_applications SET approver_1_decided_at = $2, approver_1_remarks = $3, updated_at = $4")).
		WithArgs("app-1", now, &remarks, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordSlotDecision(context.Background(), "app-1", approval.StageApprover1, now, &remarks)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSlotDecisionAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveApplicationRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("UPDATE leave_applications SET checker_decided_at").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordSlotDecision(context.Background(), "app-1", approval.StageChecker, now, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRecordSlotDecisionUnknownStage(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveApplicationRepository(db)

	err := repo.RecordSlotDecision(context.Background(), "app-1", approval.StageCompleted, time.Now(), nil)
	assert.Error(t, err)
}

func TestFinalizeApprovalWithDeduction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveApplicationRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_applications SET status = 'approved', updated_at = $2 WHERE id = $1 AND status = 'pending'")).
		WithArgs("app-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry := &models.LedgerEntry{
		UserID:      "u1",
		LeaveTypeID: "annual",
		Year:        2025,
		Amount:      decimal.NewFromInt(-3),
		RecordedBy:  "sys",
	}
	err := repo.FinalizeApproval(context.Background(), "app-1", now, entry)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeApprovalNotPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE leave_applications SET status = 'approved'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.FinalizeApproval(context.Background(), "app-1", time.Now().UTC(), nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveApplicationRepository(db)

	now := time.Now().UTC()
	reason := "insufficient coverage"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_applications SET status = 'rejected', rejected_by = $2, rejected_at = $3, reject_reason = $4")).
		WithArgs("app-1", "hr-1", now, &reason).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Reject(context.Background(), "app-1", "hr-1", now, &reason)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasReversal(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveApplicationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM leave_applications WHERE reversal_of = $1)")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.HasReversal(context.Background(), "app-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReversal(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLeaveApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO leave_applications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	original := "app-1"
	reversal := &models.LeaveApplication{
		ApplicantID: "u1",
		LeaveTypeID: "annual",
		StartDate:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
		Days:        decimal.NewFromInt(-3),
		Status:      models.StatusApproved,
		ReversalOf:  &original,
	}
	credit := &models.LedgerEntry{
		UserID:      "u1",
		LeaveTypeID: "annual",
		Year:        2025,
		Amount:      decimal.NewFromInt(3),
		RecordedBy:  "hr-1",
	}
	err := repo.CreateReversal(context.Background(), reversal, credit)
	require.NoError(t, err)
	assert.NotEmpty(t, reversal.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

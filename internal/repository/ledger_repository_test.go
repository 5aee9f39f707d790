package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imjasonkam/leave-sub000/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestLedgerInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectExec("INSERT INTO ledger_entries").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.LedgerEntry{
		UserID:      "u1",
		LeaveTypeID: "annual",
		Year:        2025,
		Amount:      decimal.NewFromInt(14),
		RecordedBy:  "hr-1",
	}
	err := repo.Insert(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerSummarize(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	rows := sqlmock.NewRows([]string{"user_id", "leave_type_id", "year", "total_granted", "total_taken", "balance"}).
		AddRow("u1", "annual", 2025, "14", "5", "9")
	mock.ExpectQuery("SELECT user_id, leave_type_id, year").
		WithArgs("u1", 2025).
		WillReturnRows(rows)

	summaries, err := repo.Summarize(context.Background(), "u1", 2025)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].TotalGranted.Equal(decimal.NewFromInt(14)))
	assert.True(t, summaries[0].TotalTaken.Equal(decimal.NewFromInt(5)))
	assert.True(t, summaries[0].Balance.Equal(decimal.NewFromInt(9)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerSummarizeOneNoEntries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	mock.ExpectQuery("SELECT user_id, leave_type_id, year").
		WithArgs("u1", "annual", 2025).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "leave_type_id", "year", "total_granted", "total_taken", "balance"}))

	summary, err := repo.SummarizeOne(context.Background(), "u1", "annual", 2025)
	require.NoError(t, err)
	assert.True(t, summary.Balance.IsZero())
	assert.Equal(t, "u1", summary.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerListEntries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "leave_type_id", "year", "amount", "valid_from", "valid_to", "remarks", "recorded_by", "created_at"}).
		AddRow("e1", "u1", "annual", 2025, "14", nil, nil, nil, "hr-1", now).
		AddRow("e2", "u1", "annual", 2025, "-5", nil, nil, nil, "sys", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE user_id = $1 AND leave_type_id = $2 AND year = $3")).
		WithArgs("u1", "annual", 2025).
		WillReturnRows(rows)

	entries, err := repo.ListEntries(context.Background(), "u1", "annual", 2025)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromInt(-5)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

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

const ledgerInsertQuery = `INSERT INTO ledger_entries (id, user_id, leave_type_id, year, amount, valid_from, valid_to, remarks, recorded_by, created_at)
VALUES (:id, :user_id, :leave_type_id, :year, :amount, :valid_from, :valid_to, :remarks, :recorded_by, :created_at)`

// LedgerRepository provides access to the append-only balance ledger.
// Entries are only ever inserted; the balance is always derived by summation.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new instance of LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Insert appends a ledger entry.
func (r *LedgerRepository) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	return insertLedgerEntry(ctx, r.db, entry)
}

// InsertTx appends a ledger entry within an existing transaction.
func (r *LedgerRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, entry *models.LedgerEntry) error {
	return insertLedgerEntry(ctx, tx, entry)
}

func insertLedgerEntry(ctx context.Context, ext sqlx.ExtContext, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := sqlx.NamedExecContext(ctx, ext, ledgerInsertQuery, entry); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// Summarize derives the balance per leave type for a user and year.
func (r *LedgerRepository) Summarize(ctx context.Context, userID string, year int) ([]models.BalanceSummary, error) {
	const query = `SELECT user_id, leave_type_id, year,
COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS total_granted,
COALESCE(-SUM(CASE WHEN amount < 0 THEN amount ELSE 0 END), 0) AS total_taken,
COALESCE(SUM(amount), 0) AS balance
FROM ledger_entries WHERE user_id = $1 AND year = $2
GROUP BY user_id, leave_type_id, year
ORDER BY leave_type_id ASC`
	var summaries []models.BalanceSummary
	if err := r.db.SelectContext(ctx, &summaries, query, userID, year); err != nil {
		return nil, fmt.Errorf("summarize ledger: %w", err)
	}
	return summaries, nil
}

// SummarizeOne derives the balance for a single (user, leave type, year).
// A missing row means no entries exist yet; zero balances are returned.
func (r *LedgerRepository) SummarizeOne(ctx context.Context, userID, leaveTypeID string, year int) (*models.BalanceSummary, error) {
	const query = `SELECT user_id, leave_type_id, year,
COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0) AS total_granted,
COALESCE(-SUM(CASE WHEN amount < 0 THEN amount ELSE 0 END), 0) AS total_taken,
COALESCE(SUM(amount), 0) AS balance
FROM ledger_entries WHERE user_id = $1 AND leave_type_id = $2 AND year = $3
GROUP BY user_id, leave_type_id, year`
	var summary models.BalanceSummary
	if err := r.db.GetContext(ctx, &summary, query, userID, leaveTypeID, year); err != nil {
		if err == sql.ErrNoRows {
			return &models.BalanceSummary{UserID: userID, LeaveTypeID: leaveTypeID, Year: year}, nil
		}
		return nil, fmt.Errorf("summarize ledger entry: %w", err)
	}
	return &summary, nil
}

// ListEntries returns the raw entries for a (user, leave type, year), oldest first.
func (r *LedgerRepository) ListEntries(ctx context.Context, userID, leaveTypeID string, year int) ([]models.LedgerEntry, error) {
	const query = `SELECT id, user_id, leave_type_id, year, amount, valid_from, valid_to, remarks, recorded_by, created_at
FROM ledger_entries WHERE user_id = $1 AND leave_type_id = $2 AND year = $3 ORDER BY created_at ASC`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID, leaveTypeID, year); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one signed, immutable balance-affecting record.
// Positive amounts are grants, negative amounts are deductions. The running
// balance for (user, leave type, year) is always the sum of its entries;
// corrections are new offsetting entries, never updates.
type LedgerEntry struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	LeaveTypeID string          `db:"leave_type_id" json:"leave_type_id"`
	Year        int             `db:"year" json:"year"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	ValidFrom   *time.Time      `db:"valid_from" json:"valid_from,omitempty"`
	ValidTo     *time.Time      `db:"valid_to" json:"valid_to,omitempty"`
	Remarks     *string         `db:"remarks" json:"remarks,omitempty"`
	RecordedBy  string          `db:"recorded_by" json:"recorded_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// BalanceSummary is the derived balance for one (user, leave type, year).
type BalanceSummary struct {
	UserID       string          `db:"user_id" json:"user_id"`
	LeaveTypeID  string          `db:"leave_type_id" json:"leave_type_id"`
	Year         int             `db:"year" json:"year"`
	TotalGranted decimal.Decimal `db:"total_granted" json:"total_granted"`
	TotalTaken   decimal.Decimal `db:"total_taken" json:"total_taken"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
}

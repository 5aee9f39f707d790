package models

import "time"

// LeaveType is a category of absence. Tracked types draw down the balance
// ledger; untracked types (e.g. unpaid leave) skip balance validation and
// deduction entirely.
type LeaveType struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Tracked   bool      `db:"tracked" json:"tracked"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

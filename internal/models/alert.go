package models

import "time"

// PayrollAlert notifies payroll that an approved leave overlaps a pay period.
type PayrollAlert struct {
	ID                 string    `db:"id" json:"id"`
	UserID             string    `db:"user_id" json:"user_id"`
	LeaveApplicationID string    `db:"leave_application_id" json:"leave_application_id"`
	Period             string    `db:"period" json:"period"`
	Message            string    `db:"message" json:"message"`
	Acknowledged       bool      `db:"acknowledged" json:"acknowledged"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// PayrollAlertFilter captures filtering criteria for listing alerts.
type PayrollAlertFilter struct {
	UserID       string
	Period       string
	Acknowledged *bool
	Page         int
	PageSize     int
}

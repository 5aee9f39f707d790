package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleHR       UserRole = "HR"
	RoleEmployee UserRole = "EMPLOYEE"
)

// RefKind discriminates what an approver slot reference points at.
type RefKind string

const (
	RefUser  RefKind = "user"
	RefGroup RefKind = "group"
)

// User represents an employee account stored in the users table.
// The four approver reference pairs are the user's approval routing: they are
// mirrored onto each new leave application at submission time.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	Department   *string    `db:"department" json:"department,omitempty"`
	Position     *string    `db:"position" json:"position,omitempty"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`

	CheckerRefID     *string `db:"checker_ref_id" json:"checker_ref_id,omitempty"`
	CheckerRefKind   *string `db:"checker_ref_kind" json:"checker_ref_kind,omitempty"`
	Approver1RefID   *string `db:"approver_1_ref_id" json:"approver_1_ref_id,omitempty"`
	Approver1RefKind *string `db:"approver_1_ref_kind" json:"approver_1_ref_kind,omitempty"`
	Approver2RefID   *string `db:"approver_2_ref_id" json:"approver_2_ref_id,omitempty"`
	Approver2RefKind *string `db:"approver_2_ref_kind" json:"approver_2_ref_kind,omitempty"`
	Approver3RefID   *string `db:"approver_3_ref_id" json:"approver_3_ref_id,omitempty"`
	Approver3RefKind *string `db:"approver_3_ref_kind" json:"approver_3_ref_kind,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

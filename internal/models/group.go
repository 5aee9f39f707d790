package models

import "time"

// GroupKind classifies approver groups.
type GroupKind string

const (
	GroupDepartment GroupKind = "DEPARTMENT"
	GroupDelegation GroupKind = "DELEGATION"
)

// Group is a named set of users that an approver slot may reference.
// Any current member may act on a stage that references the group. Groups
// flagged with HRAuthority form the HR escalation path: their members may
// reject (never approve) a pending application at any stage.
type Group struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Kind        GroupKind `db:"kind" json:"kind"`
	HRAuthority bool      `db:"hr_authority" json:"hr_authority"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// GroupMember links a user into a group.
type GroupMember struct {
	GroupID string    `db:"group_id" json:"group_id"`
	UserID  string    `db:"user_id" json:"user_id"`
	AddedAt time.Time `db:"added_at" json:"added_at"`
}

// GroupFilter captures filtering criteria for listing groups.
type GroupFilter struct {
	Kind     *GroupKind
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplicationStatus is the lifecycle state of a leave application.
// Transitions are one-way: pending -> approved or pending -> rejected.
// A reversal never touches the original row; it is a new application
// linked through ReversalOf.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// Half-day session markers for the start and end of a leave range.
const (
	SessionAM = "AM"
	SessionPM = "PM"
)

// LeaveApplication is one leave request with its approval chain snapshot.
// The four approver slots are copied from the applicant's routing at
// submission time; each slot holds an optional reference (user or group),
// a decision timestamp set at most once, and optional remarks.
type LeaveApplication struct {
	ID          string            `db:"id" json:"id"`
	ApplicantID string            `db:"applicant_id" json:"applicant_id"`
	FiledBy     *string           `db:"filed_by" json:"filed_by,omitempty"`
	LeaveTypeID string            `db:"leave_type_id" json:"leave_type_id"`
	StartDate   time.Time         `db:"start_date" json:"start_date"`
	EndDate     time.Time         `db:"end_date" json:"end_date"`
	StartSession *string          `db:"start_session" json:"start_session,omitempty"`
	EndSession  *string           `db:"end_session" json:"end_session,omitempty"`
	Days        decimal.Decimal   `db:"days" json:"days"`
	Reason      string            `db:"reason" json:"reason"`
	Status      ApplicationStatus `db:"status" json:"status"`

	CheckerRefID       *string    `db:"checker_ref_id" json:"checker_ref_id,omitempty"`
	CheckerRefKind     *string    `db:"checker_ref_kind" json:"checker_ref_kind,omitempty"`
	CheckerDecidedAt   *time.Time `db:"checker_decided_at" json:"checker_decided_at,omitempty"`
	CheckerRemarks     *string    `db:"checker_remarks" json:"checker_remarks,omitempty"`
	Approver1RefID     *string    `db:"approver_1_ref_id" json:"approver_1_ref_id,omitempty"`
	Approver1RefKind   *string    `db:"approver_1_ref_kind" json:"approver_1_ref_kind,omitempty"`
	Approver1DecidedAt *time.Time `db:"approver_1_decided_at" json:"approver_1_decided_at,omitempty"`
	Approver1Remarks   *string    `db:"approver_1_remarks" json:"approver_1_remarks,omitempty"`
	Approver2RefID     *string    `db:"approver_2_ref_id" json:"approver_2_ref_id,omitempty"`
	Approver2RefKind   *string    `db:"approver_2_ref_kind" json:"approver_2_ref_kind,omitempty"`
	Approver2DecidedAt *time.Time `db:"approver_2_decided_at" json:"approver_2_decided_at,omitempty"`
	Approver2Remarks   *string    `db:"approver_2_remarks" json:"approver_2_remarks,omitempty"`
	Approver3RefID     *string    `db:"approver_3_ref_id" json:"approver_3_ref_id,omitempty"`
	Approver3RefKind   *string    `db:"approver_3_ref_kind" json:"approver_3_ref_kind,omitempty"`
	Approver3DecidedAt *time.Time `db:"approver_3_decided_at" json:"approver_3_decided_at,omitempty"`
	Approver3Remarks   *string    `db:"approver_3_remarks" json:"approver_3_remarks,omitempty"`

	RejectedBy   *string    `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectedAt   *time.Time `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectReason *string    `db:"reject_reason" json:"reject_reason,omitempty"`

	ReversalOf *string `db:"reversal_of" json:"reversal_of,omitempty"`

	// CurrentStage is derived from the slot columns at read time, never stored.
	CurrentStage string `db:"-" json:"current_stage,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ApplicationFilter captures filtering criteria for listing applications.
type ApplicationFilter struct {
	ApplicantID string
	LeaveTypeID string
	Status      *ApplicationStatus
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

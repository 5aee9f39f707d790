package models

import (
	"encoding/json"
	"time"
)

// Audit actions recorded by services and middleware.
const (
	AuditActionLogin          = "auth.login"
	AuditActionLogout         = "auth.logout"
	AuditActionPasswordChange = "auth.password_change"
	AuditActionUserCreate     = "users.create"
	AuditActionUserUpdate     = "users.update"
	AuditActionUserDelete     = "users.delete"
	AuditActionRoutingUpdate  = "users.routing_update"
	AuditActionLeaveSubmit    = "leave.submit"
	AuditActionLeaveDecision  = "leave.decision"
	AuditActionLeaveReverse   = "leave.reverse"
	AuditActionBalanceGrant   = "balances.grant"
	AuditActionReportGenerate = "reports.generate"
)

// AuditLog records who did what to which resource.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues  json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string          `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

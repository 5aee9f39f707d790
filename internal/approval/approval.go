// Package approval centralises resolution of the four-slot approval chain.
// Every layer that needs to know "whose turn is it" calls Resolve rather
// than re-deriving the answer from raw columns.
package approval

import (
	"time"

	"github.com/imjasonkam/leave-sub000/internal/models"
)

// Stage identifies one position in the approval chain.
type Stage string

const (
	StageChecker   Stage = "checker"
	StageApprover1 Stage = "approver_1"
	StageApprover2 Stage = "approver_2"
	StageApprover3 Stage = "approver_3"
	StageCompleted Stage = "completed"
)

// Order is the fixed slot sequence. Slots with no configured reference are
// skipped; only configured slots participate.
var Order = [4]Stage{StageChecker, StageApprover1, StageApprover2, StageApprover3}

// Ref points at who may act on a slot: a specific user, or any current
// member of a group. Group references are resolved to eligible identities
// at authorization-check time, never flattened at write time, so membership
// changes take effect for not-yet-decided stages.
type Ref struct {
	ID   string
	Kind models.RefKind
}

// Slot is one chain position with its decision state. A nil Ref means the
// slot is unconfigured and treated as already satisfied.
type Slot struct {
	Ref       *Ref
	DecidedAt *time.Time
}

// Chain is the ordered slot state of one leave application.
type Chain [4]Slot

// Actor is an identity attempting to act on a chain. GroupIDs holds the
// actor's current group memberships; HRAuthority marks membership in the
// designated HR override group.
type Actor struct {
	UserID      string
	GroupIDs    []string
	HRAuthority bool
}

// FromApplication builds the chain snapshot stored on an application.
func FromApplication(app *models.LeaveApplication) Chain {
	return Chain{
		{Ref: newRef(app.CheckerRefID, app.CheckerRefKind), DecidedAt: app.CheckerDecidedAt},
		{Ref: newRef(app.Approver1RefID, app.Approver1RefKind), DecidedAt: app.Approver1DecidedAt},
		{Ref: newRef(app.Approver2RefID, app.Approver2RefKind), DecidedAt: app.Approver2DecidedAt},
		{Ref: newRef(app.Approver3RefID, app.Approver3RefKind), DecidedAt: app.Approver3DecidedAt},
	}
}

func newRef(id, kind *string) *Ref {
	if id == nil || *id == "" {
		return nil
	}
	k := models.RefUser
	if kind != nil && models.RefKind(*kind) == models.RefGroup {
		k = models.RefGroup
	}
	return &Ref{ID: *id, Kind: k}
}

// Resolve returns the current pending stage: the first configured slot
// without a decision timestamp, in fixed order. When every configured slot
// has been decided, or no slot is configured at all, the result is
// StageCompleted. Resolve never auto-approves; the caller decides what a
// completed chain means.
func Resolve(c Chain) Stage {
	for i, slot := range c {
		if slot.Ref != nil && slot.DecidedAt == nil {
			return Order[i]
		}
	}
	return StageCompleted
}

// SlotAt returns the slot for a concrete stage. The second result is false
// for StageCompleted.
func (c Chain) SlotAt(stage Stage) (Slot, bool) {
	for i, s := range Order {
		if s == stage {
			return c[i], true
		}
	}
	return Slot{}, false
}

// WithDecision returns a copy of the chain with the given stage marked as
// decided. Useful for answering "is the chain complete once this decision
// lands" without a reload.
func (c Chain) WithDecision(stage Stage, at time.Time) Chain {
	for i, s := range Order {
		if s == stage {
			c[i].DecidedAt = &at
		}
	}
	return c
}

// Eligible reports whether the actor matches the given stage's reference,
// either directly or through group membership.
func (c Chain) Eligible(stage Stage, actor Actor) bool {
	slot, ok := c.SlotAt(stage)
	if !ok || slot.Ref == nil {
		return false
	}
	switch slot.Ref.Kind {
	case models.RefGroup:
		for _, g := range actor.GroupIDs {
			if g == slot.Ref.ID {
				return true
			}
		}
		return false
	default:
		return actor.UserID == slot.Ref.ID
	}
}

// CanApprove reports whether the actor may approve the chain right now.
// Approval is only ever granted for the current stage; holding a later slot
// or HR authority does not qualify.
func CanApprove(c Chain, actor Actor) bool {
	current := Resolve(c)
	if current == StageCompleted {
		return false
	}
	return c.Eligible(current, actor)
}

// CanReject reports whether the actor may reject the chain right now.
// The current-stage holder may reject, and members of the HR authority
// group may reject at any stage before completion as an escalation path.
func CanReject(c Chain, actor Actor) bool {
	current := Resolve(c)
	if current == StageCompleted {
		return false
	}
	if actor.HRAuthority {
		return true
	}
	return c.Eligible(current, actor)
}

// Involves reports whether the actor is referenced by any configured slot,
// decided or not. Used for read-access checks.
func Involves(c Chain, actor Actor) bool {
	for _, stage := range Order {
		if c.Eligible(stage, actor) {
			return true
		}
	}
	return false
}

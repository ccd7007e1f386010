package claim

import (
	"time"

	"github.com/mstancik/expenseflow/internal/domain/org"
)

// StepStatus is the state of a single approval step.
type StepStatus string

const (
	StepPending  StepStatus = "Pending"
	StepApproved StepStatus = "Approved"
	StepRejected StepStatus = "Rejected"
	StepSkipped  StepStatus = "Skipped"
)

// Approver identifies who may act on a step. An unbound approver admits
// any user holding the role; a bound one is restricted to a specific user.
// The two cases are distinguished explicitly rather than overloading a
// nullable user field.
type Approver struct {
	Role   org.Role `json:"role"`
	UserID string   `json:"user_id,omitempty"`
}

// AnyWithRole returns an approver open to every holder of the role.
func AnyWithRole(role org.Role) Approver {
	return Approver{Role: role}
}

// BoundTo returns an approver restricted to the given user.
func BoundTo(role org.Role, userID string) Approver {
	return Approver{Role: role, UserID: userID}
}

// IsBound reports whether the approver is restricted to a specific user.
func (a Approver) IsBound() bool {
	return a.UserID != ""
}

// Admits reports whether the user may act for this approver slot.
func (a Approver) Admits(u org.User) bool {
	if u.Role != a.Role {
		return false
	}
	return !a.IsBound() || a.UserID == u.ID
}

// ApprovalStep is one required sign-off in a claim's chain. A step is
// created Pending (the synthetic requester step excepted), mutated exactly
// once by the transition engine, and its terminal state is permanent.
type ApprovalStep struct {
	Approver   Approver   `json:"approver"`
	Status     StepStatus `json:"status"`
	ActionDate *time.Time `json:"action_date,omitempty"`
	Comment    string     `json:"comment,omitempty"`
}

// Acted reports whether the step has reached a decision.
func (s ApprovalStep) Acted() bool {
	return s.Status == StepApproved || s.Status == StepRejected
}

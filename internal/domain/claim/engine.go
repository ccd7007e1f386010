package claim

import (
	"time"

	"github.com/mstancik/expenseflow/internal/domain/org"
)

// Decision is the action an approver takes on the active step.
type Decision string

const (
	DecisionApprove Decision = "Approve"
	DecisionReject  Decision = "Reject"
)

// CanAct reports whether the user may act on the claim right now: the
// cursor must be in bounds, the step there Pending, and the user admitted
// by the step's approver slot.
func CanAct(c *Claim, u org.User) bool {
	step, ok := c.ActiveStep()
	if !ok {
		return false
	}
	return step.Status == StepPending && step.Approver.Admits(u)
}

// Act applies an approve/reject decision by the actor to the active step.
// The step mutation, cursor move and status recomputation are a single
// unit: on any precondition failure the claim is left untouched.
//
// Approving a non-final step advances the cursor and relabels the claim
// after the role just completed. Approving the final step yields
// FinanceApproved with the cursor resting on the final index. Rejecting
// leaves the cursor on the rejected step as the record of where the chain
// stopped.
func (c *Claim) Act(actor org.User, decision Decision, comment string, now time.Time) error {
	if c.Status.IsTerminal() {
		return ErrClaimTerminal
	}
	step, ok := c.ActiveStep()
	if !ok {
		return ErrNoActiveStep
	}
	if step.Status != StepPending {
		return ErrStepNotPending
	}
	if !step.Approver.Admits(actor) {
		return ErrNotAuthorized
	}

	actionDate := now
	step.ActionDate = &actionDate
	step.Comment = comment
	step.Approver.UserID = actor.ID // stamp the actual approver

	if decision == DecisionReject {
		step.Status = StepRejected
		c.Status = StatusRejected
	} else {
		step.Status = StepApproved
		if c.CurrentStep == len(c.Chain)-1 {
			c.Status = StatusFinanceApproved
		} else {
			c.CurrentStep++
			c.Status = statusAfterApproval(step.Approver.Role)
		}
	}

	c.UpdatedAt = now
	c.Version++
	return nil
}

// AwaitingFinance reports whether the newly active step is the finance
// step, which is the moment the accounting-proposal hook fires.
func (c *Claim) AwaitingFinance() bool {
	if c.Status.IsTerminal() {
		return false
	}
	step, ok := c.ActiveStep()
	return ok && step.Status == StepPending && step.Approver.Role == org.RoleFinance
}

// AwaitsActionBy reports whether the claim is waiting on this user: the
// active-step view used for approval inboxes. A user never reviews their
// own submission.
func AwaitsActionBy(c *Claim, u org.User) bool {
	if c.RequesterID == u.ID {
		return false
	}
	return CanAct(c, u)
}

// HasActedOn reports whether the user (or their role, for unbound steps)
// has a decided step anywhere in the chain, regardless of the cursor. Not
// exclusive with AwaitsActionBy; both derive from chain data alone.
func HasActedOn(c *Claim, u org.User) bool {
	if c.RequesterID == u.ID {
		return false
	}
	for _, step := range c.Chain {
		if step.Acted() && step.Approver.Admits(u) {
			return true
		}
	}
	return false
}

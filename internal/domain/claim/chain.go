package claim

import (
	"time"

	"github.com/mstancik/expenseflow/internal/domain/org"
)

// BuildChain produces the ordered approval chain for a claim. The shape
// depends on the requester's reporting line and the amount:
//
//  1. a synthetic Requester step, pre-approved, recording the submission
//  2. a Manager step bound to the requester's manager, when one resolves
//  3. a CFO step when the amount exceeds the CFO limit (strictly)
//  4. a CEO step when the amount exceeds the CEO limit (strictly)
//  5. a terminal Finance step, open to any finance user
//
// CFO and CEO steps are bound to a specific user only when exactly one
// user holds the role; otherwise any holder may act. An unknown requester
// is a fatal precondition failure and no chain is returned.
func BuildChain(requesterID string, amount Money, model *org.Model, now time.Time) ([]ApprovalStep, error) {
	requester, ok := model.UserByID(requesterID)
	if !ok {
		return nil, ErrRequesterNotFound
	}

	actionDate := now
	chain := []ApprovalStep{{
		Approver:   BoundTo(org.RoleRequester, requester.ID),
		Status:     StepApproved,
		ActionDate: &actionDate,
		Comment:    "Submitted",
	}}

	if requester.ManagerID != "" {
		if manager, ok := model.UserByID(requester.ManagerID); ok {
			chain = append(chain, ApprovalStep{
				Approver: BoundTo(org.RoleManager, manager.ID),
				Status:   StepPending,
			})
		}
	}

	if amount.Amount.GreaterThan(model.Limits.CFO) {
		chain = append(chain, ApprovalStep{
			Approver: roleApprover(model, org.RoleCFO),
			Status:   StepPending,
		})
	}

	if amount.Amount.GreaterThan(model.Limits.CEO) {
		chain = append(chain, ApprovalStep{
			Approver: roleApprover(model, org.RoleCEO),
			Status:   StepPending,
		})
	}

	chain = append(chain, ApprovalStep{
		Approver: AnyWithRole(org.RoleFinance),
		Status:   StepPending,
	})

	return chain, nil
}

// roleApprover binds the step to the sole holder of the role, or leaves it
// open when the role is vacant or shared.
func roleApprover(model *org.Model, role org.Role) Approver {
	if holder, ok := model.SoleHolder(role); ok {
		return BoundTo(role, holder.ID)
	}
	return AnyWithRole(role)
}

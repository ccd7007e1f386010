package claim

import "github.com/mstancik/expenseflow/internal/domain/org"

// Status is the externally visible label of a claim. It is always derived
// from the approval chain and the step cursor, never set independently.
type Status string

const (
	StatusSubmitted       Status = "Submitted"
	StatusManagerApproved Status = "ManagerApproved"
	StatusCFOApproved     Status = "CFOApproved"
	StatusCEOApproved     Status = "CEOApproved"
	StatusFinanceApproved Status = "FinanceApproved"
	StatusRejected        Status = "Rejected"
)

var terminalStatuses = map[Status]bool{
	StatusFinanceApproved: true,
	StatusRejected:        true,
}

// IsTerminal returns true if no further transitions are possible.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// statusAfterApproval maps the role of the step just completed to the
// claim's new label. Completing the final step is handled separately and
// always yields FinanceApproved. A requester step completing (which only
// happens implicitly at submission) keeps the claim Submitted, so a fresh
// chain is labeled Submitted even when its first actionable step is CFO
// or Finance.
func statusAfterApproval(completed org.Role) Status {
	switch completed {
	case org.RoleManager:
		return StatusManagerApproved
	case org.RoleCFO:
		return StatusCFOApproved
	case org.RoleCEO:
		return StatusCEOApproved
	default:
		return StatusSubmitted
	}
}

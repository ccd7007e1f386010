package claim

import "errors"

var (
	// ErrRequesterNotFound is returned when the requester cannot be resolved
	// in the organization model at chain-build time. The claim must not be
	// created.
	ErrRequesterNotFound = errors.New("requester not found in organization model")

	// ErrClaimTerminal is returned when acting on a claim that is already
	// Rejected or FinanceApproved.
	ErrClaimTerminal = errors.New("claim is in a terminal state")

	// ErrStepNotPending is returned when the active step has already been
	// decided. This is also what a racing second actor observes.
	ErrStepNotPending = errors.New("active step is not pending")

	// ErrNotAuthorized is returned when the acting user does not match the
	// active step's role, or the step is bound to a different user.
	ErrNotAuthorized = errors.New("user is not authorized to act on this step")

	// ErrNoActiveStep is returned when the step cursor points outside the
	// chain.
	ErrNoActiveStep = errors.New("no active step")

	// ErrUnbalancedJournal is returned when a proposed journal entry's debit
	// and credit amounts differ. It blocks posting only, never the approval
	// transition.
	ErrUnbalancedJournal = errors.New("journal entry debit and credit amounts are not balanced")
)

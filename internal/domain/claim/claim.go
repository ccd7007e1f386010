// Package claim implements the expense claim aggregate: chain construction,
// the approval transition engine and the authorization predicate.
package claim

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mstancik/expenseflow/internal/domain/org"
)

// ExpenseType distinguishes employee reimbursements from vendor payments.
type ExpenseType string

const (
	TypeReimbursement ExpenseType = "reimbursement"
	TypeVendorPayment ExpenseType = "vendor_payment"
)

// Urgency flags a claim for prioritized handling. Display-only.
type Urgency string

const (
	UrgencyNormal Urgency = "Normal"
	UrgencyUrgent Urgency = "Urgent"
)

// Money is a currency-tagged amount.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Claim is the aggregate root. The chain is append-only at creation and of
// immutable length thereafter; CurrentStep is the single source of truth
// for whose turn it is; Status is a projection of the chain and cursor.
type Claim struct {
	ID          string      `json:"id"`
	RequesterID string      `json:"requester_id"`
	Amount      Money       `json:"amount"`
	TaxAmount   Money       `json:"tax_amount"`
	Vendor      string      `json:"vendor,omitempty"`
	Category    string      `json:"category,omitempty"`
	Description string      `json:"description,omitempty"`
	Reference   string      `json:"reference,omitempty"`
	PayTo       string      `json:"pay_to,omitempty"`
	ExpenseType ExpenseType `json:"expense_type,omitempty"`
	Urgency     Urgency     `json:"urgency,omitempty"`
	InvoiceDate *time.Time  `json:"invoice_date,omitempty"`
	DueDate     *time.Time  `json:"due_date,omitempty"`

	Status      Status         `json:"status"`
	Chain       []ApprovalStep `json:"approval_chain"`
	CurrentStep int            `json:"current_step_index"`

	// Proposal is accounting metadata merged in after the chain reaches
	// finance. It never influences Status or CurrentStep.
	Proposal *AccountingProposal `json:"proposal,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the optimistic concurrency token bumped on every committed
	// transition. Racing writers lose on the version check and re-observe
	// the post-transition state.
	Version int64 `json:"version"`
}

// New builds a claim for the requester, constructing its approval chain
// from the organization snapshot. Fails without side effects if the
// requester is unknown.
func New(id string, requesterID string, amount Money, model *org.Model, now time.Time) (*Claim, error) {
	chain, err := BuildChain(requesterID, amount, model, now)
	if err != nil {
		return nil, err
	}
	return &Claim{
		ID:          id,
		RequesterID: requesterID,
		Amount:      amount,
		Urgency:     UrgencyNormal,
		ExpenseType: TypeReimbursement,
		Status:      StatusSubmitted,
		Chain:       chain,
		CurrentStep: firstPending(chain),
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}, nil
}

// firstPending returns the index of the first pending step. The requester
// step is created pre-approved, so a fresh chain starts at index 1 (or at
// the finance step when the chain is requester+finance only).
func firstPending(chain []ApprovalStep) int {
	for i, s := range chain {
		if s.Status == StepPending {
			return i
		}
	}
	return len(chain) - 1
}

// ActiveStep returns the step at the cursor, or false when the cursor is
// out of bounds.
func (c *Claim) ActiveStep() (*ApprovalStep, bool) {
	if c.CurrentStep < 0 || c.CurrentStep >= len(c.Chain) {
		return nil, false
	}
	return &c.Chain[c.CurrentStep], true
}

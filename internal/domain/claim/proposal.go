package claim

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProposalStatus is the lifecycle of an accounting proposal.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalCompleted ProposalStatus = "completed"
	ProposalFailed    ProposalStatus = "failed"
)

// GLAccountSuggestion is the proposed general-ledger account.
type GLAccountSuggestion struct {
	AccountCode string  `json:"account_code"`
	AccountName string  `json:"account_name"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
}

// APARSuggestion is the proposed payable/receivable record.
type APARSuggestion struct {
	Type         string          `json:"type"` // AP or AR
	Counterparty string          `json:"counterparty"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      string          `json:"due_date,omitempty"`
	Reference    string          `json:"reference,omitempty"`
}

// JournalEntry is the proposed balanced journal entry.
type JournalEntry struct {
	DebitAccount  string          `json:"debit_account"`
	DebitAmount   decimal.Decimal `json:"debit_amount"`
	CreditAccount string          `json:"credit_account"`
	CreditAmount  decimal.Decimal `json:"credit_amount"`
	Description   string          `json:"description,omitempty"`
}

// Balanced reports whether debit and credit amounts match. Checked at the
// point of posting, never inside the transition engine.
func (j JournalEntry) Balanced() bool {
	return j.DebitAmount.Equal(j.CreditAmount)
}

// AccountingProposal is the AI-suggested accounting treatment attached to
// a claim once it reaches the finance stage. It is inert metadata: merging
// it never changes the claim's status or cursor.
type AccountingProposal struct {
	GLAccount   GLAccountSuggestion `json:"gl_account"`
	APAR        APARSuggestion      `json:"ap_ar"`
	Journal     JournalEntry        `json:"journal_entry"`
	Status      ProposalStatus      `json:"status"`
	ProcessedAt time.Time           `json:"processed_at"`
}

// AttachProposal merges a proposal into the claim. Late arrivals on a
// terminal claim attach all the same; the proposal cannot resurrect or
// alter the workflow position.
func (c *Claim) AttachProposal(p *AccountingProposal, now time.Time) {
	c.Proposal = p
	c.UpdatedAt = now
	c.Version++
}

// FinancePosting carries the finance approver's choices at the final step:
// the GL account to use and whether to create the AP record and post the
// journal entry.
type FinancePosting struct {
	GLAccountCode string `json:"gl_account_code"`
	CreateAPAR    bool   `json:"create_ap_ar"`
	PostJournal   bool   `json:"post_journal"`
	Comments      string `json:"comments,omitempty"`
}

// ValidatePosting guards the finance posting action. An unbalanced journal
// blocks posting only; the approval transition itself is unaffected.
func (c *Claim) ValidatePosting(p FinancePosting) error {
	if p.PostJournal {
		if c.Proposal == nil || !c.Proposal.Journal.Balanced() {
			return ErrUnbalancedJournal
		}
	}
	return nil
}

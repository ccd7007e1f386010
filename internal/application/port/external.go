package port

import (
	"context"

	"github.com/mstancik/expenseflow/internal/domain/claim"
)

// ExtractedFields is the structured result of receipt extraction, used to
// pre-populate a new claim before the chain is built. Each field carries a
// confidence score in [0,1]; absent fields score zero.
type ExtractedFields struct {
	Vendor      string `json:"vendor,omitempty"`
	Amount      string `json:"amount,omitempty"`
	TaxAmount   string `json:"tax_amount,omitempty"`
	InvoiceDate string `json:"invoice_date,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Reference   string `json:"reference,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Confidence  Scores `json:"confidence"`
	RawText     string `json:"raw_text,omitempty"`
	ProcessedMS int64  `json:"processing_ms"`
}

// Scores holds per-field extraction confidence.
type Scores struct {
	Vendor      float64 `json:"vendor,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	TaxAmount   float64 `json:"tax_amount,omitempty"`
	InvoiceDate float64 `json:"invoice_date,omitempty"`
	DueDate     float64 `json:"due_date,omitempty"`
	Reference   float64 `json:"reference,omitempty"`
	Description float64 `json:"description,omitempty"`
	Category    float64 `json:"category,omitempty"`
}

// ExtractionError is the structured failure a degraded extraction carries.
type ExtractionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExtractionResult is either a field set or a structured error. Claim
// creation never blocks on the extractor; a failed extraction simply means
// manual entry.
type ExtractionResult struct {
	Fields *ExtractedFields `json:"fields,omitempty"`
	Err    *ExtractionError `json:"error,omitempty"`
}

// ReceiptExtractor extracts structured expense fields from uploaded
// receipt files.
type ReceiptExtractor interface {
	Extract(ctx context.Context, files []ReceiptFile, currency string) (*ExtractionResult, error)
}

// ReceiptFile is one uploaded receipt.
type ReceiptFile struct {
	Name    string
	Content []byte
}

// ProposalGenerator produces an accounting proposal for a claim that has
// reached the finance stage. Implementations must degrade: on any failure
// they return a well-formed proposal with status failed and monetary
// fields defaulted from the claim, never an error that would surface into
// the workflow.
type ProposalGenerator interface {
	Propose(ctx context.Context, c *claim.Claim) *claim.AccountingProposal
}

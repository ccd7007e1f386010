// Package openai implements the AI collaborators: receipt field extraction
// and accounting-proposal generation.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mstancik/expenseflow/internal/application/port"
	"github.com/mstancik/expenseflow/internal/domain/claim"
)

// Proposer implements port.ProposalGenerator. Any failure along the way
// degrades to a well-formed failed proposal with monetary fields defaulted
// from the claim, so the human workflow never stalls on the AI.
type Proposer struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewProposer creates a new accounting proposer
func NewProposer(apiKey, model string, temperature float32, logger *zap.Logger) *Proposer {
	return &Proposer{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

// proposalPayload is the JSON shape the model is asked to produce.
type proposalPayload struct {
	GLAccount struct {
		AccountCode string  `json:"account_code"`
		AccountName string  `json:"account_name"`
		Confidence  float64 `json:"confidence"`
		Reasoning   string  `json:"reasoning"`
	} `json:"gl_account"`
	APAR struct {
		Type         string `json:"type"`
		Counterparty string `json:"counterparty"`
		Amount       string `json:"amount"`
		DueDate      string `json:"due_date"`
		Reference    string `json:"reference"`
	} `json:"ap_ar"`
	Journal struct {
		DebitAccount  string `json:"debit_account"`
		DebitAmount   string `json:"debit_amount"`
		CreditAccount string `json:"credit_account"`
		CreditAmount  string `json:"credit_amount"`
		Description   string `json:"description"`
	} `json:"journal_entry"`
}

// Propose generates the accounting proposal for a claim at the finance
// stage.
func (p *Proposer) Propose(ctx context.Context, c *claim.Claim) *claim.AccountingProposal {
	p.logger.Info("Generating accounting proposal",
		zap.String("claim_id", c.ID),
		zap.String("category", c.Category))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an accountant. Given an approved expense claim, propose a general-ledger account, a payable record and a balanced journal entry. Respond with valid JSON only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: p.buildPrompt(c),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		p.logger.Error("Accounting proposal call failed", zap.String("claim_id", c.ID), zap.Error(err))
		return failedProposal(c)
	}
	if len(resp.Choices) == 0 {
		p.logger.Error("Accounting proposal returned no choices", zap.String("claim_id", c.ID))
		return failedProposal(c)
	}

	var payload proposalPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		p.logger.Error("Failed to parse proposal response",
			zap.String("claim_id", c.ID),
			zap.Error(err))
		return failedProposal(c)
	}

	proposal := &claim.AccountingProposal{
		GLAccount: claim.GLAccountSuggestion{
			AccountCode: payload.GLAccount.AccountCode,
			AccountName: payload.GLAccount.AccountName,
			Confidence:  payload.GLAccount.Confidence,
			Reasoning:   payload.GLAccount.Reasoning,
		},
		APAR: claim.APARSuggestion{
			Type:         payload.APAR.Type,
			Counterparty: payload.APAR.Counterparty,
			Amount:       parseAmount(payload.APAR.Amount, c.Amount.Amount),
			DueDate:      payload.APAR.DueDate,
			Reference:    payload.APAR.Reference,
		},
		Journal: claim.JournalEntry{
			DebitAccount:  payload.Journal.DebitAccount,
			DebitAmount:   parseAmount(payload.Journal.DebitAmount, c.Amount.Amount),
			CreditAccount: payload.Journal.CreditAccount,
			CreditAmount:  parseAmount(payload.Journal.CreditAmount, c.Amount.Amount),
			Description:   payload.Journal.Description,
		},
		Status:      claim.ProposalCompleted,
		ProcessedAt: time.Now(),
	}

	p.logger.Info("Accounting proposal generated",
		zap.String("claim_id", c.ID),
		zap.String("gl_account", proposal.GLAccount.AccountCode),
		zap.Float64("confidence", proposal.GLAccount.Confidence))
	return proposal
}

func (p *Proposer) buildPrompt(c *claim.Claim) string {
	payTo := c.PayTo
	if payTo == "" {
		payTo = c.Vendor
	}
	return fmt.Sprintf(`Expense claim:
- id: %s
- vendor: %s
- category: %s
- amount: %s %s
- description: %s
- pay to: %s
- reference: %s
- expense type: %s

Return JSON with keys gl_account {account_code, account_name, confidence, reasoning},
ap_ar {type (AP or AR), counterparty, amount, due_date, reference} and
journal_entry {debit_account, debit_amount, credit_account, credit_amount, description}.
Amounts are decimal strings. The journal entry must balance.`,
		c.ID, c.Vendor, c.Category, c.Amount.Amount.String(), c.Amount.Currency,
		c.Description, payTo, c.Reference, string(c.ExpenseType))
}

// failedProposal defaults every monetary field from the claim so the
// object is still well-formed and the journal still balances.
func failedProposal(c *claim.Claim) *claim.AccountingProposal {
	counterparty := c.PayTo
	if counterparty == "" {
		counterparty = c.Vendor
	}
	return &claim.AccountingProposal{
		GLAccount: claim.GLAccountSuggestion{
			Reasoning: "AI processing failed",
		},
		APAR: claim.APARSuggestion{
			Type:         "AP",
			Counterparty: counterparty,
			Amount:       c.Amount.Amount,
			Reference:    c.Reference,
		},
		Journal: claim.JournalEntry{
			DebitAmount:  c.Amount.Amount,
			CreditAmount: c.Amount.Amount,
			Description:  c.Description,
		},
		Status:      claim.ProposalFailed,
		ProcessedAt: time.Now(),
	}
}

func parseAmount(s string, fallback decimal.Decimal) decimal.Decimal {
	if s == "" {
		return fallback
	}
	amt, err := decimal.NewFromString(s)
	if err != nil {
		return fallback
	}
	return amt
}

// compile-time conformance check
var _ port.ProposalGenerator = (*Proposer)(nil)

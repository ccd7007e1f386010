package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mstancik/expenseflow/internal/application/port"
	"github.com/mstancik/expenseflow/internal/domain/claim"
	"github.com/mstancik/expenseflow/internal/domain/org"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// actRetries bounds the optimistic read-modify-write loop. A racing writer
// loses the version check, reloads and then fails the step-pending
// precondition, so the loop terminates quickly in practice.
const actRetries = 3

// CreateClaimInput carries the fields captured for a new claim. Extracted
// fields, when present, pre-populate whatever the user left blank.
type CreateClaimInput struct {
	RequesterID string
	Amount      decimal.Decimal
	Currency    string
	TaxAmount   decimal.Decimal
	Vendor      string
	Category    string
	Description string
	Reference   string
	PayTo       string
	ExpenseType claim.ExpenseType
	Urgency     claim.Urgency
	InvoiceDate *time.Time
	DueDate     *time.Time

	Extracted *port.ExtractedFields
}

// ClaimService manages expense claims and drives them through their
// approval chains.
type ClaimService interface {
	Create(ctx context.Context, input CreateClaimInput) (*claim.Claim, error)
	Get(ctx context.Context, id string) (*claim.Claim, error)
	List(ctx context.Context, filter port.ClaimFilter) ([]*claim.Claim, error)

	// Act applies an approve/reject decision atomically against the claim's
	// current value. Concurrent attempts on the same claim are serialized by
	// the version check; the loser observes the post-transition state and
	// fails the step-pending precondition.
	Act(ctx context.Context, claimID, actorID string, decision claim.Decision, comment string) (*claim.Claim, error)

	// FinanceApprove is the final-step approval with posting choices. An
	// unbalanced proposed journal blocks the posting, not the approval
	// preconditions themselves, so the caller is told before anything
	// commits.
	FinanceApprove(ctx context.Context, claimID, actorID string, posting claim.FinancePosting) (*claim.Claim, error)

	// AwaitingUser lists claims whose active step this user may act on.
	AwaitingUser(ctx context.Context, userID string) ([]*claim.Claim, error)

	// ActedOnByUser lists claims carrying a decided step attributable to
	// this user, regardless of the claim's current position.
	ActedOnByUser(ctx context.Context, userID string) ([]*claim.Claim, error)
}

type claimServiceImpl struct {
	claims    port.ClaimRepository
	orgs      OrgService
	proposals port.ProposalGenerator
	logger    Logger
	now       func() time.Time
}

// NewClaimService creates a new ClaimService.
func NewClaimService(
	claims port.ClaimRepository,
	orgs OrgService,
	proposals port.ProposalGenerator,
	logger Logger,
) ClaimService {
	return &claimServiceImpl{
		claims:    claims,
		orgs:      orgs,
		proposals: proposals,
		logger:    logger,
		now:       time.Now,
	}
}

// Create resolves the requester, builds the approval chain and persists
// the submitted claim. An unknown requester aborts before anything is
// written.
func (s *claimServiceImpl) Create(ctx context.Context, input CreateClaimInput) (*claim.Claim, error) {
	model, err := s.orgs.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load organization model: %w", err)
	}

	applyExtracted(&input)

	now := s.now()
	c, err := claim.New(uuid.NewString(), input.RequesterID, claim.Money{
		Amount:   input.Amount,
		Currency: input.Currency,
	}, model, now)
	if err != nil {
		s.logger.Error("Failed to build approval chain", "error", err, "requester_id", input.RequesterID)
		return nil, err
	}

	c.TaxAmount = claim.Money{Amount: input.TaxAmount, Currency: input.Currency}
	c.Vendor = input.Vendor
	c.Category = input.Category
	c.Description = input.Description
	c.Reference = input.Reference
	c.PayTo = input.PayTo
	if input.ExpenseType != "" {
		c.ExpenseType = input.ExpenseType
	}
	if input.Urgency != "" {
		c.Urgency = input.Urgency
	}
	c.InvoiceDate = input.InvoiceDate
	c.DueDate = input.DueDate

	if err := s.claims.Create(ctx, c); err != nil {
		s.logger.Error("Failed to create claim", "error", err, "requester_id", input.RequesterID)
		return nil, err
	}

	s.logger.Info("Claim created",
		"claim_id", c.ID,
		"requester_id", c.RequesterID,
		"amount", c.Amount.Amount.String(),
		"chain_length", len(c.Chain))
	return c, nil
}

// applyExtracted fills blanks in the input from AI-extracted fields. The
// captured form always wins over the extraction.
func applyExtracted(input *CreateClaimInput) {
	ex := input.Extracted
	if ex == nil {
		return
	}
	if input.Vendor == "" {
		input.Vendor = ex.Vendor
	}
	if input.Category == "" {
		input.Category = ex.Category
	}
	if input.Description == "" {
		input.Description = ex.Description
	}
	if input.Reference == "" {
		input.Reference = ex.Reference
	}
	if input.Amount.IsZero() && ex.Amount != "" {
		if amt, err := decimal.NewFromString(ex.Amount); err == nil {
			input.Amount = amt
		}
	}
	if input.TaxAmount.IsZero() && ex.TaxAmount != "" {
		if amt, err := decimal.NewFromString(ex.TaxAmount); err == nil {
			input.TaxAmount = amt
		}
	}
}

func (s *claimServiceImpl) Get(ctx context.Context, id string) (*claim.Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *claimServiceImpl) List(ctx context.Context, filter port.ClaimFilter) ([]*claim.Claim, error) {
	return s.claims.List(ctx, filter)
}

// Act runs the read-modify-write loop. The domain transition and the
// version-checked update form the atomic unit; a version conflict means
// another writer committed first, so the state is reloaded and the
// preconditions re-run against it.
func (s *claimServiceImpl) Act(ctx context.Context, claimID, actorID string, decision claim.Decision, comment string) (*claim.Claim, error) {
	model, err := s.orgs.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load organization model: %w", err)
	}
	actor, ok := model.UserByID(actorID)
	if !ok {
		return nil, claim.ErrNotAuthorized
	}

	var lastErr error
	for attempt := 0; attempt < actRetries; attempt++ {
		c, err := s.claims.GetByID(ctx, claimID)
		if err != nil {
			return nil, err
		}

		fromVersion := c.Version
		if err := c.Act(actor, decision, comment, s.now()); err != nil {
			return nil, err
		}

		if err := s.claims.Update(ctx, c, fromVersion); err != nil {
			if errors.Is(err, port.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		s.logger.Info("Claim transition committed",
			"claim_id", c.ID,
			"actor_id", actorID,
			"decision", string(decision),
			"status", c.Status.String(),
			"step_index", c.CurrentStep)

		if decision == claim.DecisionApprove && c.AwaitingFinance() {
			s.triggerProposal(c.ID)
		}
		return c, nil
	}
	return nil, lastErr
}

// FinanceApprove validates the posting choices against the attached
// proposal, then approves the final step.
func (s *claimServiceImpl) FinanceApprove(ctx context.Context, claimID, actorID string, posting claim.FinancePosting) (*claim.Claim, error) {
	c, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := c.ValidatePosting(posting); err != nil {
		s.logger.Error("Finance posting blocked", "error", err, "claim_id", claimID)
		return nil, err
	}
	return s.Act(ctx, claimID, actorID, claim.DecisionApprove, posting.Comments)
}

// triggerProposal fires the accounting-proposal hook for a claim whose
// chain just reached finance. The call is fire-and-forget: the transition
// has already committed, and the result arrives through the merge path
// keyed by claim id.
func (s *claimServiceImpl) triggerProposal(claimID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		c, err := s.claims.GetByID(ctx, claimID)
		if err != nil {
			s.logger.Error("Proposal hook: failed to load claim", "error", err, "claim_id", claimID)
			return
		}

		proposal := s.proposals.Propose(ctx, c)
		if err := s.mergeProposal(ctx, claimID, proposal); err != nil {
			s.logger.Error("Proposal hook: failed to merge proposal", "error", err, "claim_id", claimID)
			return
		}
		s.logger.Info("Accounting proposal attached",
			"claim_id", claimID,
			"proposal_status", string(proposal.Status))
	}()
}

// mergeProposal attaches the proposal under the same version discipline as
// transitions. A terminal claim accepts the proposal as inert metadata.
func (s *claimServiceImpl) mergeProposal(ctx context.Context, claimID string, p *claim.AccountingProposal) error {
	var lastErr error
	for attempt := 0; attempt < actRetries; attempt++ {
		c, err := s.claims.GetByID(ctx, claimID)
		if err != nil {
			return err
		}
		fromVersion := c.Version
		c.AttachProposal(p, s.now())
		if err := s.claims.Update(ctx, c, fromVersion); err != nil {
			if errors.Is(err, port.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

func (s *claimServiceImpl) AwaitingUser(ctx context.Context, userID string) ([]*claim.Claim, error) {
	return s.filterForUser(ctx, userID, claim.AwaitsActionBy)
}

func (s *claimServiceImpl) ActedOnByUser(ctx context.Context, userID string) ([]*claim.Claim, error) {
	return s.filterForUser(ctx, userID, claim.HasActedOn)
}

func (s *claimServiceImpl) filterForUser(ctx context.Context, userID string, pred func(*claim.Claim, org.User) bool) ([]*claim.Claim, error) {
	model, err := s.orgs.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load organization model: %w", err)
	}
	user, ok := model.UserByID(userID)
	if !ok {
		return nil, fmt.Errorf("user %s not found in organization model", userID)
	}

	all, err := s.claims.List(ctx, port.ClaimFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]*claim.Claim, 0)
	for _, c := range all {
		if pred(c, user) {
			out = append(out, c)
		}
	}
	return out, nil
}

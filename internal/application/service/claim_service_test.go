package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mstancik/expenseflow/internal/application/port"
	"github.com/mstancik/expenseflow/internal/domain/claim"
	"github.com/mstancik/expenseflow/internal/domain/org"
)

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockClaimRepo is a scripted repository with function fields, for tests
// that need exact control over each call.
type mockClaimRepo struct {
	createFn  func(ctx context.Context, c *claim.Claim) error
	getByIDFn func(ctx context.Context, id string) (*claim.Claim, error)
	updateFn  func(ctx context.Context, c *claim.Claim, fromVersion int64) error
	listFn    func(ctx context.Context, filter port.ClaimFilter) ([]*claim.Claim, error)
}

func (m *mockClaimRepo) Create(ctx context.Context, c *claim.Claim) error {
	return m.createFn(ctx, c)
}

func (m *mockClaimRepo) GetByID(ctx context.Context, id string) (*claim.Claim, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockClaimRepo) Update(ctx context.Context, c *claim.Claim, fromVersion int64) error {
	return m.updateFn(ctx, c, fromVersion)
}

func (m *mockClaimRepo) List(ctx context.Context, filter port.ClaimFilter) ([]*claim.Claim, error) {
	return m.listFn(ctx, filter)
}

// memClaimRepo is an in-memory repository with real version checking, for
// tests that exercise the read-modify-write loop end to end. Claims are
// stored as deep copies so callers never share state with the store.
type memClaimRepo struct {
	mu     sync.Mutex
	claims map[string]*claim.Claim
}

func newMemClaimRepo() *memClaimRepo {
	return &memClaimRepo{claims: make(map[string]*claim.Claim)}
}

func cloneClaim(c *claim.Claim) *claim.Claim {
	b, _ := json.Marshal(c)
	var out claim.Claim
	_ = json.Unmarshal(b, &out)
	return &out
}

func (m *memClaimRepo) Create(ctx context.Context, c *claim.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[c.ID] = cloneClaim(c)
	return nil
}

func (m *memClaimRepo) GetByID(ctx context.Context, id string) (*claim.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, port.ErrClaimNotFound
	}
	return cloneClaim(c), nil
}

func (m *memClaimRepo) Update(ctx context.Context, c *claim.Claim, fromVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.claims[c.ID]
	if !ok {
		return port.ErrClaimNotFound
	}
	if stored.Version != fromVersion {
		return port.ErrVersionConflict
	}
	m.claims[c.ID] = cloneClaim(c)
	return nil
}

func (m *memClaimRepo) List(ctx context.Context, filter port.ClaimFilter) ([]*claim.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*claim.Claim, 0, len(m.claims))
	for _, c := range m.claims {
		out = append(out, cloneClaim(c))
	}
	return out, nil
}

// stubOrgService serves a fixed model.
type stubOrgService struct {
	model *org.Model
}

func (s *stubOrgService) Get(ctx context.Context) (*org.Model, error)     { return s.model, nil }
func (s *stubOrgService) Replace(ctx context.Context, m *org.Model) error { return nil }

// stubProposer records calls and returns a canned proposal.
type stubProposer struct {
	mu       sync.Mutex
	calls    []string
	proposal *claim.AccountingProposal
	notify   chan struct{}
}

func newStubProposer(p *claim.AccountingProposal) *stubProposer {
	return &stubProposer{proposal: p, notify: make(chan struct{}, 8)}
}

func (s *stubProposer) Propose(ctx context.Context, c *claim.Claim) *claim.AccountingProposal {
	s.mu.Lock()
	s.calls = append(s.calls, c.ID)
	s.mu.Unlock()
	s.notify <- struct{}{}
	return s.proposal
}

func (s *stubProposer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func completedProposal() *claim.AccountingProposal {
	return &claim.AccountingProposal{
		GLAccount: claim.GLAccountSuggestion{AccountCode: "6420", AccountName: "Travel", Confidence: 0.9},
		APAR:      claim.APARSuggestion{Type: "AP", Counterparty: "Acme", Amount: decimal.NewFromInt(500)},
		Journal: claim.JournalEntry{
			DebitAccount: "6420", DebitAmount: decimal.NewFromInt(500),
			CreditAccount: "2100", CreditAmount: decimal.NewFromInt(500),
		},
		Status:      claim.ProposalCompleted,
		ProcessedAt: time.Now(),
	}
}

func newTestService(repo port.ClaimRepository, proposer port.ProposalGenerator) ClaimService {
	return NewClaimService(repo, &stubOrgService{model: org.Default()}, proposer, noopLogger{})
}

func createClaim(t *testing.T, svc ClaimService, requesterID string, amount int64) *claim.Claim {
	t.Helper()
	c, err := svc.Create(context.Background(), CreateClaimInput{
		RequesterID: requesterID,
		Amount:      decimal.NewFromInt(amount),
		Currency:    "EUR",
		Vendor:      "Acme",
		Description: "flights",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return c
}

func TestClaimService_Create(t *testing.T) {
	repo := newMemClaimRepo()
	svc := newTestService(repo, newStubProposer(completedProposal()))

	c := createClaim(t, svc, "u1", 500)

	if c.ID == "" {
		t.Error("claim has no id")
	}
	if c.Status != claim.StatusSubmitted {
		t.Errorf("status = %v, want %v", c.Status, claim.StatusSubmitted)
	}
	if len(c.Chain) != 3 {
		t.Errorf("chain length = %d, want 3 (requester, manager, finance)", len(c.Chain))
	}

	stored, err := repo.GetByID(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("claim not persisted: %v", err)
	}
	if stored.Vendor != "Acme" {
		t.Errorf("stored vendor = %q, want %q", stored.Vendor, "Acme")
	}
}

func TestClaimService_Create_UnknownRequester(t *testing.T) {
	created := false
	repo := &mockClaimRepo{
		createFn: func(ctx context.Context, c *claim.Claim) error {
			created = true
			return nil
		},
	}
	svc := newTestService(repo, newStubProposer(completedProposal()))

	_, err := svc.Create(context.Background(), CreateClaimInput{
		RequesterID: "ghost",
		Amount:      decimal.NewFromInt(100),
		Currency:    "EUR",
	})
	if !errors.Is(err, claim.ErrRequesterNotFound) {
		t.Errorf("Create() error = %v, want %v", err, claim.ErrRequesterNotFound)
	}
	if created {
		t.Error("repository written despite the failed precondition")
	}
}

func TestClaimService_Create_ExtractionFillsBlanks(t *testing.T) {
	repo := newMemClaimRepo()
	svc := newTestService(repo, newStubProposer(completedProposal()))

	c, err := svc.Create(context.Background(), CreateClaimInput{
		RequesterID: "u1",
		Currency:    "EUR",
		Vendor:      "Typed Vendor", // the captured form wins
		Extracted: &port.ExtractedFields{
			Vendor:      "Extracted Vendor",
			Amount:      "123.45",
			Description: "hotel stay",
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if c.Vendor != "Typed Vendor" {
		t.Errorf("vendor = %q, extraction must not override typed input", c.Vendor)
	}
	if c.Description != "hotel stay" {
		t.Errorf("description = %q, want the extracted value", c.Description)
	}
	if !c.Amount.Amount.Equal(decimal.RequireFromString("123.45")) {
		t.Errorf("amount = %s, want the extracted 123.45", c.Amount.Amount)
	}
}

func TestClaimService_Act_ApprovesAndPersists(t *testing.T) {
	repo := newMemClaimRepo()
	svc := newTestService(repo, newStubProposer(completedProposal()))
	c := createClaim(t, svc, "u1", 500)

	updated, err := svc.Act(context.Background(), c.ID, "u2", claim.DecisionApprove, "ok")
	if err != nil {
		t.Fatalf("Act() error = %v", err)
	}
	if updated.Status != claim.StatusManagerApproved {
		t.Errorf("status = %v, want %v", updated.Status, claim.StatusManagerApproved)
	}
	if updated.Version != c.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, c.Version+1)
	}

	stored, err := repo.GetByID(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != claim.StatusManagerApproved {
		t.Errorf("stored status = %v, want the committed transition", stored.Status)
	}
}

func TestClaimService_Act_UnknownActor(t *testing.T) {
	repo := newMemClaimRepo()
	svc := newTestService(repo, newStubProposer(completedProposal()))
	c := createClaim(t, svc, "u1", 500)

	_, err := svc.Act(context.Background(), c.ID, "ghost", claim.DecisionApprove, "")
	if !errors.Is(err, claim.ErrNotAuthorized) {
		t.Errorf("Act() error = %v, want %v", err, claim.ErrNotAuthorized)
	}
}

func TestClaimService_Act_ClaimNotFound(t *testing.T) {
	repo := newMemClaimRepo()
	svc := newTestService(repo, newStubProposer(completedProposal()))

	_, err := svc.Act(context.Background(), "missing", "u2", claim.DecisionApprove, "")
	if !errors.Is(err, port.ErrClaimNotFound) {
		t.Errorf("Act() error = %v, want %v", err, port.ErrClaimNotFound)
	}
}

// A racing writer commits first; the loser's version check fails, it
// reloads the post-transition state and surfaces the precondition error
// instead of double-applying the action.
func TestClaimService_Act_LoserOfRaceFailsPrecondition(t *testing.T) {
	model := org.Default()
	fresh, err := claim.New("c1", "u1", claim.Money{Amount: decimal.NewFromInt(500), Currency: "EUR"}, model, time.Now())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	manager, _ := model.UserByID("u2")
	transitioned := cloneClaim(fresh)
	if err := transitioned.Act(manager, claim.DecisionApprove, "", time.Now()); err != nil {
		t.Fatalf("Act() error = %v", err)
	}

	gets := 0
	updates := 0
	repo := &mockClaimRepo{
		getByIDFn: func(ctx context.Context, id string) (*claim.Claim, error) {
			gets++
			if gets == 1 {
				// First read still sees the pre-race state.
				return cloneClaim(fresh), nil
			}
			return cloneClaim(transitioned), nil
		},
		updateFn: func(ctx context.Context, c *claim.Claim, fromVersion int64) error {
			updates++
			return port.ErrVersionConflict
		},
	}
	svc := newTestService(repo, newStubProposer(completedProposal()))

	// The same manager races against their own other session: the reloaded
	// state has the manager step approved and the CFO-free chain now waits
	// on finance, so the manager is no longer admitted.
	_, err = svc.Act(context.Background(), "c1", "u2", claim.DecisionApprove, "")
	if !errors.Is(err, claim.ErrNotAuthorized) {
		t.Errorf("Act() error = %v, want %v", err, claim.ErrNotAuthorized)
	}
	if updates != 1 {
		t.Errorf("update attempts = %d, want 1 (loser stops after reload)", updates)
	}
	if gets != 2 {
		t.Errorf("reads = %d, want 2", gets)
	}
}

func waitForProposal(t *testing.T, repo *memClaimRepo, claimID string) *claim.Claim {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("proposal never attached")
		default:
		}
		c, err := repo.GetByID(context.Background(), claimID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if c.Proposal != nil {
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClaimService_Act_ReachingFinanceTriggersProposal(t *testing.T) {
	repo := newMemClaimRepo()
	proposer := newStubProposer(completedProposal())
	svc := newTestService(repo, proposer)
	c := createClaim(t, svc, "u1", 500)

	// Manager approval moves the chain onto the finance step.
	if _, err := svc.Act(context.Background(), c.ID, "u2", claim.DecisionApprove, ""); err != nil {
		t.Fatalf("Act() error = %v", err)
	}

	select {
	case <-proposer.notify:
	case <-time.After(3 * time.Second):
		t.Fatal("proposal generator never invoked")
	}

	stored := waitForProposal(t, repo, c.ID)
	if stored.Proposal.Status != claim.ProposalCompleted {
		t.Errorf("proposal status = %v, want %v", stored.Proposal.Status, claim.ProposalCompleted)
	}
	// The merge is inert metadata: the claim still awaits finance.
	if stored.Status != claim.StatusManagerApproved {
		t.Errorf("status = %v, want %v", stored.Status, claim.StatusManagerApproved)
	}
}

func TestClaimService_Act_NonFinanceApprovalDoesNotTrigger(t *testing.T) {
	repo := newMemClaimRepo()
	proposer := newStubProposer(completedProposal())
	svc := newTestService(repo, proposer)
	c := createClaim(t, svc, "u1", 6000) // adds a CFO step before finance

	if _, err := svc.Act(context.Background(), c.ID, "u2", claim.DecisionApprove, ""); err != nil {
		t.Fatalf("Act() error = %v", err)
	}

	select {
	case <-proposer.notify:
		t.Fatal("proposal triggered before the chain reached finance")
	case <-time.After(100 * time.Millisecond):
	}
	if proposer.callCount() != 0 {
		t.Errorf("proposer calls = %d, want 0", proposer.callCount())
	}
}

func TestClaimService_Act_RejectionDoesNotTrigger(t *testing.T) {
	repo := newMemClaimRepo()
	proposer := newStubProposer(completedProposal())
	svc := newTestService(repo, proposer)
	c := createClaim(t, svc, "u1", 500)

	if _, err := svc.Act(context.Background(), c.ID, "u2", claim.DecisionReject, "no"); err != nil {
		t.Fatalf("Act() error = %v", err)
	}

	select {
	case <-proposer.notify:
		t.Fatal("proposal triggered by a rejection")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClaimService_FinanceApprove(t *testing.T) {
	repo := newMemClaimRepo()
	svc := newTestService(repo, newStubProposer(completedProposal()))
	c := createClaim(t, svc, "u1", 500)

	if _, err := svc.Act(context.Background(), c.ID, "u2", claim.DecisionApprove, ""); err != nil {
		t.Fatalf("manager approve: %v", err)
	}
	waitForProposal(t, repo, c.ID)

	final, err := svc.FinanceApprove(context.Background(), c.ID, "u5", claim.FinancePosting{
		GLAccountCode: "6420",
		CreateAPAR:    true,
		PostJournal:   true,
		Comments:      "posted",
	})
	if err != nil {
		t.Fatalf("FinanceApprove() error = %v", err)
	}
	if final.Status != claim.StatusFinanceApproved {
		t.Errorf("status = %v, want %v", final.Status, claim.StatusFinanceApproved)
	}
}

func TestClaimService_FinanceApprove_UnbalancedJournalBlocks(t *testing.T) {
	unbalanced := completedProposal()
	unbalanced.Journal.CreditAmount = decimal.NewFromInt(499)

	repo := newMemClaimRepo()
	svc := newTestService(repo, newStubProposer(unbalanced))
	c := createClaim(t, svc, "u1", 500)

	if _, err := svc.Act(context.Background(), c.ID, "u2", claim.DecisionApprove, ""); err != nil {
		t.Fatalf("manager approve: %v", err)
	}
	waitForProposal(t, repo, c.ID)

	_, err := svc.FinanceApprove(context.Background(), c.ID, "u5", claim.FinancePosting{PostJournal: true})
	if !errors.Is(err, claim.ErrUnbalancedJournal) {
		t.Errorf("FinanceApprove() error = %v, want %v", err, claim.ErrUnbalancedJournal)
	}

	// The approval itself was blocked, not just the posting.
	stored, _ := repo.GetByID(context.Background(), c.ID)
	if stored.Status != claim.StatusManagerApproved {
		t.Errorf("status = %v, want unchanged %v", stored.Status, claim.StatusManagerApproved)
	}

	// Opting out of the journal posting lets the approval through.
	final, err := svc.FinanceApprove(context.Background(), c.ID, "u5", claim.FinancePosting{CreateAPAR: true})
	if err != nil {
		t.Fatalf("FinanceApprove() without posting error = %v", err)
	}
	if final.Status != claim.StatusFinanceApproved {
		t.Errorf("status = %v, want %v", final.Status, claim.StatusFinanceApproved)
	}
}

func TestClaimService_Views(t *testing.T) {
	repo := newMemClaimRepo()
	svc := newTestService(repo, newStubProposer(completedProposal()))
	c := createClaim(t, svc, "u1", 500)

	pending, err := svc.AwaitingUser(context.Background(), "u2")
	if err != nil {
		t.Fatalf("AwaitingUser() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != c.ID {
		t.Errorf("manager pending view = %d claims, want the new claim", len(pending))
	}

	history, err := svc.ActedOnByUser(context.Background(), "u2")
	if err != nil {
		t.Fatalf("ActedOnByUser() error = %v", err)
	}
	if len(history) != 0 {
		t.Errorf("manager history = %d claims before acting, want 0", len(history))
	}

	if _, err := svc.Act(context.Background(), c.ID, "u2", claim.DecisionApprove, ""); err != nil {
		t.Fatalf("Act() error = %v", err)
	}

	pending, _ = svc.AwaitingUser(context.Background(), "u2")
	if len(pending) != 0 {
		t.Errorf("manager pending view = %d claims after acting, want 0", len(pending))
	}
	history, _ = svc.ActedOnByUser(context.Background(), "u2")
	if len(history) != 1 {
		t.Errorf("manager history = %d claims after acting, want 1", len(history))
	}

	finPending, _ := svc.AwaitingUser(context.Background(), "u5")
	if len(finPending) != 1 {
		t.Errorf("finance pending view = %d claims, want 1", len(finPending))
	}
}

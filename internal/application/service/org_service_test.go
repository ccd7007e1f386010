package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mstancik/expenseflow/internal/application/port"
	"github.com/mstancik/expenseflow/internal/domain/org"
)

type mockOrgRepo struct {
	getFn     func(ctx context.Context) (*org.Model, error)
	replaceFn func(ctx context.Context, model *org.Model) error
}

func (m *mockOrgRepo) Get(ctx context.Context) (*org.Model, error) {
	return m.getFn(ctx)
}

func (m *mockOrgRepo) Replace(ctx context.Context, model *org.Model) error {
	return m.replaceFn(ctx, model)
}

func TestOrgService_Get_FallsBackToSeed(t *testing.T) {
	repo := &mockOrgRepo{
		getFn: func(ctx context.Context) (*org.Model, error) {
			return nil, port.ErrNoOrgModel
		},
	}
	svc := NewOrgService(repo, noopLogger{})

	model, err := svc.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(model.Users) == 0 {
		t.Fatal("seed model has no users")
	}
	if _, ok := model.UserByID("u1"); !ok {
		t.Error("seed model missing the default requester")
	}
}

func TestOrgService_Get_PropagatesOtherErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	repo := &mockOrgRepo{
		getFn: func(ctx context.Context) (*org.Model, error) {
			return nil, boom
		},
	}
	svc := NewOrgService(repo, noopLogger{})

	_, err := svc.Get(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Get() error = %v, want %v", err, boom)
	}
}

func TestOrgService_Replace_SavesNonMonotonicLimits(t *testing.T) {
	var saved *org.Model
	repo := &mockOrgRepo{
		replaceFn: func(ctx context.Context, model *org.Model) error {
			saved = model
			return nil
		},
	}
	svc := NewOrgService(repo, noopLogger{})

	// Limit ordering is the operator's call; the save goes through either way.
	model := org.Default()
	model.Limits.Manager = decimal.NewFromInt(99999)

	if err := svc.Replace(context.Background(), model); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if saved == nil {
		t.Fatal("model was not saved")
	}
	if !saved.Limits.Manager.Equal(decimal.NewFromInt(99999)) {
		t.Errorf("saved manager limit = %s, want the submitted value", saved.Limits.Manager)
	}
}

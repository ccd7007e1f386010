package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mstancik/expenseflow/internal/application/port"
	"github.com/mstancik/expenseflow/internal/domain/org"
)

func TestOrgRepository_GetWithoutModel(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrgRepository(db.DB, zap.NewNop())

	_, err := repo.Get(context.Background())
	if !errors.Is(err, port.ErrNoOrgModel) {
		t.Errorf("Get() error = %v, want %v", err, port.ErrNoOrgModel)
	}
}

func TestOrgRepository_ReplaceAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrgRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	model := org.Default()
	if err := repo.Replace(ctx, model); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Users) != len(model.Users) {
		t.Errorf("users = %d, want %d", len(got.Users), len(model.Users))
	}
	if !got.Limits.CFO.Equal(model.Limits.CFO) {
		t.Errorf("cfo limit = %s, want %s", got.Limits.CFO, model.Limits.CFO)
	}
}

func TestOrgRepository_ReplaceIsWholesale(t *testing.T) {
	db := newTestDB(t)
	repo := NewOrgRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	if err := repo.Replace(ctx, org.Default()); err != nil {
		t.Fatalf("first Replace() error = %v", err)
	}

	// The second save fully supersedes the first, including removed users.
	next := &org.Model{
		Limits: org.Limits{
			Manager: decimal.NewFromInt(2000),
			CFO:     decimal.NewFromInt(8000),
			CEO:     decimal.NewFromInt(20000),
		},
		Users: []org.User{
			{ID: "x1", Name: "Solo Requester", Role: org.RoleRequester},
			{ID: "x2", Name: "Solo Finance", Role: org.RoleFinance},
		},
	}
	if err := repo.Replace(ctx, next); err != nil {
		t.Fatalf("second Replace() error = %v", err)
	}

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Users) != 2 {
		t.Errorf("users = %d, want 2", len(got.Users))
	}
	if _, ok := got.UserByID("u1"); ok {
		t.Error("old user survived the wholesale replace")
	}
	if !got.Limits.Manager.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("manager limit = %s, want 2000", got.Limits.Manager)
	}
}

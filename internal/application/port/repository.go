package port

import (
	"context"
	"errors"

	"github.com/mstancik/expenseflow/internal/domain/claim"
	"github.com/mstancik/expenseflow/internal/domain/org"
)

// ErrVersionConflict is returned by Update when the stored claim's version
// no longer matches the one the caller read. The caller reloads and
// re-checks its preconditions.
var ErrVersionConflict = errors.New("claim was modified concurrently")

// ErrClaimNotFound is returned when no claim exists for the given id.
var ErrClaimNotFound = errors.New("claim not found")

// ErrNoOrgModel is returned when no organization model has been saved yet.
var ErrNoOrgModel = errors.New("no organization model saved")

// ClaimFilter narrows and orders claim listings.
type ClaimFilter struct {
	RequesterID string
	Status      claim.Status
	Search      string // matches vendor, reference or description
	Sort        string // date_desc (default), date_asc, amount_desc, amount_asc
}

// ClaimRepository defines persistence operations for expense claims.
type ClaimRepository interface {
	Create(ctx context.Context, c *claim.Claim) error

	GetByID(ctx context.Context, id string) (*claim.Claim, error)

	// Update persists the claim only if the stored version equals
	// fromVersion, returning ErrVersionConflict otherwise.
	Update(ctx context.Context, c *claim.Claim, fromVersion int64) error

	List(ctx context.Context, filter ClaimFilter) ([]*claim.Claim, error)
}

// OrgRepository defines persistence for the organization model. The model
// is read and replaced wholesale; there is no partial update.
type OrgRepository interface {
	Get(ctx context.Context) (*org.Model, error)
	Replace(ctx context.Context, model *org.Model) error
}

// Package repository implements the persistence ports over sqlite.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mstancik/expenseflow/internal/application/port"
	"github.com/mstancik/expenseflow/internal/domain/claim"
)

// ClaimRepository implements port.ClaimRepository. The aggregate is stored
// as a JSON document with the queryable columns (status, requester,
// amount, version) denormalized beside it. The version column carries the
// compare-and-swap that serializes concurrent transitions.
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) port.ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new claim.
func (r *ClaimRepository) Create(ctx context.Context, c *claim.Claim) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal claim: %w", err)
	}

	query := `
		INSERT INTO claims (
			id, requester_id, status, amount, currency,
			current_step, body, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.RequesterID,
		c.Status.String(),
		c.Amount.Amount.String(),
		c.Amount.Currency,
		c.CurrentStep,
		string(body),
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.String("claim_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

// GetByID retrieves a claim by id.
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*claim.Claim, error) {
	var body string
	err := r.db.QueryRowContext(ctx, "SELECT body FROM claims WHERE id = ?", id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, port.ErrClaimNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.String("claim_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return unmarshalClaim(body)
}

// Update persists the claim guarded by the version it was read at. Zero
// affected rows means another writer committed in between.
func (r *ClaimRepository) Update(ctx context.Context, c *claim.Claim, fromVersion int64) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal claim: %w", err)
	}

	query := `
		UPDATE claims
		SET status = ?, amount = ?, currency = ?, current_step = ?,
			body = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		c.Status.String(),
		c.Amount.Amount.String(),
		c.Amount.Currency,
		c.CurrentStep,
		string(body),
		c.Version,
		c.UpdatedAt,
		c.ID,
		fromVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update claim", zap.String("claim_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to update claim: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return port.ErrVersionConflict
	}
	return nil
}

// List retrieves claims matching the filter.
func (r *ClaimRepository) List(ctx context.Context, filter port.ClaimFilter) ([]*claim.Claim, error) {
	query := "SELECT body FROM claims"
	var conds []string
	var args []interface{}

	if filter.RequesterID != "" {
		conds = append(conds, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status.String())
	}
	if filter.Search != "" {
		conds = append(conds, "(body LIKE ? ESCAPE '\\')")
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	switch filter.Sort {
	case "date_asc":
		query += " ORDER BY created_at ASC"
	case "amount_desc":
		query += " ORDER BY CAST(amount AS REAL) DESC"
	case "amount_asc":
		query += " ORDER BY CAST(amount AS REAL) ASC"
	default:
		query += " ORDER BY created_at DESC"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	claims := make([]*claim.Claim, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		c, err := unmarshalClaim(body)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func unmarshalClaim(body string) (*claim.Claim, error) {
	var c claim.Claim
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claim: %w", err)
	}
	return &c, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

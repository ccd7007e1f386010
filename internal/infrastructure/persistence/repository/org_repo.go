package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mstancik/expenseflow/internal/application/port"
	"github.com/mstancik/expenseflow/internal/domain/org"
)

// OrgRepository implements port.OrgRepository. The organization model is a
// single JSON row replaced wholesale on save.
type OrgRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrgRepository creates a new organization model repository
func NewOrgRepository(db *sql.DB, logger *zap.Logger) port.OrgRepository {
	return &OrgRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the saved model, or port.ErrNoOrgModel when none has been
// saved yet.
func (r *OrgRepository) Get(ctx context.Context) (*org.Model, error) {
	var body string
	err := r.db.QueryRowContext(ctx, "SELECT body FROM org_model WHERE id = 1").Scan(&body)
	if err == sql.ErrNoRows {
		return nil, port.ErrNoOrgModel
	}
	if err != nil {
		r.logger.Error("Failed to get organization model", zap.Error(err))
		return nil, fmt.Errorf("failed to get organization model: %w", err)
	}

	var model org.Model
	if err := json.Unmarshal([]byte(body), &model); err != nil {
		return nil, fmt.Errorf("failed to unmarshal organization model: %w", err)
	}
	return &model, nil
}

// Replace saves the model wholesale.
func (r *OrgRepository) Replace(ctx context.Context, model *org.Model) error {
	body, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal organization model: %w", err)
	}

	query := `
		INSERT INTO org_model (id, body, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, string(body), time.Now()); err != nil {
		r.logger.Error("Failed to replace organization model", zap.Error(err))
		return fmt.Errorf("failed to replace organization model: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"errors"

	"github.com/mstancik/expenseflow/internal/application/port"
	"github.com/mstancik/expenseflow/internal/domain/org"
)

// OrgService reads and replaces the organization model. Replacement is
// wholesale: the incoming model becomes the configuration in its entirety.
type OrgService interface {
	Get(ctx context.Context) (*org.Model, error)
	Replace(ctx context.Context, model *org.Model) error
}

type orgServiceImpl struct {
	orgs   port.OrgRepository
	logger Logger
}

// NewOrgService creates a new OrgService.
func NewOrgService(orgs port.OrgRepository, logger Logger) OrgService {
	return &orgServiceImpl{orgs: orgs, logger: logger}
}

// Get returns the saved model, or the seed model when none exists.
func (s *orgServiceImpl) Get(ctx context.Context) (*org.Model, error) {
	model, err := s.orgs.Get(ctx)
	if errors.Is(err, port.ErrNoOrgModel) {
		return org.Default(), nil
	}
	if err != nil {
		s.logger.Error("Failed to load organization model", "error", err)
		return nil, err
	}
	return model, nil
}

// Replace saves the model wholesale. Limit ordering is the caller's
// responsibility; a non-monotonic configuration is logged but not refused.
func (s *orgServiceImpl) Replace(ctx context.Context, model *org.Model) error {
	if err := model.Limits.Validate(); err != nil {
		s.logger.Info("Saving organization model with non-monotonic limits", "detail", err.Error())
	}
	if err := s.orgs.Replace(ctx, model); err != nil {
		s.logger.Error("Failed to replace organization model", "error", err)
		return err
	}
	s.logger.Info("Organization model replaced", "users", len(model.Users))
	return nil
}

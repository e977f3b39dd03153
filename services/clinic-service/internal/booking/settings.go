package booking

import (
	"context"

	"github.com/oralflow/oralflow/services/clinic-service/internal/apperr"
	"github.com/oralflow/oralflow/services/clinic-service/internal/model"
	"github.com/oralflow/oralflow/services/clinic-service/internal/policy"
)

// Policy returns the policy in force, the defaults when nothing was saved.
func (s *Service) Policy(ctx context.Context) (policy.Policy, error) {
	return s.policy.Current(ctx)
}

// SavePolicy validates and stores the policy. Only admins may change it.
func (s *Service) SavePolicy(ctx context.Context, actor model.Actor, p policy.Policy) (policy.Policy, error) {
	if !actor.Role.IsAdmin() {
		return policy.Policy{}, apperr.Forbidden("No tienes permisos para esta acción.")
	}
	if err := p.Validate(); err != nil {
		return policy.Policy{}, err
	}
	if err := s.settings.SavePolicy(ctx, p); err != nil {
		return policy.Policy{}, err
	}
	s.logger.Info("policy updated", "user_id", actor.UserID)
	return p, nil
}

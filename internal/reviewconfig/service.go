package reviewconfig

import (
	"context"
	"log/slog"

	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
	"txgate/pkg/requestcontext"
)

// Update describes a partial config change. Nil fields are left untouched;
// a non-nil RoleRules or MandatoryCases replaces the whole set.
type Update struct {
	Enabled        *bool
	Thresholds     *Thresholds
	RoleRules      map[id.Role]RoleRule
	MandatoryCases []id.CaseKind
}

// Service owns config resolution and updates. Every update builds a fresh
// snapshot from a clone and installs it with a version check, so readers
// holding the previous snapshot are never affected.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Resolve returns the config governing a transaction scope, falling back
// from branch-level to country-level to the organization default. Returns
// CodeNotFound when the organization has no config at all; the decision
// engine treats that as auto-processing disabled.
func (s *Service) Resolve(ctx context.Context, scope Scope) (*ReviewConfig, error) {
	candidates := []Scope{scope}
	if !scope.BranchID.IsZero() {
		candidates = append(candidates, Scope{OrganizationID: scope.OrganizationID, Country: scope.Country})
	}
	if scope.Country != "" {
		candidates = append(candidates, Scope{OrganizationID: scope.OrganizationID})
	}

	for _, c := range candidates {
		cfg, err := s.store.GetExact(ctx, c)
		if err == nil {
			return cfg, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no review config for organization")
}

// Get returns the config for the exact scope, without fallback.
func (s *Service) Get(ctx context.Context, scope Scope) (*ReviewConfig, error) {
	return s.store.GetExact(ctx, scope)
}

// List returns every configured scope for an organization.
func (s *Service) List(ctx context.Context, orgID id.OrganizationID) ([]*ReviewConfig, error) {
	return s.store.ListByOrganization(ctx, orgID)
}

// Apply updates the scope's config, creating it when absent. Version is
// incremented on every successful call. A concurrent update surfaces as
// CodeConflict and the caller retries against the fresh version.
func (s *Service) Apply(ctx context.Context, scope Scope, upd Update) (*ReviewConfig, error) {
	current, err := s.store.GetExact(ctx, scope)
	expectedVersion := int64(0)
	switch {
	case err == nil:
		expectedVersion = current.Version
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		current = Disabled(scope)
	default:
		return nil, err
	}

	next := current.Clone()
	next.Version = current.Version + 1
	if upd.Enabled != nil {
		next.AutoProcessingEnabled = *upd.Enabled
	}
	if upd.Thresholds != nil {
		next.Thresholds = *upd.Thresholds
	}
	if upd.RoleRules != nil {
		next.RoleRules = make(map[id.Role]RoleRule, len(upd.RoleRules))
		for role, rule := range upd.RoleRules {
			next.RoleRules[role] = rule
		}
	}
	if upd.MandatoryCases != nil {
		next.MandatoryCases = make(map[id.CaseKind]bool, len(upd.MandatoryCases))
		for _, kind := range upd.MandatoryCases {
			next.MandatoryCases[kind] = true
		}
	}
	next.LastModifiedBy = requestcontext.ActorID(ctx)
	next.LastModifiedAt = requestcontext.Now(ctx)

	if err := s.store.Save(ctx, next, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review config updated",
		"organization_id", scope.OrganizationID.String(),
		"branch_id", scope.BranchID.String(),
		"country", scope.Country,
		"version", next.Version,
		"enabled", next.AutoProcessingEnabled,
		"actor_id", next.LastModifiedBy.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return next, nil
}

// SetEnabled toggles auto-processing for the scope.
func (s *Service) SetEnabled(ctx context.Context, scope Scope, enabled bool) (*ReviewConfig, error) {
	return s.Apply(ctx, scope, Update{Enabled: &enabled})
}

package reviewconfig

import (
	"context"
	"sync"

	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
)

// InMemoryStore holds config snapshots keyed by scope. Published snapshots
// are never mutated; Save installs a fresh pointer under the lock.
type InMemoryStore struct {
	mu      sync.RWMutex
	configs map[string]*ReviewConfig
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{configs: make(map[string]*ReviewConfig)}
}

func (s *InMemoryStore) GetExact(_ context.Context, scope Scope) (*ReviewConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[scope.Key()]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "review config not found")
	}
	return cfg, nil
}

func (s *InMemoryStore) Save(_ context.Context, cfg *ReviewConfig, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.configs[cfg.Scope.Key()]
	switch {
	case !exists && expectedVersion != 0:
		return dErrors.New(dErrors.CodeConflict, "review config was deleted concurrently")
	case exists && current.Version != expectedVersion:
		return dErrors.Newf(dErrors.CodeConflict, "review config version changed: have %d, expected %d", current.Version, expectedVersion)
	}

	s.configs[cfg.Scope.Key()] = cfg
	return nil
}

func (s *InMemoryStore) ListByOrganization(_ context.Context, orgID id.OrganizationID) ([]*ReviewConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ReviewConfig
	for _, cfg := range s.configs {
		if cfg.Scope.OrganizationID == orgID {
			out = append(out, cfg)
		}
	}
	return out, nil
}

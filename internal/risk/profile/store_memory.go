package profile

import (
	"context"
	"sync"
	"time"

	id "txgate/pkg/domain"
)

// In-memory implementations for development and unit tests. They favor
// clarity over performance.

type profileKey struct {
	org       id.OrganizationID
	submitter id.ReviewerID
}

// InMemoryStore keeps spending profiles in a map.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[profileKey]Profile
}

// NewInMemoryStore creates an empty in-memory profile store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[profileKey]Profile)}
}

func (s *InMemoryStore) SubmitterProfile(_ context.Context, orgID id.OrganizationID, submitterID id.ReviewerID) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileKey{orgID, submitterID}]
	if !ok {
		return Profile{}, ErrNoProfile
	}
	return p, nil
}

func (s *InMemoryStore) RecordTransaction(_ context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := profileKey{orgID, submitterID}
	p := s.profiles[key]
	p.TransactionCount++
	p.TotalAmount += amount
	if amount > p.MaxAmount {
		p.MaxAmount = amount
	}
	p.AvgAmount = p.TotalAmount / p.TransactionCount
	s.profiles[key] = p
	return nil
}

// InMemoryVelocityStore tracks submission timestamps per submitter in a
// sliding window.
type InMemoryVelocityStore struct {
	mu         sync.Mutex
	timestamps map[profileKey][]time.Time
}

// NewInMemoryVelocityStore creates an empty in-memory velocity store.
func NewInMemoryVelocityStore() *InMemoryVelocityStore {
	return &InMemoryVelocityStore{timestamps: make(map[profileKey][]time.Time)}
}

func (s *InMemoryVelocityStore) RecordAndCount(_ context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := profileKey{orgID, submitterID}
	now := time.Now()
	cutoff := now.Add(-window)

	kept := s.timestamps[key][:0]
	for _, ts := range s.timestamps[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	s.timestamps[key] = kept

	return len(kept), nil
}

package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
)

// InMemoryStore keeps queue items in process memory. The map holds private
// copies; Get and List return clones so callers can never mutate stored
// state without going through Update.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[id.ItemID]*Item
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[id.ItemID]*Item)}
}

func (s *InMemoryStore) Insert(_ context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "queue item already exists")
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, itemID id.ItemID) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "queue item not found")
	}
	return item.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, item *Item, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[item.ID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "queue item not found")
	}
	if current.Version != expectedVersion {
		return dErrors.Newf(dErrors.CodeConflict, "queue item version changed: have %d, expected %d", current.Version, expectedVersion)
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter ListFilter) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Item
	for _, item := range s.items {
		if matches(item, filter) {
			out = append(out, item.Clone())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return paginate(out, filter.Offset, filter.Limit), nil
}

func matches(item *Item, filter ListFilter) bool {
	if !filter.OrganizationID.IsZero() && item.Transaction.OrganizationID != filter.OrganizationID {
		return false
	}
	if filter.Status != "" && item.Status != filter.Status {
		return false
	}
	if filter.Priority != "" && item.Priority != filter.Priority {
		return false
	}
	if !filter.AssignedTo.IsZero() && item.AssignedTo != filter.AssignedTo {
		return false
	}
	if filter.OverdueOnly && !item.Overdue(filter.Now) {
		return false
	}
	return true
}

func paginate(items []*Item, offset, limit int) []*Item {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (s *InMemoryStore) Stats(_ context.Context, orgID id.OrganizationID, now time.Time) (StatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		ByStatus:   make(map[id.Status]int),
		ByPriority: make(map[id.Priority]int),
		ByReason:   make(map[id.Reason]int),
	}
	for _, item := range s.items {
		if item.Transaction.OrganizationID != orgID {
			continue
		}
		snap.ByStatus[item.Status]++
		snap.ByPriority[item.Priority]++
		snap.ByReason[item.Reason]++
		if item.Overdue(now) {
			snap.OverdueCount++
		}
		switch item.Status {
		case id.StatusApproved:
			snap.ApprovedCount++
		case id.StatusRejected:
			snap.RejectedCount++
		default:
			continue
		}
		if !item.DecidedAt.IsZero() {
			snap.SumTimeToDecision += item.DecidedAt.Sub(item.CreatedAt)
		}
	}
	return snap, nil
}

func (s *InMemoryStore) ReviewerLoads(_ context.Context, orgID id.OrganizationID) (map[id.ReviewerID]ReviewerLoad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loads := make(map[id.ReviewerID]ReviewerLoad)
	for _, item := range s.items {
		if item.Transaction.OrganizationID != orgID || item.AssignedTo.IsZero() {
			continue
		}
		load := loads[item.AssignedTo]
		if item.Status == id.StatusInProgress {
			load.Open++
		}
		if item.UpdatedAt.After(load.LastAssignedAt) {
			load.LastAssignedAt = item.UpdatedAt
		}
		loads[item.AssignedTo] = load
	}
	return loads, nil
}

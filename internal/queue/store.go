package queue

import (
	"context"
	"time"

	id "txgate/pkg/domain"
)

// Store persists review queue items.
//
// Update is a compare-and-swap: it writes the item only when the stored
// version equals expectedVersion and returns CodeConflict otherwise. Inside a
// transition transaction this is what guarantees at most one writer wins.
type Store interface {
	Insert(ctx context.Context, item *Item) error
	Get(ctx context.Context, itemID id.ItemID) (*Item, error)
	Update(ctx context.Context, item *Item, expectedVersion int64) error

	// List returns matching items ordered by priority rank, then enqueue
	// time (FIFO within a priority).
	List(ctx context.Context, filter ListFilter) ([]*Item, error)

	// ReviewerLoads returns open (in_progress) item counts and last
	// assignment times per reviewer for the organization.
	ReviewerLoads(ctx context.Context, orgID id.OrganizationID) (map[id.ReviewerID]ReviewerLoad, error)

	// Stats aggregates the organization's queue for reporting. now is the
	// reference time for overdue counting.
	Stats(ctx context.Context, orgID id.OrganizationID, now time.Time) (StatsSnapshot, error)
}

package reviewconfig

import (
	"context"

	id "txgate/pkg/domain"
)

// Store persists versioned config snapshots. Save replaces the whole config
// for a scope atomically: expectedVersion is the version the caller read, 0
// for a create. A mismatch returns CodeConflict and the caller re-reads.
type Store interface {
	// GetExact returns the config for the exact scope, CodeNotFound if none.
	GetExact(ctx context.Context, scope Scope) (*ReviewConfig, error)
	Save(ctx context.Context, cfg *ReviewConfig, expectedVersion int64) error
	ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*ReviewConfig, error)
}

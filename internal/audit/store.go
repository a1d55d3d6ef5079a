package audit

import (
	"context"

	id "txgate/pkg/domain"
)

// Store persists the audit trail. Append must participate in the caller's
// transaction when one is carried on the context, so that a queue transition
// and its audit entry commit or roll back together.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	HistoryByItem(ctx context.Context, itemID id.ItemID) ([]Entry, error)
	HistoryByTransaction(ctx context.Context, txnID id.TransactionID) ([]Entry, error)
	ListRecent(ctx context.Context, orgID id.OrganizationID, limit int) ([]Entry, error)
}

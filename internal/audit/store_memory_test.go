package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txgate/internal/audit"
	id "txgate/pkg/domain"
)

func TestInMemoryStore_HistoryByItem(t *testing.T) {
	ctx := context.Background()
	store := audit.NewInMemoryStore()

	itemID := id.NewItemID()
	other := id.NewItemID()
	txnID := id.TransactionID(uuid.New())
	now := time.Now()

	require.NoError(t, store.Append(ctx, audit.Entry{
		ItemID: itemID, TransactionID: txnID, Action: audit.ActionQueued,
		Timestamp: now, AfterStatus: id.StatusPending,
	}))
	require.NoError(t, store.Append(ctx, audit.Entry{
		ItemID: itemID, TransactionID: txnID, Action: audit.ActionAssigned,
		Timestamp: now.Add(time.Minute), BeforeStatus: id.StatusPending, AfterStatus: id.StatusInProgress,
	}))
	require.NoError(t, store.Append(ctx, audit.Entry{
		ItemID: other, Action: audit.ActionQueued, Timestamp: now,
	}))

	history, err := store.HistoryByItem(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, audit.ActionQueued, history[0].Action)
	assert.Equal(t, audit.ActionAssigned, history[1].Action)

	byTxn, err := store.HistoryByTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Len(t, byTxn, 2)
}

func TestInMemoryStore_ListRecent(t *testing.T) {
	ctx := context.Background()
	store := audit.NewInMemoryStore()
	orgID := id.OrganizationID(uuid.New())
	base := time.Now()

	for i := range 5 {
		require.NoError(t, store.Append(ctx, audit.Entry{
			ItemID:         id.NewItemID(),
			OrganizationID: orgID,
			Action:         audit.ActionQueued,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := store.ListRecent(ctx, orgID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].Timestamp.After(recent[1].Timestamp))
	assert.True(t, recent[1].Timestamp.After(recent[2].Timestamp))
}

func TestInMemoryStore_AppendCopiesDetails(t *testing.T) {
	ctx := context.Background()
	store := audit.NewInMemoryStore()
	itemID := id.NewItemID()

	details := map[string]string{"reason": "high_risk"}
	require.NoError(t, store.Append(ctx, audit.Entry{ItemID: itemID, Action: audit.ActionQueued, Details: details}))
	details["reason"] = "mutated"

	history, err := store.HistoryByItem(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "high_risk", history[0].Details["reason"])
}

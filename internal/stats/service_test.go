package stats_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txgate/internal/audit"
	"txgate/internal/policy"
	"txgate/internal/queue"
	"txgate/internal/stats"
	id "txgate/pkg/domain"
	"txgate/pkg/requestcontext"
	"txgate/pkg/testutil"
)

func TestRollup(t *testing.T) {
	store := queue.NewInMemoryStore()
	svc := queue.NewService(store, audit.NewInMemoryStore(), queue.NewMemoryTxRunner(), nil, nil, nil, slog.New(slog.DiscardHandler))
	statsSvc := stats.NewService(store, slog.New(slog.DiscardHandler))

	orgID := id.OrganizationID(uuid.New())
	reviewer := id.ReviewerID(uuid.New())
	base := time.Now().Truncate(time.Second)

	enqueue := func(priority id.Priority, reason id.Reason) *queue.Item {
		txn := id.TransactionContext{
			ID:             id.TransactionID(uuid.New()),
			OrganizationID: orgID,
			SubmitterID:    id.ReviewerID(uuid.New()),
			Amount:         10_000,
			Currency:       "USD",
			SubmitterRole:  "accountant",
		}
		ctx := requestcontext.WithTime(context.Background(), base)
		item, err := svc.Enqueue(ctx, txn, policy.Decision{
			RequiresReview: true,
			Reason:         reason,
			Priority:       priority,
		})
		require.NoError(t, err)
		return item
	}

	decide := func(item *queue.Item, approve bool, at time.Time) {
		ctx := testutil.ActorContext(context.Background(), reviewer, false)
		ctx = requestcontext.WithTime(ctx, at)
		var err error
		if approve {
			_, err = svc.Approve(ctx, item.ID, "", 0)
		} else {
			_, err = svc.Reject(ctx, item.ID, "", 0)
		}
		require.NoError(t, err)
	}

	// Three decided (two approved, one rejected), one pending critical that
	// is overdue at the reference time, one pending low that is not.
	decide(enqueue(id.PriorityHigh, id.ReasonHighRisk), true, base.Add(1*time.Hour))
	decide(enqueue(id.PriorityMedium, id.ReasonAmountExceeded), true, base.Add(2*time.Hour))
	decide(enqueue(id.PriorityMedium, id.ReasonAmountExceeded), false, base.Add(3*time.Hour))
	enqueue(id.PriorityCritical, id.ReasonHighFraudConfidence) // 2h SLA
	enqueue(id.PriorityLow, id.ReasonRoleRestricted)           // 72h SLA

	ctx := requestcontext.WithTime(context.Background(), base.Add(4*time.Hour))
	rollup, err := statsSvc.Rollup(ctx, orgID)
	require.NoError(t, err)

	assert.Equal(t, 2, rollup.ByStatus[id.StatusApproved])
	assert.Equal(t, 1, rollup.ByStatus[id.StatusRejected])
	assert.Equal(t, 2, rollup.ByStatus[id.StatusPending])
	assert.Equal(t, 2, rollup.ByPriority[id.PriorityMedium])
	assert.Equal(t, 2, rollup.ByReason[id.ReasonAmountExceeded])

	assert.Equal(t, 3, rollup.Decided)
	assert.InDelta(t, 2.0/3.0, rollup.ApprovalRate, 1e-9)
	assert.Equal(t, 2*time.Hour, rollup.AvgTimeToDecision)
	assert.Equal(t, 1, rollup.Overdue)
}

func TestRollup_EmptyOrganization(t *testing.T) {
	store := queue.NewInMemoryStore()
	statsSvc := stats.NewService(store, slog.New(slog.DiscardHandler))

	rollup, err := statsSvc.Rollup(context.Background(), id.OrganizationID(uuid.New()))
	require.NoError(t, err)
	assert.Zero(t, rollup.Decided)
	assert.Zero(t, rollup.ApprovalRate)
	assert.Zero(t, rollup.AvgTimeToDecision)
	assert.Zero(t, rollup.Overdue)
}

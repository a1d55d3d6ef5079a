package queue_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contracts "txgate/contracts/events"
	"txgate/internal/audit"
	"txgate/internal/policy"
	"txgate/internal/queue"
	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
	"txgate/pkg/requestcontext"
	"txgate/pkg/testutil"
)

// recordingEmitter captures emitted envelopes for assertions.
type recordingEmitter struct {
	mu        sync.Mutex
	envelopes []contracts.Envelope
}

func (e *recordingEmitter) Emit(env contracts.Envelope) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.envelopes = append(e.envelopes, env)
}

func (e *recordingEmitter) types() []contracts.Type {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]contracts.Type, 0, len(e.envelopes))
	for _, env := range e.envelopes {
		out = append(out, env.Type)
	}
	return out
}

type profileRecord struct {
	orgID       id.OrganizationID
	submitterID id.ReviewerID
	amount      int64
}

type recordingProfiles struct {
	mu      sync.Mutex
	records []profileRecord
}

func (p *recordingProfiles) RecordTransaction(_ context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, profileRecord{orgID: orgID, submitterID: submitterID, amount: amount})
	return nil
}

type fixture struct {
	service  *queue.Service
	auditLog *audit.InMemoryStore
	emitter  *recordingEmitter
	profiles *recordingProfiles
}

func newFixture() *fixture {
	auditLog := audit.NewInMemoryStore()
	emitter := &recordingEmitter{}
	profiles := &recordingProfiles{}
	service := queue.NewService(
		queue.NewInMemoryStore(),
		auditLog,
		queue.NewMemoryTxRunner(),
		emitter,
		profiles,
		nil,
		slog.New(slog.DiscardHandler),
	)
	return &fixture{service: service, auditLog: auditLog, emitter: emitter, profiles: profiles}
}

func newQueueTxn() id.TransactionContext {
	return id.TransactionContext{
		ID:              id.TransactionID(uuid.New()),
		OrganizationID:  id.OrganizationID(uuid.New()),
		SubmitterID:     id.ReviewerID(uuid.New()),
		Amount:          25_000,
		Currency:        "USD",
		SubmitterRole:   "accountant",
		RiskScore:       40,
		FraudConfidence: 10,
	}
}

func reviewDecision(priority id.Priority) policy.Decision {
	return policy.Decision{
		RequiresReview: true,
		Reason:         id.ReasonHighRisk,
		Priority:       priority,
		ConfigVersion:  3,
	}
}

func actorCtx(reviewerID id.ReviewerID) context.Context {
	return testutil.ActorContext(context.Background(), reviewerID, false)
}

func adminCtx(reviewerID id.ReviewerID) context.Context {
	return testutil.ActorContext(context.Background(), reviewerID, true)
}

func TestEnqueue_CreatesPendingItemWithSLA(t *testing.T) {
	f := newFixture()
	txn := newQueueTxn()
	now := time.Now().Truncate(time.Second)
	ctx := requestcontext.WithTime(context.Background(), now)

	item, err := f.service.Enqueue(ctx, txn, reviewDecision(id.PriorityCritical))
	require.NoError(t, err)

	assert.Equal(t, id.StatusPending, item.Status)
	assert.Equal(t, int64(1), item.Version)
	assert.Equal(t, id.ReasonHighRisk, item.Reason)
	assert.Equal(t, int64(3), item.ConfigVersion)
	assert.Equal(t, now.Add(2*time.Hour), item.SLADeadline)

	history, err := f.auditLog.HistoryByItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, audit.ActionQueued, history[0].Action)
	assert.Equal(t, id.StatusPending, history[0].AfterStatus)
}

func TestEnqueue_SnapshotIsIsolatedFromCaller(t *testing.T) {
	f := newFixture()
	txn := newQueueTxn()
	txn.MandatoryCases = []id.CaseKind{id.CaseNewVendor}

	item, err := f.service.Enqueue(context.Background(), txn, reviewDecision(id.PriorityHigh))
	require.NoError(t, err)

	txn.MandatoryCases[0] = id.CaseRoundAmount

	got, err := f.service.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, []id.CaseKind{id.CaseNewVendor}, got.Transaction.MandatoryCases)
}

func TestAssign_ClaimsPendingItem(t *testing.T) {
	f := newFixture()
	reviewer := id.ReviewerID(uuid.New())

	item, err := f.service.Enqueue(context.Background(), newQueueTxn(), reviewDecision(id.PriorityMedium))
	require.NoError(t, err)

	assigned, err := f.service.Assign(actorCtx(reviewer), item.ID, reviewer, item.Version)
	require.NoError(t, err)
	assert.Equal(t, id.StatusInProgress, assigned.Status)
	assert.Equal(t, reviewer, assigned.AssignedTo)
	assert.Equal(t, item.Version+1, assigned.Version)

	// A second claim must fail: the item is no longer pending.
	_, err = f.service.Assign(actorCtx(reviewer), item.ID, id.ReviewerID(uuid.New()), assigned.Version)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestAssign_ConcurrentClaimsAtMostOneWins(t *testing.T) {
	f := newFixture()
	item, err := f.service.Enqueue(context.Background(), newQueueTxn(), reviewDecision(id.PriorityHigh))
	require.NoError(t, err)

	const claimers = 16
	var (
		wg        sync.WaitGroup
		successes int
		mu        sync.Mutex
	)
	for range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reviewer := id.ReviewerID(uuid.New())
			_, err := f.service.Assign(actorCtx(reviewer), item.ID, reviewer, item.Version)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !dErrors.HasCode(err, dErrors.CodeConflict) && !dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	// Exactly one assignment entry in the trail, whoever won.
	history, err := f.auditLog.HistoryByItem(context.Background(), item.ID)
	require.NoError(t, err)
	var assignedEntries int
	for _, e := range history {
		if e.Action == audit.ActionAssigned {
			assignedEntries++
		}
	}
	assert.Equal(t, 1, assignedEntries)
}

func TestApprove_FastTrackFromPending(t *testing.T) {
	f := newFixture()
	reviewer := id.ReviewerID(uuid.New())

	item, err := f.service.Enqueue(context.Background(), newQueueTxn(), reviewDecision(id.PriorityLow))
	require.NoError(t, err)

	approved, err := f.service.Approve(actorCtx(reviewer), item.ID, "looks fine", item.Version)
	require.NoError(t, err)
	assert.Equal(t, id.StatusApproved, approved.Status)
	assert.Equal(t, reviewer, approved.ReviewedBy)
	assert.Equal(t, "looks fine", approved.ReviewerNote)
	assert.False(t, approved.DecidedAt.IsZero())
}

func TestApprove_FeedsSubmitterProfile(t *testing.T) {
	f := newFixture()
	reviewer := id.ReviewerID(uuid.New())
	txn := newQueueTxn()

	item, err := f.service.Enqueue(context.Background(), txn, reviewDecision(id.PriorityLow))
	require.NoError(t, err)

	_, err = f.service.Approve(actorCtx(reviewer), item.ID, "verified", item.Version)
	require.NoError(t, err)

	require.Len(t, f.profiles.records, 1)
	rec := f.profiles.records[0]
	assert.Equal(t, txn.OrganizationID, rec.orgID)
	assert.Equal(t, txn.SubmitterID, rec.submitterID)
	assert.Equal(t, txn.Amount, rec.amount)
}

func TestReject_DoesNotFeedSubmitterProfile(t *testing.T) {
	f := newFixture()
	reviewer := id.ReviewerID(uuid.New())

	item, err := f.service.Enqueue(context.Background(), newQueueTxn(), reviewDecision(id.PriorityLow))
	require.NoError(t, err)

	_, err = f.service.Reject(actorCtx(reviewer), item.ID, "suspicious", item.Version)
	require.NoError(t, err)

	assert.Empty(t, f.profiles.records)
}

func TestApprove_OnlyAssignedReviewerOrAdmin(t *testing.T) {
	f := newFixture()
	assigned := id.ReviewerID(uuid.New())
	other := id.ReviewerID(uuid.New())
	admin := id.ReviewerID(uuid.New())

	item, err := f.service.Enqueue(context.Background(), newQueueTxn(), reviewDecision(id.PriorityHigh))
	require.NoError(t, err)
	claimed, err := f.service.Assign(actorCtx(assigned), item.ID, assigned, 0)
	require.NoError(t, err)

	_, err = f.service.Approve(actorCtx(other), item.ID, "", claimed.Version)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	// An admin may decide an item assigned to someone else.
	decided, err := f.service.Reject(adminCtx(admin), item.ID, "overruled", claimed.Version)
	require.NoError(t, err)
	assert.Equal(t, id.StatusRejected, decided.Status)
	assert.Equal(t, admin, decided.ReviewedBy)
}

func TestReject_StaleVersionConflicts(t *testing.T) {
	f := newFixture()
	reviewer := id.ReviewerID(uuid.New())

	item, err := f.service.Enqueue(context.Background(), newQueueTxn(), reviewDecision(id.PriorityMedium))
	require.NoError(t, err)
	_, err = f.service.Assign(actorCtx(reviewer), item.ID, reviewer, item.Version)
	require.NoError(t, err)

	// Client still holds version 1 from before the assignment.
	_, err = f.service.Reject(actorCtx(reviewer), item.ID, "stale", item.Version)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestEscalate_RequiresInProgress(t *testing.T) {
	f := newFixture()
	reviewer := id.ReviewerID(uuid.New())

	item, err := f.service.Enqueue(context.Background(), newQueueTxn(), reviewDecision(id.PriorityHigh))
	require.NoError(t, err)

	_, err = f.service.Escalate(actorCtx(reviewer), item.ID, "needs senior eyes", 0)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = f.service.Assign(actorCtx(reviewer), item.ID, reviewer, 0)
	require.NoError(t, err)
	escalated, err := f.service.Escalate(actorCtx(reviewer), item.ID, "needs senior eyes", 0)
	require.NoError(t, err)
	assert.Equal(t, id.StatusEscalated, escalated.Status)

	// Escalated is terminal.
	_, err = f.service.Approve(adminCtx(id.ReviewerID(uuid.New())), item.ID, "", 0)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func TestRollback_AdminOnlyAndAuditTrailComplete(t *testing.T) {
	f := newFixture()
	reviewer := id.ReviewerID(uuid.New())
	admin := id.ReviewerID(uuid.New())

	item, err := f.service.Enqueue(context.Background(), newQueueTxn(), reviewDecision(id.PriorityMedium))
	require.NoError(t, err)
	_, err = f.service.Assign(actorCtx(reviewer), item.ID, reviewer, 0)
	require.NoError(t, err)
	_, err = f.service.Approve(actorCtx(reviewer), item.ID, "ok", 0)
	require.NoError(t, err)

	_, err = f.service.Rollback(actorCtx(reviewer), item.ID, "changed my mind", 0)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	rolled, err := f.service.Rollback(adminCtx(admin), item.ID, "fraud report received", 0)
	require.NoError(t, err)
	assert.Equal(t, id.StatusInProgress, rolled.Status)
	assert.Equal(t, reviewer, rolled.AssignedTo)
	assert.True(t, rolled.ReviewedBy.IsZero())
	assert.True(t, rolled.DecidedAt.IsZero())

	_, err = f.service.Reject(actorCtx(reviewer), item.ID, "rejected after rollback", 0)
	require.NoError(t, err)

	// One audit entry per successful transition, in order.
	history, err := f.auditLog.HistoryByItem(context.Background(), item.ID)
	require.NoError(t, err)
	actions := make([]audit.Action, 0, len(history))
	for _, e := range history {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []audit.Action{
		audit.ActionQueued,
		audit.ActionAssigned,
		audit.ActionApproved,
		audit.ActionRolledBack,
		audit.ActionRejected,
	}, actions)

	assert.Equal(t, []contracts.Type{
		contracts.TypeReviewAssigned,
		contracts.TypeReviewApproved,
		contracts.TypeReviewRolledBack,
		contracts.TypeReviewRejected,
	}, f.emitter.types())
}

func TestAssignAuto_PicksLeastLoadedReviewer(t *testing.T) {
	f := newFixture()
	busy := id.ReviewerID(uuid.New())
	idle := id.ReviewerID(uuid.New())
	orgID := id.OrganizationID(uuid.New())

	makeItem := func() *queue.Item {
		txn := newQueueTxn()
		txn.OrganizationID = orgID
		item, err := f.service.Enqueue(context.Background(), txn, reviewDecision(id.PriorityMedium))
		require.NoError(t, err)
		return item
	}

	// Load up the busy reviewer with two open items.
	for range 2 {
		item := makeItem()
		_, err := f.service.Assign(actorCtx(busy), item.ID, busy, 0)
		require.NoError(t, err)
	}

	item := makeItem()
	assigned, err := f.service.AssignAuto(actorCtx(busy), item.ID, []id.ReviewerID{busy, idle}, 0)
	require.NoError(t, err)
	assert.Equal(t, idle, assigned.AssignedTo)
}

func TestList_PriorityThenFIFO(t *testing.T) {
	f := newFixture()
	orgID := id.OrganizationID(uuid.New())
	base := time.Now()

	enqueue := func(priority id.Priority, offset time.Duration) *queue.Item {
		txn := newQueueTxn()
		txn.OrganizationID = orgID
		ctx := requestcontext.WithTime(context.Background(), base.Add(offset))
		item, err := f.service.Enqueue(ctx, txn, reviewDecision(priority))
		require.NoError(t, err)
		return item
	}

	mediumOld := enqueue(id.PriorityMedium, 0)
	criticalNew := enqueue(id.PriorityCritical, 2*time.Minute)
	mediumNew := enqueue(id.PriorityMedium, 3*time.Minute)
	highNew := enqueue(id.PriorityHigh, 4*time.Minute)

	items, err := f.service.List(context.Background(), queue.ListFilter{OrganizationID: orgID})
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, criticalNew.ID, items[0].ID)
	assert.Equal(t, highNew.ID, items[1].ID)
	assert.Equal(t, mediumOld.ID, items[2].ID)
	assert.Equal(t, mediumNew.ID, items[3].ID)
}

func TestList_OverdueFilter(t *testing.T) {
	f := newFixture()
	orgID := id.OrganizationID(uuid.New())
	base := time.Now()

	txn := newQueueTxn()
	txn.OrganizationID = orgID
	ctx := requestcontext.WithTime(context.Background(), base)
	overdueItem, err := f.service.Enqueue(ctx, txn, reviewDecision(id.PriorityCritical)) // 2h SLA
	require.NoError(t, err)

	txn2 := newQueueTxn()
	txn2.OrganizationID = orgID
	_, err = f.service.Enqueue(ctx, txn2, reviewDecision(id.PriorityLow)) // 72h SLA
	require.NoError(t, err)

	items, err := f.service.List(context.Background(), queue.ListFilter{
		OrganizationID: orgID,
		OverdueOnly:    true,
		Now:            base.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, overdueItem.ID, items[0].ID)
}

func TestRecentAudit_NewestFirstWithLimit(t *testing.T) {
	f := newFixture()
	orgID := id.OrganizationID(uuid.New())
	base := time.Now().Truncate(time.Second)

	txnA := newQueueTxn()
	txnA.OrganizationID = orgID
	txnB := newQueueTxn()
	txnB.OrganizationID = orgID

	_, err := f.service.Enqueue(requestcontext.WithTime(context.Background(), base), txnA, reviewDecision(id.PriorityHigh))
	require.NoError(t, err)
	itemB, err := f.service.Enqueue(requestcontext.WithTime(context.Background(), base.Add(time.Minute)), txnB, reviewDecision(id.PriorityHigh))
	require.NoError(t, err)

	reviewer := id.ReviewerID(uuid.New())
	approveCtx := requestcontext.WithTime(actorCtx(reviewer), base.Add(2*time.Minute))
	_, err = f.service.Approve(approveCtx, itemB.ID, "ok", itemB.Version)
	require.NoError(t, err)

	entries, err := f.service.RecentAudit(context.Background(), orgID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionApproved, entries[0].Action)
	assert.Equal(t, txnB.ID, entries[0].TransactionID)
	assert.Equal(t, audit.ActionQueued, entries[1].Action)
	assert.Equal(t, txnB.ID, entries[1].TransactionID)

	other, err := f.service.RecentAudit(context.Background(), id.OrganizationID(uuid.New()), 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

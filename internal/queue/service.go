package queue

import (
	"context"
	"log/slog"
	"time"

	contracts "txgate/contracts/events"
	"txgate/internal/audit"
	"txgate/internal/events"
	"txgate/internal/policy"
	"txgate/internal/queue/metrics"
	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
	"txgate/pkg/requestcontext"
)

// ProfileRecorder folds approved transactions into the submitter's spending
// profile read by the behavioral risk layer. Only approvals feed it; a
// rejected transaction is not evidence of normal spending.
type ProfileRecorder interface {
	RecordTransaction(ctx context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, amount int64) error
}

// Service owns the review queue lifecycle. Every transition runs inside the
// TxRunner so the item update and its audit entry are atomic, and every
// successful transition appends exactly one audit entry.
type Service struct {
	items    Store
	auditLog audit.Store
	txRunner TxRunner
	emitter  events.Emitter
	profiles ProfileRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(
	items Store,
	auditLog audit.Store,
	txRunner TxRunner,
	emitter events.Emitter,
	profiles ProfileRecorder,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if emitter == nil {
		emitter = events.Discard{}
	}
	return &Service{
		items:    items,
		auditLog: auditLog,
		txRunner: txRunner,
		emitter:  emitter,
		profiles: profiles,
		metrics:  m,
		logger:   logger,
	}
}

// Enqueue creates a pending item from a decision. The transaction context is
// snapshotted into the item as-is; nothing mutates it afterwards.
func (s *Service) Enqueue(ctx context.Context, txn id.TransactionContext, decision policy.Decision) (*Item, error) {
	now := requestcontext.Now(ctx)
	item := &Item{
		ID:            id.NewItemID(),
		Transaction:   txn,
		Reason:        decision.Reason,
		Priority:      decision.Priority,
		Status:        id.StatusPending,
		MatchedCases:  decision.MatchedCases,
		ConfigVersion: decision.ConfigVersion,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
		SLADeadline:   now.Add(SLAFor(decision.Priority)),
	}

	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.items.Insert(ctx, item); err != nil {
			return err
		}
		return s.auditLog.Append(ctx, audit.Entry{
			ItemID:         item.ID,
			TransactionID:  txn.ID,
			OrganizationID: txn.OrganizationID,
			Action:         audit.ActionQueued,
			ActorID:        "system",
			Timestamp:      now,
			AfterStatus:    id.StatusPending,
			RequestID:      requestcontext.RequestID(ctx),
			Details: map[string]string{
				"reason":   string(decision.Reason),
				"priority": string(decision.Priority),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ItemEnqueued(string(item.Priority))
	s.logger.InfoContext(ctx, "transaction queued for review",
		"item_id", item.ID.String(),
		"transaction_id", txn.ID.String(),
		"reason", string(decision.Reason),
		"priority", string(decision.Priority),
		"request_id", requestcontext.RequestID(ctx),
	)
	return item.Clone(), nil
}

// Get returns one queue item.
func (s *Service) Get(ctx context.Context, itemID id.ItemID) (*Item, error) {
	return s.items.Get(ctx, itemID)
}

// List returns queue items matching the filter, critical first and FIFO
// within each priority.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Item, error) {
	if filter.OverdueOnly && filter.Now.IsZero() {
		filter.Now = requestcontext.Now(ctx)
	}
	return s.items.List(ctx, filter)
}

// History returns the audit trail for one item, oldest first.
func (s *Service) History(ctx context.Context, itemID id.ItemID) ([]audit.Entry, error) {
	if _, err := s.items.Get(ctx, itemID); err != nil {
		return nil, err
	}
	return s.auditLog.HistoryByItem(ctx, itemID)
}

// RecentAudit returns the newest audit entries for an organization, newest
// first, capped at limit.
func (s *Service) RecentAudit(ctx context.Context, orgID id.OrganizationID, limit int) ([]audit.Entry, error) {
	return s.auditLog.ListRecent(ctx, orgID, limit)
}

// Assign claims a pending item for a reviewer.
func (s *Service) Assign(ctx context.Context, itemID id.ItemID, reviewerID id.ReviewerID, expectedVersion int64) (*Item, error) {
	return s.transition(ctx, itemID, expectedVersion, audit.ActionAssigned, contracts.TypeReviewAssigned,
		func(item *Item) error {
			// Rollback also lands on in_progress, so assignment checks the
			// source state, not just the state machine edge.
			if item.Status != id.StatusPending {
				return transitionError(item.Status, id.StatusInProgress)
			}
			item.Status = id.StatusInProgress
			item.AssignedTo = reviewerID
			return nil
		})
}

// AssignAuto claims a pending item for the least-loaded candidate reviewer.
// Ties break toward the reviewer whose last assignment is oldest.
func (s *Service) AssignAuto(ctx context.Context, itemID id.ItemID, candidates []id.ReviewerID, expectedVersion int64) (*Item, error) {
	if len(candidates) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one candidate reviewer is required")
	}

	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	loads, err := s.items.ReviewerLoads(ctx, item.Transaction.OrganizationID)
	if err != nil {
		return nil, err
	}

	chosen := candidates[0]
	best := loads[chosen]
	for _, candidate := range candidates[1:] {
		load := loads[candidate]
		if load.Open < best.Open ||
			(load.Open == best.Open && load.LastAssignedAt.Before(best.LastAssignedAt)) {
			chosen = candidate
			best = load
		}
	}

	return s.Assign(ctx, itemID, chosen, expectedVersion)
}

// Approve decides an item. Allowed from in_progress by the assigned reviewer
// (or an admin), and from pending as a fast-track decision by any reviewer.
func (s *Service) Approve(ctx context.Context, itemID id.ItemID, note string, expectedVersion int64) (*Item, error) {
	return s.decide(ctx, itemID, id.StatusApproved, note, expectedVersion, audit.ActionApproved, contracts.TypeReviewApproved)
}

// Reject decides an item negatively. Same transition rules as Approve.
func (s *Service) Reject(ctx context.Context, itemID id.ItemID, note string, expectedVersion int64) (*Item, error) {
	return s.decide(ctx, itemID, id.StatusRejected, note, expectedVersion, audit.ActionRejected, contracts.TypeReviewRejected)
}

func (s *Service) decide(ctx context.Context, itemID id.ItemID, to id.Status, note string, expectedVersion int64, action audit.Action, eventType contracts.Type) (*Item, error) {
	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)

	item, err := s.transition(ctx, itemID, expectedVersion, action, eventType,
		func(item *Item) error {
			if !item.Status.CanTransitionTo(to) {
				return transitionError(item.Status, to)
			}
			if item.Status == id.StatusInProgress && item.AssignedTo != actor && !requestcontext.IsAdmin(ctx) {
				return dErrors.New(dErrors.CodeForbidden, "item is assigned to another reviewer")
			}
			item.Status = to
			item.ReviewedBy = actor
			item.ReviewerNote = note
			item.DecidedAt = now
			return nil
		})
	if err != nil {
		return nil, err
	}

	if to == id.StatusApproved {
		s.recordProfile(ctx, item.Transaction)
	}
	s.metrics.ObserveTimeToDecision(item.DecidedAt.Sub(item.CreatedAt))
	return item, nil
}

// recordProfile feeds an approved transaction into the behavioral baseline.
// Best effort: profile lag degrades a risk signal, not the decision.
func (s *Service) recordProfile(ctx context.Context, txn id.TransactionContext) {
	if s.profiles == nil || txn.SubmitterID.IsZero() {
		return
	}
	if err := s.profiles.RecordTransaction(ctx, txn.OrganizationID, txn.SubmitterID, txn.Amount); err != nil {
		s.logger.WarnContext(ctx, "failed to record submitter profile",
			"transaction_id", txn.ID.String(),
			"submitter_id", txn.SubmitterID.String(),
			"error", err,
		)
	}
}

// Escalate routes an in_progress item to a senior queue. Escalated items are
// handled out of band; no further transition is permitted.
func (s *Service) Escalate(ctx context.Context, itemID id.ItemID, note string, expectedVersion int64) (*Item, error) {
	actor := requestcontext.ActorID(ctx)
	return s.transition(ctx, itemID, expectedVersion, audit.ActionEscalated, contracts.TypeReviewEscalated,
		func(item *Item) error {
			if !item.Status.CanTransitionTo(id.StatusEscalated) {
				return transitionError(item.Status, id.StatusEscalated)
			}
			if item.AssignedTo != actor && !requestcontext.IsAdmin(ctx) {
				return dErrors.New(dErrors.CodeForbidden, "item is assigned to another reviewer")
			}
			item.Status = id.StatusEscalated
			item.ReviewedBy = actor
			item.ReviewerNote = note
			return nil
		})
}

// Rollback reverts a decided item to in_progress for re-review. Admin only;
// the original decision stays visible in the audit trail.
func (s *Service) Rollback(ctx context.Context, itemID id.ItemID, note string, expectedVersion int64) (*Item, error) {
	if !requestcontext.IsAdmin(ctx) {
		return nil, dErrors.New(dErrors.CodeForbidden, "rollback requires admin privileges")
	}

	return s.transition(ctx, itemID, expectedVersion, audit.ActionRolledBack, contracts.TypeReviewRolledBack,
		func(item *Item) error {
			if !item.Status.CanTransitionTo(id.StatusInProgress) {
				return transitionError(item.Status, id.StatusInProgress)
			}
			item.Status = id.StatusInProgress
			item.ReviewedBy = id.ReviewerID{}
			item.ReviewerNote = note
			item.DecidedAt = time.Time{}
			return nil
		})
}

// transition applies mutate to the item inside the transactional boundary,
// bumping the version and appending the audit entry. expectedVersion guards
// against stale clients; 0 skips the client-side check (the store CAS still
// protects against racing writers).
func (s *Service) transition(
	ctx context.Context,
	itemID id.ItemID,
	expectedVersion int64,
	action audit.Action,
	eventType contracts.Type,
	mutate func(*Item) error,
) (*Item, error) {
	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)

	var (
		result     *Item
		fromStatus id.Status
	)
	err := s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		item, err := s.items.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if expectedVersion != 0 && item.Version != expectedVersion {
			return dErrors.Newf(dErrors.CodeConflict, "queue item version changed: have %d, expected %d", item.Version, expectedVersion)
		}

		before := item.Status
		if err := mutate(item); err != nil {
			return err
		}
		fromStatus = before

		readVersion := item.Version
		item.Version++
		item.UpdatedAt = now
		if err := s.items.Update(ctx, item, readVersion); err != nil {
			return err
		}

		if err := s.auditLog.Append(ctx, audit.Entry{
			ItemID:         item.ID,
			TransactionID:  item.Transaction.ID,
			OrganizationID: item.Transaction.OrganizationID,
			Action:         action,
			ActorID:        actor.String(),
			Timestamp:      now,
			BeforeStatus:   before,
			AfterStatus:    item.Status,
			RequestID:      requestcontext.RequestID(ctx),
			Details:        transitionDetails(item),
		}); err != nil {
			return err
		}

		result = item
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.VersionConflict()
		}
		return nil, err
	}

	s.metrics.TransitionApplied(string(action))
	s.emitTransition(eventType, result, fromStatus, actor, now)
	s.logger.InfoContext(ctx, "queue item transitioned",
		"item_id", itemID.String(),
		"action", string(action),
		"status", string(result.Status),
		"version", result.Version,
		"actor_id", actor.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result.Clone(), nil
}

func transitionDetails(item *Item) map[string]string {
	details := map[string]string{}
	if !item.AssignedTo.IsZero() {
		details["assigned_to"] = item.AssignedTo.String()
	}
	if item.ReviewerNote != "" {
		details["note"] = item.ReviewerNote
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func (s *Service) emitTransition(eventType contracts.Type, item *Item, from id.Status, actor id.ReviewerID, now time.Time) {
	env := events.NewEnvelope(eventType, now)
	env.OrganizationID = item.Transaction.OrganizationID.String()
	env.TransactionID = item.Transaction.ID.String()
	env.ItemID = item.ID.String()
	env.ActorID = actor.String()
	env.FromStatus = string(from)
	env.ToStatus = string(item.Status)
	env.ItemVersion = item.Version
	env.ReviewerNote = item.ReviewerNote
	s.emitter.Emit(env)
}

func transitionError(from, to id.Status) error {
	return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot transition from %s to %s", from, to)
}

package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
	txcontext "txgate/pkg/platform/tx"
)

// PostgresStore persists queue items in the review_queue_items table. The
// transaction snapshot is stored as JSONB; the columns used for filtering and
// ordering (organization, status, priority, assignment, timestamps) are
// extracted so listings stay on indexes.
//
// Update relies on the version column for optimistic concurrency and joins
// the transaction carried on the context, so a transition and its audit entry
// commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// itemSnapshot is the JSONB form of the immutable decision-time state.
type itemSnapshot struct {
	Transaction   id.TransactionContext `json:"transaction"`
	MatchedCases  []id.CaseKind         `json:"matched_cases,omitempty"`
	ConfigVersion int64                 `json:"config_version"`
}

func (s *PostgresStore) Insert(ctx context.Context, item *Item) error {
	snapshot, err := json.Marshal(itemSnapshot{
		Transaction:   item.Transaction,
		MatchedCases:  item.MatchedCases,
		ConfigVersion: item.ConfigVersion,
	})
	if err != nil {
		return fmt.Errorf("marshal item snapshot: %w", err)
	}

	query := `
		INSERT INTO review_queue_items (
			id, organization_id, snapshot, reason, priority, status,
			assigned_to, reviewed_by, reviewer_note,
			version, created_at, updated_at, sla_deadline, decided_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(item.ID),
		uuid.UUID(item.Transaction.OrganizationID),
		snapshot,
		string(item.Reason),
		string(item.Priority),
		string(item.Status),
		nullableUUID(uuid.UUID(item.AssignedTo)),
		nullableUUID(uuid.UUID(item.ReviewedBy)),
		item.ReviewerNote,
		item.Version,
		item.CreatedAt,
		item.UpdatedAt,
		item.SLADeadline,
		nullableTime(item.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, itemID id.ItemID) (*Item, error) {
	query := `
		SELECT id, snapshot, reason, priority, status,
		       assigned_to, reviewed_by, reviewer_note,
		       version, created_at, updated_at, sla_deadline, decided_at
		FROM review_queue_items
		WHERE id = $1
	`
	item, err := scanItem(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(itemID)))
	if err == sql.ErrNoRows {
		return nil, dErrors.New(dErrors.CodeNotFound, "queue item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query queue item: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) Update(ctx context.Context, item *Item, expectedVersion int64) error {
	query := `
		UPDATE review_queue_items
		SET status = $2, assigned_to = $3, reviewed_by = $4, reviewer_note = $5,
		    version = $6, updated_at = $7, decided_at = $8
		WHERE id = $1 AND version = $9
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(item.ID),
		string(item.Status),
		nullableUUID(uuid.UUID(item.AssignedTo)),
		nullableUUID(uuid.UUID(item.ReviewedBy)),
		item.ReviewerNote,
		item.Version,
		item.UpdatedAt,
		nullableTime(item.DecidedAt),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return dErrors.New(dErrors.CodeConflict, "queue item version changed")
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*Item, error) {
	query := `
		SELECT id, snapshot, reason, priority, status,
		       assigned_to, reviewed_by, reviewer_note,
		       version, created_at, updated_at, sla_deadline, decided_at
		FROM review_queue_items
		WHERE ($1::uuid IS NULL OR organization_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR priority = $3)
		  AND ($4::uuid IS NULL OR assigned_to = $4)
		  AND (NOT $5::bool OR (sla_deadline < $6 AND status NOT IN ('approved', 'rejected')))
		ORDER BY
			CASE priority
				WHEN 'critical' THEN 0
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				ELSE 3
			END,
			created_at ASC
		LIMIT $7 OFFSET $8
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	rows, err := s.db.QueryContext(ctx, query,
		nullableUUID(uuid.UUID(filter.OrganizationID)),
		nullableString(string(filter.Status)),
		nullableString(string(filter.Priority)),
		nullableUUID(uuid.UUID(filter.AssignedTo)),
		filter.OverdueOnly,
		now,
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query queue items: %w", err)
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ReviewerLoads(ctx context.Context, orgID id.OrganizationID) (map[id.ReviewerID]ReviewerLoad, error) {
	query := `
		SELECT assigned_to,
		       COUNT(*) FILTER (WHERE status = 'in_progress'),
		       MAX(updated_at)
		FROM review_queue_items
		WHERE organization_id = $1 AND assigned_to IS NOT NULL
		GROUP BY assigned_to
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query reviewer loads: %w", err)
	}
	defer rows.Close()

	loads := make(map[id.ReviewerID]ReviewerLoad)
	for rows.Next() {
		var (
			reviewerID uuid.UUID
			load       ReviewerLoad
		)
		if err := rows.Scan(&reviewerID, &load.Open, &load.LastAssignedAt); err != nil {
			return nil, fmt.Errorf("scan reviewer load: %w", err)
		}
		loads[id.ReviewerID(reviewerID)] = load
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviewer loads: %w", err)
	}
	return loads, nil
}

func (s *PostgresStore) Stats(ctx context.Context, orgID id.OrganizationID, now time.Time) (StatsSnapshot, error) {
	snap := StatsSnapshot{
		ByStatus:   make(map[id.Status]int),
		ByPriority: make(map[id.Priority]int),
		ByReason:   make(map[id.Reason]int),
	}

	query := `
		SELECT status, priority, reason, COUNT(*),
		       COUNT(*) FILTER (WHERE sla_deadline < $2 AND status NOT IN ('approved', 'rejected')),
		       COALESCE(SUM(EXTRACT(EPOCH FROM decided_at - created_at)) FILTER (WHERE decided_at IS NOT NULL), 0)
		FROM review_queue_items
		WHERE organization_id = $1
		GROUP BY status, priority, reason
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), now)
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("query queue stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status, priority, reason string
			count, overdue           int
			decidedSeconds           float64
		)
		if err := rows.Scan(&status, &priority, &reason, &count, &overdue, &decidedSeconds); err != nil {
			return StatsSnapshot{}, fmt.Errorf("scan queue stats: %w", err)
		}
		snap.ByStatus[id.Status(status)] += count
		snap.ByPriority[id.Priority(priority)] += count
		snap.ByReason[id.Reason(reason)] += count
		snap.OverdueCount += overdue
		switch id.Status(status) {
		case id.StatusApproved:
			snap.ApprovedCount += count
		case id.StatusRejected:
			snap.RejectedCount += count
		}
		snap.SumTimeToDecision += time.Duration(decidedSeconds * float64(time.Second))
	}
	if err := rows.Err(); err != nil {
		return StatsSnapshot{}, fmt.Errorf("iterate queue stats: %w", err)
	}
	return snap, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item       Item
		itemID     uuid.UUID
		snapshot   []byte
		reason     string
		priority   string
		status     string
		assignedTo *uuid.UUID
		reviewedBy *uuid.UUID
		decidedAt  *time.Time
	)
	err := row.Scan(
		&itemID, &snapshot, &reason, &priority, &status,
		&assignedTo, &reviewedBy, &item.ReviewerNote,
		&item.Version, &item.CreatedAt, &item.UpdatedAt, &item.SLADeadline, &decidedAt,
	)
	if err != nil {
		return nil, err
	}

	var snap itemSnapshot
	if err := json.Unmarshal(snapshot, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal item snapshot: %w", err)
	}

	item.ID = id.ItemID(itemID)
	item.Transaction = snap.Transaction
	item.MatchedCases = snap.MatchedCases
	item.ConfigVersion = snap.ConfigVersion
	item.Reason = id.Reason(reason)
	item.Priority = id.Priority(priority)
	item.Status = id.Status(status)
	if assignedTo != nil {
		item.AssignedTo = id.ReviewerID(*assignedTo)
	}
	if reviewedBy != nil {
		item.ReviewedBy = id.ReviewerID(*reviewedBy)
	}
	if decidedAt != nil {
		item.DecidedAt = *decidedAt
	}
	return &item, nil
}

func nullableUUID(u uuid.UUID) any {
	if u == uuid.Nil {
		return nil
	}
	return u
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

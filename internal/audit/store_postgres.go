package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "txgate/pkg/domain"
	txcontext "txgate/pkg/platform/tx"
)

// PostgresStore persists audit entries in the audit_entries table. Append
// joins the transaction carried on the context when one is present, which is
// how a queue transition and its audit entry stay atomic.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_entries (
			id, item_id, transaction_id, organization_id, action,
			actor_id, timestamp, before_status, after_status, request_id, details
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		uuid.UUID(entry.ItemID),
		uuid.UUID(entry.TransactionID),
		uuid.UUID(entry.OrganizationID),
		string(entry.Action),
		entry.ActorID,
		entry.Timestamp,
		string(entry.BeforeStatus),
		string(entry.AfterStatus),
		entry.RequestID,
		details,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

const entryColumns = `
	item_id, transaction_id, organization_id, action,
	actor_id, timestamp, before_status, after_status, request_id, details
`

func (s *PostgresStore) HistoryByItem(ctx context.Context, itemID id.ItemID) ([]Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE item_id = $1
		ORDER BY timestamp ASC`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(itemID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *PostgresStore) HistoryByTransaction(ctx context.Context, txnID id.TransactionID) ([]Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE transaction_id = $1
		ORDER BY timestamp ASC`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(txnID))
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, orgID id.OrganizationID, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE organization_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID), limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry

	for rows.Next() {
		var (
			entry                     Entry
			itemID, txnID, orgID      uuid.UUID
			action                    string
			beforeStatus, afterStatus string
			details                   []byte
		)
		err := rows.Scan(
			&itemID,
			&txnID,
			&orgID,
			&action,
			&entry.ActorID,
			&entry.Timestamp,
			&beforeStatus,
			&afterStatus,
			&entry.RequestID,
			&details,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.ItemID = id.ItemID(itemID)
		entry.TransactionID = id.TransactionID(txnID)
		entry.OrganizationID = id.OrganizationID(orgID)
		entry.Action = Action(action)
		entry.BeforeStatus = id.Status(beforeStatus)
		entry.AfterStatus = id.Status(afterStatus)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

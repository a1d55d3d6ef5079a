//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema creates the tables the Postgres stores expect. Kept here rather
// than in a migration tool so integration tests stay self-contained.
const schema = `
CREATE TABLE IF NOT EXISTS review_queue_items (
	id UUID PRIMARY KEY,
	organization_id UUID NOT NULL,
	snapshot JSONB NOT NULL,
	reason TEXT NOT NULL,
	priority TEXT NOT NULL,
	status TEXT NOT NULL,
	assigned_to UUID,
	reviewed_by UUID,
	reviewer_note TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	sla_deadline TIMESTAMPTZ NOT NULL,
	decided_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_queue_org_status
	ON review_queue_items (organization_id, status);

CREATE TABLE IF NOT EXISTS audit_entries (
	id UUID PRIMARY KEY,
	item_id UUID NOT NULL,
	transaction_id UUID NOT NULL,
	organization_id UUID NOT NULL,
	action TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	before_status TEXT NOT NULL DEFAULT '',
	after_status TEXT NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	details JSONB
);

CREATE INDEX IF NOT EXISTS idx_audit_item ON audit_entries (item_id);
CREATE INDEX IF NOT EXISTS idx_audit_transaction ON audit_entries (transaction_id);

CREATE TABLE IF NOT EXISTS review_configs (
	organization_id UUID NOT NULL,
	branch_id UUID NOT NULL,
	country TEXT NOT NULL,
	version BIGINT NOT NULL,
	enabled BOOLEAN NOT NULL,
	thresholds JSONB NOT NULL,
	role_rules JSONB NOT NULL,
	mandatory_cases JSONB NOT NULL,
	last_modified_by UUID NOT NULL,
	last_modified_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (organization_id, branch_id, country)
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// applied and an open connection pool.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("txgate"),
		tcpostgres.WithUsername("txgate"),
		tcpostgres.WithPassword("txgate"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Cleanup is left to Ryuk; the container is shared across suites.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// TruncateTables empties the given tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	if _, err := p.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

package reviewconfig

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
)

// PostgresStore persists config snapshots in the review_configs table, one
// row per scope. Optimistic concurrency uses the version column: updates are
// conditional on the version the caller read.
//
// BranchID is stored as the zero UUID for organization-wide scopes so the
// scope columns can form the primary key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetExact(ctx context.Context, scope Scope) (*ReviewConfig, error) {
	query := `
		SELECT version, enabled, thresholds, role_rules, mandatory_cases,
		       last_modified_by, last_modified_at
		FROM review_configs
		WHERE organization_id = $1 AND branch_id = $2 AND country = $3
	`

	row := s.db.QueryRowContext(ctx, query,
		uuid.UUID(scope.OrganizationID), uuid.UUID(scope.BranchID), scope.Country)

	cfg := &ReviewConfig{Scope: scope}
	var (
		thresholds     []byte
		roleRules      []byte
		mandatoryCases []byte
		modifiedBy     uuid.UUID
	)
	err := row.Scan(&cfg.Version, &cfg.AutoProcessingEnabled,
		&thresholds, &roleRules, &mandatoryCases,
		&modifiedBy, &cfg.LastModifiedAt)
	if err == sql.ErrNoRows {
		return nil, dErrors.New(dErrors.CodeNotFound, "review config not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query review config: %w", err)
	}
	cfg.LastModifiedBy = id.ReviewerID(modifiedBy)

	if err := unmarshalConfigColumns(cfg, thresholds, roleRules, mandatoryCases); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *PostgresStore) Save(ctx context.Context, cfg *ReviewConfig, expectedVersion int64) error {
	thresholds, err := json.Marshal(cfg.Thresholds)
	if err != nil {
		return fmt.Errorf("marshal thresholds: %w", err)
	}
	roleRules, err := json.Marshal(cfg.RoleRules)
	if err != nil {
		return fmt.Errorf("marshal role rules: %w", err)
	}
	cases := make([]string, 0, len(cfg.MandatoryCases))
	for kind := range cfg.MandatoryCases {
		cases = append(cases, string(kind))
	}
	mandatoryCases, err := json.Marshal(cases)
	if err != nil {
		return fmt.Errorf("marshal mandatory cases: %w", err)
	}

	if expectedVersion == 0 {
		query := `
			INSERT INTO review_configs (
				organization_id, branch_id, country, version, enabled,
				thresholds, role_rules, mandatory_cases,
				last_modified_by, last_modified_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (organization_id, branch_id, country) DO NOTHING
		`
		res, err := s.db.ExecContext(ctx, query,
			uuid.UUID(cfg.Scope.OrganizationID), uuid.UUID(cfg.Scope.BranchID), cfg.Scope.Country,
			cfg.Version, cfg.AutoProcessingEnabled,
			thresholds, roleRules, mandatoryCases,
			uuid.UUID(cfg.LastModifiedBy), cfg.LastModifiedAt,
		)
		if err != nil {
			return fmt.Errorf("insert review config: %w", err)
		}
		return requireRowAffected(res, "review config already exists")
	}

	query := `
		UPDATE review_configs
		SET version = $4, enabled = $5,
		    thresholds = $6, role_rules = $7, mandatory_cases = $8,
		    last_modified_by = $9, last_modified_at = $10
		WHERE organization_id = $1 AND branch_id = $2 AND country = $3
		  AND version = $11
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(cfg.Scope.OrganizationID), uuid.UUID(cfg.Scope.BranchID), cfg.Scope.Country,
		cfg.Version, cfg.AutoProcessingEnabled,
		thresholds, roleRules, mandatoryCases,
		uuid.UUID(cfg.LastModifiedBy), cfg.LastModifiedAt,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update review config: %w", err)
	}
	return requireRowAffected(res, "review config version changed")
}

func (s *PostgresStore) ListByOrganization(ctx context.Context, orgID id.OrganizationID) ([]*ReviewConfig, error) {
	query := `
		SELECT branch_id, country, version, enabled,
		       thresholds, role_rules, mandatory_cases,
		       last_modified_by, last_modified_at
		FROM review_configs
		WHERE organization_id = $1
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query review configs: %w", err)
	}
	defer rows.Close()

	var out []*ReviewConfig
	for rows.Next() {
		cfg := &ReviewConfig{Scope: Scope{OrganizationID: orgID}}
		var (
			branchID       uuid.UUID
			thresholds     []byte
			roleRules      []byte
			mandatoryCases []byte
			modifiedBy     uuid.UUID
		)
		err := rows.Scan(&branchID, &cfg.Scope.Country, &cfg.Version, &cfg.AutoProcessingEnabled,
			&thresholds, &roleRules, &mandatoryCases,
			&modifiedBy, &cfg.LastModifiedAt)
		if err != nil {
			return nil, fmt.Errorf("scan review config: %w", err)
		}
		cfg.Scope.BranchID = id.BranchID(branchID)
		cfg.LastModifiedBy = id.ReviewerID(modifiedBy)
		if err := unmarshalConfigColumns(cfg, thresholds, roleRules, mandatoryCases); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review configs: %w", err)
	}
	return out, nil
}

func unmarshalConfigColumns(cfg *ReviewConfig, thresholds, roleRules, mandatoryCases []byte) error {
	if err := json.Unmarshal(thresholds, &cfg.Thresholds); err != nil {
		return fmt.Errorf("unmarshal thresholds: %w", err)
	}
	if err := json.Unmarshal(roleRules, &cfg.RoleRules); err != nil {
		return fmt.Errorf("unmarshal role rules: %w", err)
	}
	var cases []string
	if err := json.Unmarshal(mandatoryCases, &cases); err != nil {
		return fmt.Errorf("unmarshal mandatory cases: %w", err)
	}
	cfg.MandatoryCases = make(map[id.CaseKind]bool, len(cases))
	for _, kind := range cases {
		cfg.MandatoryCases[id.CaseKind(kind)] = true
	}
	return nil
}

func requireRowAffected(res sql.Result, conflictMsg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return dErrors.New(dErrors.CodeConflict, conflictMsg)
	}
	return nil
}

//go:build integration

package reviewconfig_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"txgate/internal/reviewconfig"
	id "txgate/pkg/domain"
	dErrors "txgate/pkg/domain-errors"
	"txgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *reviewconfig.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = reviewconfig.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "review_configs")
	s.Require().NoError(err)
}

func newStoredConfig(scope reviewconfig.Scope) *reviewconfig.ReviewConfig {
	return &reviewconfig.ReviewConfig{
		Scope:                 scope,
		Version:               1,
		AutoProcessingEnabled: true,
		Thresholds: reviewconfig.Thresholds{
			Amount:          100_000,
			RiskScore:       70,
			FraudConfidence: 60,
		},
		RoleRules: map[id.Role]reviewconfig.RoleRule{
			"accountant": {AutoApprove: true, MaxAmount: 500_000},
			"intern":     {},
		},
		MandatoryCases: map[id.CaseKind]bool{
			id.CaseNewVendor: true,
		},
		LastModifiedBy: id.ReviewerID(uuid.New()),
		LastModifiedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestSaveGetRoundTrip() {
	ctx := context.Background()
	scope := reviewconfig.Scope{OrganizationID: id.OrganizationID(uuid.New()), Country: "DE"}
	cfg := newStoredConfig(scope)

	s.Require().NoError(s.store.Save(ctx, cfg, 0))

	got, err := s.store.GetExact(ctx, scope)
	s.Require().NoError(err)
	s.EqualValues(1, got.Version)
	s.True(got.AutoProcessingEnabled)
	s.Equal(cfg.Thresholds, got.Thresholds)
	s.Equal(cfg.RoleRules, got.RoleRules)
	s.True(got.IsMandatory(id.CaseNewVendor))
	s.Equal(cfg.LastModifiedBy, got.LastModifiedBy)
}

func (s *PostgresStoreSuite) TestGetExactNotFound() {
	scope := reviewconfig.Scope{OrganizationID: id.OrganizationID(uuid.New())}
	_, err := s.store.GetExact(context.Background(), scope)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestCreateConflictsWhenScopeExists() {
	ctx := context.Background()
	scope := reviewconfig.Scope{OrganizationID: id.OrganizationID(uuid.New())}

	s.Require().NoError(s.store.Save(ctx, newStoredConfig(scope), 0))

	err := s.store.Save(ctx, newStoredConfig(scope), 0)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *PostgresStoreSuite) TestUpdateRequiresMatchingVersion() {
	ctx := context.Background()
	scope := reviewconfig.Scope{OrganizationID: id.OrganizationID(uuid.New())}
	s.Require().NoError(s.store.Save(ctx, newStoredConfig(scope), 0))

	next := newStoredConfig(scope)
	next.Version = 2
	next.Thresholds.Amount = 250_000
	s.Require().NoError(s.store.Save(ctx, next, 1))

	// A second writer still holding version 1 must lose.
	stale := newStoredConfig(scope)
	stale.Version = 2
	err := s.store.Save(ctx, stale, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	got, err := s.store.GetExact(ctx, scope)
	s.Require().NoError(err)
	s.EqualValues(2, got.Version)
	s.EqualValues(250_000, got.Thresholds.Amount)
}

func (s *PostgresStoreSuite) TestScopesAreIndependent() {
	ctx := context.Background()
	orgID := id.OrganizationID(uuid.New())
	orgWide := reviewconfig.Scope{OrganizationID: orgID}
	branch := reviewconfig.Scope{OrganizationID: orgID, BranchID: id.BranchID(uuid.New()), Country: "DE"}

	s.Require().NoError(s.store.Save(ctx, newStoredConfig(orgWide), 0))
	s.Require().NoError(s.store.Save(ctx, newStoredConfig(branch), 0))

	configs, err := s.store.ListByOrganization(ctx, orgID)
	s.Require().NoError(err)
	s.Len(configs, 2)
}

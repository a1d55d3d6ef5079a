//go:build integration

package profile_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"txgate/internal/risk/profile"
	id "txgate/pkg/domain"
	"txgate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *profile.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = profile.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestProfileAccumulates() {
	ctx := context.Background()
	orgID := id.OrganizationID(uuid.New())
	submitterID := id.ReviewerID(uuid.New())

	_, err := s.store.SubmitterProfile(ctx, orgID, submitterID)
	s.Require().ErrorIs(err, profile.ErrNoProfile)

	s.Require().NoError(s.store.RecordTransaction(ctx, orgID, submitterID, 10_000))
	s.Require().NoError(s.store.RecordTransaction(ctx, orgID, submitterID, 30_000))

	p, err := s.store.SubmitterProfile(ctx, orgID, submitterID)
	s.Require().NoError(err)
	s.EqualValues(2, p.TransactionCount)
	s.EqualValues(40_000, p.TotalAmount)
	s.EqualValues(30_000, p.MaxAmount)
	s.EqualValues(20_000, p.AvgAmount)
}

func (s *RedisStoreSuite) TestProfilesAreScopedPerOrganization() {
	ctx := context.Background()
	submitterID := id.ReviewerID(uuid.New())
	orgA := id.OrganizationID(uuid.New())
	orgB := id.OrganizationID(uuid.New())

	s.Require().NoError(s.store.RecordTransaction(ctx, orgA, submitterID, 5_000))

	_, err := s.store.SubmitterProfile(ctx, orgB, submitterID)
	s.ErrorIs(err, profile.ErrNoProfile)
}

func (s *RedisStoreSuite) TestVelocityCountsWithinWindow() {
	ctx := context.Background()
	orgID := id.OrganizationID(uuid.New())
	submitterID := id.ReviewerID(uuid.New())

	for i := 1; i <= 3; i++ {
		count, err := s.store.RecordAndCount(ctx, orgID, submitterID, time.Minute)
		s.Require().NoError(err)
		s.Equal(i, count)
	}
}

func (s *RedisStoreSuite) TestVelocityExpiresOldEntries() {
	ctx := context.Background()
	orgID := id.OrganizationID(uuid.New())
	submitterID := id.ReviewerID(uuid.New())

	_, err := s.store.RecordAndCount(ctx, orgID, submitterID, 50*time.Millisecond)
	s.Require().NoError(err)

	time.Sleep(100 * time.Millisecond)

	count, err := s.store.RecordAndCount(ctx, orgID, submitterID, 50*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(1, count)
}

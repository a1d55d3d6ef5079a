package profile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	id "txgate/pkg/domain"
)

// RedisStore persists profiles and velocity windows in Redis so every engine
// replica sees the same history.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedis constructs a Redis-backed profile and velocity store.
func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func profileHashKey(orgID id.OrganizationID, submitterID id.ReviewerID) string {
	return fmt.Sprintf("txgate:profile:%s:%s", orgID, submitterID)
}

func velocityZSetKey(orgID id.OrganizationID, submitterID id.ReviewerID) string {
	return fmt.Sprintf("txgate:velocity:%s:%s", orgID, submitterID)
}

func (s *RedisStore) SubmitterProfile(ctx context.Context, orgID id.OrganizationID, submitterID id.ReviewerID) (Profile, error) {
	fields, err := s.client.HGetAll(ctx, profileHashKey(orgID, submitterID)).Result()
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if len(fields) == 0 {
		return Profile{}, ErrNoProfile
	}

	p := Profile{
		TransactionCount: parseIntField(fields, "txn_count"),
		TotalAmount:      parseIntField(fields, "total_amount"),
		MaxAmount:        parseIntField(fields, "max_amount"),
	}
	if p.TransactionCount > 0 {
		p.AvgAmount = p.TotalAmount / p.TransactionCount
	}
	return p, nil
}

func (s *RedisStore) RecordTransaction(ctx context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, amount int64) error {
	key := profileHashKey(orgID, submitterID)

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "txn_count", 1)
	pipe.HIncrBy(ctx, key, "total_amount", amount)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	// Max update is a read-modify-write; a lost race understates the max by
	// one concurrent transaction, which the behavioral layer tolerates.
	current, err := s.client.HGet(ctx, key, "max_amount").Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("read max amount: %w", err)
	}
	if amount > current {
		if err := s.client.HSet(ctx, key, "max_amount", amount).Err(); err != nil {
			return fmt.Errorf("update max amount: %w", err)
		}
	}
	return nil
}

// RecordAndCount implements a sliding window over a sorted set keyed by
// timestamp: trim entries older than the window, add the new one, count.
func (s *RedisStore) RecordAndCount(ctx context.Context, orgID id.OrganizationID, submitterID id.ReviewerID, window time.Duration) (int, error) {
	key := velocityZSetKey(orgID, submitterID)
	now := time.Now()
	cutoff := now.Add(-window).UnixNano()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	count := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record velocity: %w", err)
	}

	return int(count.Val()), nil
}

func parseIntField(fields map[string]string, name string) int64 {
	v, err := strconv.ParseInt(fields[name], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

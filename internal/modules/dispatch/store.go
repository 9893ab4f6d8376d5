// README: Dispatch bookkeeping in Redis: per-order exclusion sets and the unassigned pool.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"boda/internal/types"
)

const (
	excludedKeyPrefix = "dispatch:order:%s:excluded"
	unassignedKey     = "dispatch:unassigned"
	// TTL for per-order keys (orders should resolve well within 7 days).
	keyTTL = 7 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) Exclude(ctx context.Context, orderID, riderID types.ID) error {
	key := excludedKey(orderID)
	pipe := s.redis.Pipeline()
	pipe.SAdd(ctx, key, string(riderID))
	pipe.Expire(ctx, key, keyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) Excluded(ctx context.Context, orderID types.ID) (map[types.ID]bool, error) {
	members, err := s.redis.SMembers(ctx, excludedKey(orderID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]bool, len(members))
	for _, m := range members {
		out[types.ID(m)] = true
	}
	return out, nil
}

func (s *Store) Park(ctx context.Context, orderID types.ID) error {
	return s.redis.SAdd(ctx, unassignedKey, string(orderID)).Err()
}

func (s *Store) Unpark(ctx context.Context, orderID types.ID) error {
	return s.redis.SRem(ctx, unassignedKey, string(orderID)).Err()
}

func (s *Store) Parked(ctx context.Context, limit int) ([]types.ID, error) {
	members, err := s.redis.SRandMemberN(ctx, unassignedKey, int64(limit)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

// QueueDepth is the operator-facing unassigned count.
func (s *Store) QueueDepth(ctx context.Context) (int64, error) {
	return s.redis.SCard(ctx, unassignedKey).Result()
}

func excludedKey(orderID types.ID) string {
	return fmt.Sprintf(excludedKeyPrefix, string(orderID))
}

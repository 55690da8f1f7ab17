package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adityaks/nftpay/internal/domain"
)

// SeenCache implements domain.SeenCache on Redis. Handled signal ids are
// stored as keys with a TTL equal to the reconciliation lookback window, so
// the dedup state survives process restarts: a restart must not cause a
// bank alert to be applied a second time.
type SeenCache struct {
	rdb *redis.Client
}

// NewSeenCache creates a SeenCache backed by the given Client.
func NewSeenCache(c *Client) *SeenCache {
	return &SeenCache{rdb: c.Underlying()}
}

func seenKey(id string) string {
	return "recon:seen:" + id
}

// Seen reports whether the signal id has already been fully handled.
func (s *SeenCache) Seen(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, seenKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: seen %s: %w", id, err)
	}
	return n > 0, nil
}

// Mark records the signal id for the given TTL.
func (s *SeenCache) Mark(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, seenKey(id), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis: mark seen %s: %w", id, err)
	}
	return nil
}

var _ domain.SeenCache = (*SeenCache)(nil)

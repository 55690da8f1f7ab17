// Package memory provides in-process fallbacks for the Redis-backed caches,
// used in tests and single-node deployments that run without Redis.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/adityaks/nftpay/internal/domain"
)

// SeenCache is an in-memory domain.SeenCache with per-entry expiry. Unlike
// the Redis implementation it does not survive restarts; after a restart
// the conditional complete in the store is the remaining duplicate guard.
// It is safe for concurrent use.
type SeenCache struct {
	mu      sync.Mutex
	entries map[string]time.Time // id -> expiry
}

// NewSeenCache creates an empty SeenCache.
func NewSeenCache() *SeenCache {
	return &SeenCache{entries: make(map[string]time.Time)}
}

// Seen reports whether id was marked and has not yet expired. Expired
// entries are pruned lazily on read.
func (c *SeenCache) Seen(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[id]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(c.entries, id)
		return false, nil
	}
	return true, nil
}

// Mark records id until now+ttl.
func (c *SeenCache) Mark(_ context.Context, id string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = time.Now().Add(ttl)

	// Opportunistic sweep to keep the map from growing without bound.
	if len(c.entries)%256 == 0 {
		now := time.Now()
		for k, exp := range c.entries {
			if now.After(exp) {
				delete(c.entries, k)
			}
		}
	}
	return nil
}

var _ domain.SeenCache = (*SeenCache)(nil)

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/adityaks/nftpay/internal/domain"
)

// LockManager is an in-process domain.LockManager for deployments without
// Redis. Locks expire on their TTL to mirror the Redis semantics.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]time.Time)}
}

// Acquire obtains the lock for key or returns domain.ErrLockHeld.
func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if expiry, ok := lm.locks[key]; ok && time.Now().Before(expiry) {
		return nil, domain.ErrLockHeld
	}
	lm.locks[key] = time.Now().Add(ttl)

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(lm.locks, key)
	}
	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)

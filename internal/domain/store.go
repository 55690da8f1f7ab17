package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TransactionStore persists purchase transactions.
type TransactionStore interface {
	Create(ctx context.Context, tx Transaction) error
	GetByID(ctx context.Context, id string) (Transaction, error)
	// ListPendingINR returns pending INR transactions created after the
	// given instant, oldest first. This ordering is what gives the matcher
	// its first-come-first-served tie-break.
	ListPendingINR(ctx context.Context, createdAfter time.Time) ([]Transaction, error)
	// ConditionalComplete atomically flips the transaction from pending to
	// completed and records the external reference. It returns true iff the
	// row was still pending; false means another actor got there first.
	ConditionalComplete(ctx context.Context, id, externalRef string) (bool, error)
	MarkFailed(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID int64, opts ListOpts) ([]Transaction, error)
}

// ItemStore persists NFT listings.
type ItemStore interface {
	Create(ctx context.Context, item Item) (int64, error)
	GetByID(ctx context.Context, id int64) (Item, error)
	ListAvailable(ctx context.Context, category string, opts ListOpts) ([]Item, error)
	// Reserve conditionally flags an available item as reserved. It returns
	// ErrItemUnavailable when the item is already sold or reserved.
	Reserve(ctx context.Context, id int64) error
	Release(ctx context.Context, id int64) error
	// MarkSold sets the sold flag, clears the reservation, and stamps the
	// buyer and sale time.
	MarkSold(ctx context.Context, id, ownerID int64) error
}

// UserStore persists marketplace accounts.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (int64, error)
}

// SeenCache remembers which raw-signal ids have been fully handled so the
// same alert is not reprocessed on a later tick. Entries expire with the
// lookback window. Marking is deliberately separate from reading: a signal
// whose commit failed is never marked, so a future tick can retry it.
type SeenCache interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string, ttl time.Duration) error
}

// LockManager provides short-lived mutual exclusion, used to serialize
// checkout reservations per item.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

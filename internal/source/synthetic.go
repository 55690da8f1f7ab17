package source

import (
	"context"
	"fmt"
	"time"

	"github.com/adityaks/nftpay/internal/domain"
)

// PendingLister is the slice of the transaction store the synthetic source
// needs: the currently pending INR transactions.
type PendingLister interface {
	ListPendingINR(ctx context.Context, createdAfter time.Time) ([]domain.Transaction, error)
}

// Synthetic manufactures one credit alert per pending INR transaction, with
// the amount copied from the transaction and the transaction id embedded in
// the body. Every pending purchase therefore matches deterministically on
// the next tick. For test and development environments only.
type Synthetic struct {
	txs PendingLister
}

// NewSynthetic creates a Synthetic source reading pending transactions from
// the given store.
func NewSynthetic(txs PendingLister) *Synthetic {
	return &Synthetic{txs: txs}
}

// Fetch returns one RawSignal per pending INR transaction within the window.
func (s *Synthetic) Fetch(ctx context.Context, lookback time.Duration) ([]domain.RawSignal, error) {
	now := time.Now().UTC()
	pending, err := s.txs.ListPendingINR(ctx, now.Add(-lookback))
	if err != nil {
		return nil, fmt.Errorf("synthetic: list pending: %w", err)
	}

	signals := make([]domain.RawSignal, 0, len(pending))
	for _, tx := range pending {
		signals = append(signals, domain.RawSignal{
			ID:         "synthetic-" + tx.ID,
			ReceivedAt: now,
			Body: fmt.Sprintf(
				"Your account has been credited with INR %s via UPI. UPI Ref No SYN%s for order %s",
				tx.Amount.StringFixed(2), tx.ID[:8], tx.ID,
			),
		})
	}
	return signals, nil
}

// Name returns the source identifier.
func (s *Synthetic) Name() string { return "synthetic" }

var _ Source = (*Synthetic)(nil)

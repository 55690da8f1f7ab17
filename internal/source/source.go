// Package source provides the signal sources that feed the reconciliation
// pipeline with candidate payment events. A source variant is selected once
// at startup from configuration; the scheduler only ever sees the Source
// interface.
package source

import (
	"context"
	"time"

	"github.com/adityaks/nftpay/internal/domain"
)

// Source yields raw candidate payment signals received within the lookback
// window. Fetch must be safe to call repeatedly; returning the same signal
// on consecutive calls is allowed, de-duplication is the caller's job keyed
// on RawSignal.ID.
type Source interface {
	Fetch(ctx context.Context, lookback time.Duration) ([]domain.RawSignal, error)
	Name() string
}

// Disabled is the no-op source used when reconciliation is turned off or no
// source is configured.
type Disabled struct{}

// Fetch always returns an empty slice.
func (Disabled) Fetch(context.Context, time.Duration) ([]domain.RawSignal, error) {
	return nil, nil
}

// Name returns the source identifier.
func (Disabled) Name() string { return "none" }

var _ Source = Disabled{}

package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaks/nftpay/internal/domain"
)

type fakePendingLister struct {
	txs []domain.Transaction
	err error
}

func (f *fakePendingLister) ListPendingINR(context.Context, time.Time) ([]domain.Transaction, error) {
	return f.txs, f.err
}

func TestSynthetic_OneSignalPerPending(t *testing.T) {
	now := time.Now().UTC()
	lister := &fakePendingLister{txs: []domain.Transaction{
		{
			ID:        "a1b2c3d4-0000-0000-0000-000000000000",
			Amount:    decimal.RequireFromString("2500.00"),
			Currency:  domain.CurrencyINR,
			Status:    domain.TxStatusPending,
			CreatedAt: now,
		},
		{
			ID:        "e5f6a7b8-0000-0000-0000-000000000000",
			Amount:    decimal.RequireFromString("999.5"),
			Currency:  domain.CurrencyINR,
			Status:    domain.TxStatusPending,
			CreatedAt: now,
		},
	}}

	src := NewSynthetic(lister)
	assert.Equal(t, "synthetic", src.Name())

	signals, err := src.Fetch(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Len(t, signals, 2)

	assert.Equal(t, "synthetic-a1b2c3d4-0000-0000-0000-000000000000", signals[0].ID)
	assert.Contains(t, signals[0].Body, "INR 2500.00")
	assert.Contains(t, signals[0].Body, "UPI Ref No SYNa1b2c3d4")

	// Amounts are rendered to paise so the parser round-trips them exactly.
	assert.Contains(t, signals[1].Body, "INR 999.50")
}

func TestSynthetic_NoPending(t *testing.T) {
	src := NewSynthetic(&fakePendingLister{})
	signals, err := src.Fetch(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestSynthetic_ListerError(t *testing.T) {
	src := NewSynthetic(&fakePendingLister{err: errors.New("db down")})
	_, err := src.Fetch(context.Background(), time.Hour)
	assert.Error(t, err)
}

func TestDisabled_NeverYields(t *testing.T) {
	src := Disabled{}
	assert.Equal(t, "none", src.Name())

	signals, err := src.Fetch(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

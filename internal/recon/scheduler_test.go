package recon

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityaks/nftpay/internal/cache/memory"
	"github.com/adityaks/nftpay/internal/domain"
	"github.com/adityaks/nftpay/internal/source"
)

func testScheduler(cfg SchedulerConfig, src source.Source, txs *fakeTxStore, items *fakeItemStore) *Scheduler {
	matcher := NewMatcher("", "", cfg.Lookback, testLogger())
	rec := testReconciler(txs, items, nil)
	return NewScheduler(cfg, src, matcher, rec, txs, memory.NewSeenCache(), testLogger())
}

func enabledCfg() SchedulerConfig {
	return SchedulerConfig{Enabled: true, Interval: time.Minute, Lookback: 3 * time.Hour}
}

func TestScheduler_DisabledNeverStartsNorFetches(t *testing.T) {
	src := &fakeSource{}
	txs := newFakeTxStore(pendingTx(uuid.NewString(), "2500.00", time.Now().UTC()))
	sched := testScheduler(SchedulerConfig{Enabled: false, Interval: time.Millisecond, Lookback: time.Hour},
		src, txs, newFakeItemStore())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := sched.Run(ctx)
	require.NoError(t, err, "disabled Run must return immediately")
	assert.Equal(t, StateStopped, sched.State())
	assert.Equal(t, 0, src.fetchCalls())
	assert.Nil(t, sched.LastTick())
}

func TestScheduler_SyntheticEndToEnd(t *testing.T) {
	// Worked example: a pending ₹2500.00 purchase reconciled off the
	// synthetic source in one tick.
	now := time.Now().UTC()
	txID := uuid.NewString()
	txn := pendingTx(txID, "2500.00", now.Add(-2*time.Minute))
	txn.ItemID = 10

	txs := newFakeTxStore(txn)
	items := newFakeItemStore(domain.Item{ID: 10, PriceINR: inr("2500.00")})
	sched := testScheduler(enabledCfg(), source.NewSynthetic(txs), txs, items)

	stats, err := sched.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Fetched)
	assert.Equal(t, 1, stats.Parsed)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 0, stats.Unmatched)
	assert.Equal(t, 0, stats.Failed)

	got := txs.get(txID)
	assert.Equal(t, domain.TxStatusCompleted, got.Status)
	assert.Equal(t, "SYN"+txID[:8], got.TxnRef)

	item := items.get(10)
	assert.True(t, item.IsSold)
	require.NotNil(t, item.OwnerID)
	assert.Equal(t, txn.UserID, *item.OwnerID)
}

func TestScheduler_BackToBackTicksIdempotent(t *testing.T) {
	now := time.Now().UTC()
	txn := pendingTx(uuid.NewString(), "2500.00", now.Add(-2*time.Minute))
	txs := newFakeTxStore(txn)
	items := newFakeItemStore(domain.Item{ID: 10})
	sched := testScheduler(enabledCfg(), source.NewSynthetic(txs), txs, items)

	first, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Matched)

	// The transaction is completed, so the second pass has no pending work
	// and exits before ever touching the source.
	second, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Pending)
	assert.Equal(t, 0, second.Matched)
	assert.Equal(t, 1, txs.completedCount())
}

func TestScheduler_DuplicateSignalDeduped(t *testing.T) {
	now := time.Now().UTC()
	txnA := pendingTx(uuid.NewString(), "2500.00", now.Add(-10*time.Minute))
	txnB := pendingTx(uuid.NewString(), "2500.00", now.Add(-5*time.Minute))
	txs := newFakeTxStore(txnA, txnB)
	items := newFakeItemStore(domain.Item{ID: 10})

	src := &fakeSource{signals: []domain.RawSignal{
		{ID: "m1", ReceivedAt: now, Body: "INR 2,500.00 credited via UPI. UPI Ref No 111."},
	}}
	sched := testScheduler(enabledCfg(), src, txs, items)

	first, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Matched)
	// Oldest pending purchase wins the tie-break.
	assert.Equal(t, domain.TxStatusCompleted, txs.get(txnA.ID).Status)

	// Same message id again: deduped, so txnB stays pending even though the
	// amount still matches it.
	second, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Deduped)
	assert.Equal(t, 0, second.Matched)
	assert.Equal(t, domain.TxStatusPending, txs.get(txnB.ID).Status)
}

func TestScheduler_UnmatchedSignalNotMarkedSeen(t *testing.T) {
	now := time.Now().UTC()
	// Pending amount differs from the alert: unmatched on the first tick.
	txn := pendingTx(uuid.NewString(), "999.00", now.Add(-5*time.Minute))
	txs := newFakeTxStore(txn)
	items := newFakeItemStore(domain.Item{ID: 10})

	src := &fakeSource{signals: []domain.RawSignal{
		{ID: "m1", ReceivedAt: now, Body: "INR 2,500.00 credited via UPI. UPI Ref No 111."},
	}}
	sched := testScheduler(enabledCfg(), src, txs, items)

	first, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Unmatched)

	// A checkout for the alert's amount arrives after the alert did. The
	// unconsumed signal must still be eligible and match it now.
	late := pendingTx(uuid.NewString(), "2500.00", now)
	require.NoError(t, txs.Create(context.Background(), late))

	second, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Deduped)
	assert.Equal(t, 1, second.Matched)
	assert.Equal(t, domain.TxStatusCompleted, txs.get(late.ID).Status)
}

func TestScheduler_ParseFailureMarkedSeen(t *testing.T) {
	now := time.Now().UTC()
	txn := pendingTx(uuid.NewString(), "2500.00", now)
	txs := newFakeTxStore(txn)

	src := &fakeSource{signals: []domain.RawSignal{
		{ID: "junk-1", ReceivedAt: now, Body: "Your statement is ready."},
	}}
	sched := testScheduler(enabledCfg(), src, txs, newFakeItemStore())

	first, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Fetched)
	assert.Equal(t, 0, first.Parsed)

	// Parsing is deterministic, so the junk message is never re-read.
	second, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Deduped)
}

func TestScheduler_CommitFailedSignalRetriedNextTick(t *testing.T) {
	now := time.Now().UTC()
	txn := pendingTx(uuid.NewString(), "2500.00", now.Add(-5*time.Minute))
	txs := newFakeTxStore(txn)
	txs.completeErrs = 2 // exhausts the in-tick retry on the first pass
	items := newFakeItemStore(domain.Item{ID: 10})

	src := &fakeSource{signals: []domain.RawSignal{
		{ID: "m1", ReceivedAt: now, Body: "INR 2,500.00 credited via UPI. UPI Ref No 111."},
	}}
	sched := testScheduler(enabledCfg(), src, txs, items)

	first, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, domain.TxStatusPending, txs.get(txn.ID).Status)

	// Storage recovered; the same message id was left unseen and now commits.
	second, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Deduped)
	assert.Equal(t, 1, second.Matched)
	assert.Equal(t, domain.TxStatusCompleted, txs.get(txn.ID).Status)
}

func TestScheduler_SourceErrorSkipsTick(t *testing.T) {
	now := time.Now().UTC()
	txn := pendingTx(uuid.NewString(), "2500.00", now)
	txs := newFakeTxStore(txn)

	src := &fakeSource{err: domain.ErrSourceUnavailable}
	sched := testScheduler(enabledCfg(), src, txs, newFakeItemStore())

	stats, err := sched.Tick(context.Background())
	require.NoError(t, err, "a source failure skips the tick, it is not fatal")
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 0, stats.Fetched)
	assert.Equal(t, domain.TxStatusPending, txs.get(txn.ID).Status)
}

func TestScheduler_NoPendingSkipsSource(t *testing.T) {
	src := &fakeSource{}
	sched := testScheduler(enabledCfg(), src, newFakeTxStore(), newFakeItemStore())

	stats, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0, src.fetchCalls(), "no pending work means no mailbox round-trip")
}

func TestScheduler_OverlapGuard(t *testing.T) {
	sched := testScheduler(enabledCfg(), &fakeSource{}, newFakeTxStore(), newFakeItemStore())

	// Simulate an in-flight tick and verify the second caller is refused.
	require.True(t, sched.inFlight.CompareAndSwap(false, true))
	_, err := sched.Tick(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)
	sched.inFlight.Store(false)

	_, err = sched.Tick(context.Background())
	assert.NoError(t, err)
}

func TestScheduler_TwoSignalsTwoTransactionsSameTick(t *testing.T) {
	now := time.Now().UTC()
	txnA := pendingTx(uuid.NewString(), "2500.00", now.Add(-10*time.Minute))
	txnB := pendingTx(uuid.NewString(), "2500.00", now.Add(-5*time.Minute))
	txs := newFakeTxStore(txnA, txnB)
	items := newFakeItemStore(domain.Item{ID: 10})

	// Two distinct credits for the same price within one tick: each must
	// consume a different transaction.
	src := &fakeSource{signals: []domain.RawSignal{
		{ID: "m1", ReceivedAt: now, Body: "INR 2,500.00 credited via UPI. UPI Ref No 111."},
		{ID: "m2", ReceivedAt: now, Body: "INR 2,500.00 credited via UPI. UPI Ref No 222."},
	}}
	sched := testScheduler(enabledCfg(), src, txs, items)

	stats, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 2, txs.completedCount())
	assert.Equal(t, "111", txs.get(txnA.ID).TxnRef)
	assert.Equal(t, "222", txs.get(txnB.ID).TxnRef)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	txs := newFakeTxStore()
	sched := testScheduler(SchedulerConfig{Enabled: true, Interval: 5 * time.Millisecond, Lookback: time.Hour},
		&fakeSource{}, txs, newFakeItemStore())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// Let a few intervals elapse, then stop.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateRunning, sched.State())
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
	assert.Equal(t, StateStopped, sched.State())
}

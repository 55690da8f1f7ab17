package recon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityaks/nftpay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func inr(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeTxStore is an in-memory TransactionStore with compare-and-swap
// semantics matching the postgres implementation. completeErrs injects
// transient storage failures into ConditionalComplete.
type fakeTxStore struct {
	mu            sync.Mutex
	txs           map[string]domain.Transaction
	completeErrs  int // remaining ConditionalComplete calls that fail
	completeCalls int
}

func newFakeTxStore(txs ...domain.Transaction) *fakeTxStore {
	s := &fakeTxStore{txs: make(map[string]domain.Transaction)}
	for _, t := range txs {
		s.txs[t.ID] = t
	}
	return s
}

func (s *fakeTxStore) Create(_ context.Context, t domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[t.ID] = t
	return nil
}

func (s *fakeTxStore) GetByID(_ context.Context, id string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *fakeTxStore) ListPendingINR(_ context.Context, createdAfter time.Time) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, t := range s.txs {
		if t.Status == domain.TxStatusPending && t.Currency == domain.CurrencyINR && !t.CreatedAt.Before(createdAfter) {
			out = append(out, t)
		}
	}
	// oldest first, as the postgres store orders it
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.Before(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (s *fakeTxStore) ConditionalComplete(_ context.Context, id, externalRef string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls++
	if s.completeErrs > 0 {
		s.completeErrs--
		return false, errors.New("storage unavailable")
	}
	t, ok := s.txs[id]
	if !ok || t.Status != domain.TxStatusPending {
		return false, nil
	}
	t.Status = domain.TxStatusCompleted
	t.TxnRef = externalRef
	t.UpdatedAt = time.Now().UTC()
	s.txs[id] = t
	return true, nil
}

func (s *fakeTxStore) MarkFailed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = domain.TxStatusFailed
	s.txs[id] = t
	return nil
}

func (s *fakeTxStore) ListByUser(context.Context, int64, domain.ListOpts) ([]domain.Transaction, error) {
	return nil, nil
}

func (s *fakeTxStore) get(id string) domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs[id]
}

func (s *fakeTxStore) completedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.txs {
		if t.Status == domain.TxStatusCompleted {
			n++
		}
	}
	return n
}

// fakeItemStore records MarkSold calls.
type fakeItemStore struct {
	mu       sync.Mutex
	items    map[int64]domain.Item
	soldErrs int
}

func newFakeItemStore(items ...domain.Item) *fakeItemStore {
	s := &fakeItemStore{items: make(map[int64]domain.Item)}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *fakeItemStore) Create(context.Context, domain.Item) (int64, error) { return 0, nil }

func (s *fakeItemStore) GetByID(_ context.Context, id int64) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return domain.Item{}, domain.ErrNotFound
	}
	return it, nil
}

func (s *fakeItemStore) ListAvailable(context.Context, string, domain.ListOpts) ([]domain.Item, error) {
	return nil, nil
}

func (s *fakeItemStore) Reserve(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.items[id]
	if it.IsSold || it.IsReserved {
		return domain.ErrItemUnavailable
	}
	it.IsReserved = true
	s.items[id] = it
	return nil
}

func (s *fakeItemStore) Release(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.items[id]
	it.IsReserved = false
	s.items[id] = it
	return nil
}

func (s *fakeItemStore) MarkSold(_ context.Context, id, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.soldErrs > 0 {
		s.soldErrs--
		return errors.New("storage unavailable")
	}
	it := s.items[id]
	it.IsSold = true
	it.IsReserved = false
	it.OwnerID = &ownerID
	now := time.Now().UTC()
	it.SoldAt = &now
	s.items[id] = it
	return nil
}

func (s *fakeItemStore) get(id int64) domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

// fakeUserStore returns a fixed buyer.
type fakeUserStore struct {
	users map[int64]domain.User
}

func newFakeUserStore(users ...domain.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[int64]domain.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(_ context.Context, id int64) (domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) GetByEmail(context.Context, string) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}

func (s *fakeUserStore) Create(context.Context, domain.User) (int64, error) { return 0, nil }

// fakeMailer records receipts on a channel; failing makes every send error.
type fakeMailer struct {
	failing  bool
	receipts chan string // transaction ids
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{receipts: make(chan string, 8)}
}

func (m *fakeMailer) SendReceipt(_ context.Context, _, _ string, txn domain.Transaction) error {
	m.receipts <- txn.ID
	if m.failing {
		return errors.New("smtp unavailable")
	}
	return nil
}

// fakeSource yields a fixed set of raw signals and counts Fetch calls.
type fakeSource struct {
	mu      sync.Mutex
	signals []domain.RawSignal
	err     error
	calls   int
}

func (s *fakeSource) Fetch(context.Context, time.Duration) ([]domain.RawSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.signals, s.err
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) fetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

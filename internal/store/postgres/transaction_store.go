package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adityaks/nftpay/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const txSelectCols = `id, user_id, nft_id, payment_mode, payment_status,
	COALESCE(txn_ref, ''), amount, currency, created_at, updated_at`

func scanTransaction(scanner interface{ Scan(dest ...any) error }) (domain.Transaction, error) {
	var t domain.Transaction
	var mode, status, currency string

	err := scanner.Scan(
		&t.ID, &t.UserID, &t.ItemID,
		&mode, &status, &t.TxnRef,
		&t.Amount, &currency,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	t.PaymentMode = domain.PaymentMode(mode)
	t.Status = domain.TxStatus(status)
	t.Currency = domain.Currency(currency)
	return t, nil
}

// Create inserts a new transaction.
func (s *TransactionStore) Create(ctx context.Context, t domain.Transaction) error {
	const query = `
		INSERT INTO transactions (
			id, user_id, nft_id, payment_mode, payment_status,
			txn_ref, amount, currency, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, NOW())`

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.UserID, t.ItemID,
		string(t.PaymentMode), string(t.Status),
		t.TxnRef, t.Amount, string(t.Currency), createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create transaction %s: %w", t.ID, err)
	}
	return nil
}

// GetByID retrieves a single transaction.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+txSelectCols+` FROM transactions WHERE id = $1`, id)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Transaction{}, domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return t, nil
}

// ListPendingINR returns pending INR transactions created after the given
// instant, oldest first. The ordering feeds the matcher's
// first-come-first-served tie-break.
func (s *TransactionStore) ListPendingINR(ctx context.Context, createdAfter time.Time) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txSelectCols+` FROM transactions
		 WHERE payment_status = 'pending' AND currency = 'INR' AND created_at >= $1
		 ORDER BY created_at ASC`, createdAfter)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending INR transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pending transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ConditionalComplete flips the transaction pending→completed and stores the
// external reference as a single compare-and-swap update. The WHERE clause
// on payment_status is what closes the race against concurrent ticks or
// manual completion: exactly one caller ever observes true.
func (s *TransactionStore) ConditionalComplete(ctx context.Context, id, externalRef string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions
		 SET payment_status = 'completed', txn_ref = $2, updated_at = NOW()
		 WHERE id = $1 AND payment_status = 'pending'`,
		id, externalRef)
	if err != nil {
		return false, fmt.Errorf("postgres: conditional complete %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed sets the transaction status to failed.
func (s *TransactionStore) MarkFailed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transactions SET payment_status = 'failed', updated_at = NOW()
		 WHERE id = $1 AND payment_status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark transaction failed %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByUser returns a user's transactions, newest first.
func (s *TransactionStore) ListByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `SELECT ` + txSelectCols + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions by user: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan user transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

var _ domain.TransactionStore = (*TransactionStore)(nil)

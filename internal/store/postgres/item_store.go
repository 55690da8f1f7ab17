package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adityaks/nftpay/internal/domain"
)

// ItemStore implements domain.ItemStore using PostgreSQL.
type ItemStore struct {
	pool *pgxpool.Pool
}

// NewItemStore creates an ItemStore backed by the given pool.
func NewItemStore(pool *pgxpool.Pool) *ItemStore {
	return &ItemStore{pool: pool}
}

const itemSelectCols = `id, title, COALESCE(description, ''), image_url,
	price_inr, price_usd, COALESCE(category, ''),
	is_sold, is_reserved, reserved_at, sold_at, owner_id, created_at`

func scanItem(scanner interface{ Scan(dest ...any) error }) (domain.Item, error) {
	var it domain.Item
	err := scanner.Scan(
		&it.ID, &it.Title, &it.Description, &it.ImageURL,
		&it.PriceINR, &it.PriceUSD, &it.Category,
		&it.IsSold, &it.IsReserved, &it.ReservedAt, &it.SoldAt,
		&it.OwnerID, &it.CreatedAt,
	)
	return it, err
}

// Create inserts a new listing and returns its id.
func (s *ItemStore) Create(ctx context.Context, it domain.Item) (int64, error) {
	const query = `
		INSERT INTO nfts (title, description, image_url, price_inr, price_usd, category)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''))
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		it.Title, it.Description, it.ImageURL, it.PriceINR, it.PriceUSD, it.Category,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create item: %w", err)
	}
	return id, nil
}

// GetByID retrieves a single listing.
func (s *ItemStore) GetByID(ctx context.Context, id int64) (domain.Item, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemSelectCols+` FROM nfts WHERE id = $1`, id)

	it, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Item{}, domain.ErrNotFound
		}
		return domain.Item{}, fmt.Errorf("postgres: get item %d: %w", id, err)
	}
	return it, nil
}

// ListAvailable returns unsold listings, optionally filtered by category.
func (s *ItemStore) ListAvailable(ctx context.Context, category string, opts domain.ListOpts) ([]domain.Item, error) {
	query := `SELECT ` + itemSelectCols + ` FROM nfts WHERE is_sold = FALSE`
	args := []any{}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list available items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Reserve conditionally flags an available item as reserved. The WHERE
// clause makes the reservation a compare-and-swap: two concurrent checkouts
// for the same item cannot both succeed.
func (s *ItemStore) Reserve(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE nfts SET is_reserved = TRUE, reserved_at = NOW()
		 WHERE id = $1 AND is_sold = FALSE AND is_reserved = FALSE`, id)
	if err != nil {
		return fmt.Errorf("postgres: reserve item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemUnavailable
	}
	return nil
}

// Release clears an unredeemed reservation.
func (s *ItemStore) Release(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE nfts SET is_reserved = FALSE, reserved_at = NULL
		 WHERE id = $1 AND is_sold = FALSE`, id)
	if err != nil {
		return fmt.Errorf("postgres: release item %d: %w", id, err)
	}
	return nil
}

// MarkSold sets the sold flag, clears the reservation, and stamps the buyer
// and sale time.
func (s *ItemStore) MarkSold(ctx context.Context, id, ownerID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE nfts
		 SET is_sold = TRUE, is_reserved = FALSE, reserved_at = NULL,
		     sold_at = NOW(), owner_id = $2
		 WHERE id = $1`, id, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: mark item %d sold: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.ItemStore = (*ItemStore)(nil)

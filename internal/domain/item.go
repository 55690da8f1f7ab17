package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a single-unit NFT listing. Each item can be sold exactly once;
// the reservation flags plus the conditional sold update in the store
// enforce that two buyers can never both complete a purchase.
type Item struct {
	ID          int64
	Title       string
	Description string
	ImageURL    string
	PriceINR    decimal.Decimal
	PriceUSD    decimal.Decimal
	Category    string
	IsSold      bool
	IsReserved  bool
	ReservedAt  *time.Time
	SoldAt      *time.Time
	OwnerID     *int64
	CreatedAt   time.Time
}

// Available reports whether the item can currently be reserved for purchase.
func (i Item) Available() bool {
	return !i.IsSold && !i.IsReserved
}

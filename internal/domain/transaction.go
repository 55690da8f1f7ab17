package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus represents the lifecycle state of a purchase transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
)

// PaymentMode identifies the payment rail used for a transaction.
type PaymentMode string

const (
	PaymentModeUPI    PaymentMode = "UPI"
	PaymentModePayPal PaymentMode = "PAYPAL"
)

// Currency is the ISO code of the transaction amount.
type Currency string

const (
	CurrencyINR Currency = "INR"
	CurrencyUSD Currency = "USD"
)

// Transaction records one buyer's intent to pay for one item in one
// currency. INR transactions start pending and are completed by the
// reconciliation engine; USD transactions are confirmed synchronously by
// the payment processor and never pass through reconciliation.
//
// At most one completed transaction may exist per item.
type Transaction struct {
	ID          string // UUID
	UserID      int64
	ItemID      int64
	PaymentMode PaymentMode
	Status      TxStatus
	TxnRef      string // UPI reference / processor id once known
	Amount      decimal.Decimal
	Currency    Currency
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

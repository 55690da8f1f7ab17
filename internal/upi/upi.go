// Package upi builds the buyer-facing UPI payment prompt: a upi://pay deep
// link and its QR code rendering.
package upi

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

// Payee identifies the receiving UPI account.
type Payee struct {
	VPA  string // virtual payment address, e.g. store@okhdfcbank
	Name string // display name shown in the payer's UPI app
}

// IntentURL builds a upi://pay deep link for the given amount and note.
// Amounts are rendered with exactly two fraction digits; the reconciliation
// matcher relies on the paid amount coming back verbatim in the bank alert.
func IntentURL(p Payee, amount decimal.Decimal, note string) string {
	q := url.Values{}
	q.Set("pa", p.VPA)
	if p.Name != "" {
		q.Set("pn", p.Name)
	}
	q.Set("am", amount.StringFixed(2))
	q.Set("cu", "INR")
	if note != "" {
		q.Set("tn", note)
	}
	return "upi://pay?" + q.Encode()
}

// QRPNG renders the payment intent as a PNG QR code of the given pixel
// size.
func QRPNG(p Payee, amount decimal.Decimal, note string, size int) ([]byte, error) {
	png, err := qrcode.Encode(IntentURL(p, amount, note), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("upi: encode qr: %w", err)
	}
	return png, nil
}

// Package recon implements the UPI payment reconciliation engine: parsing
// bank credit alerts into payment signals, matching them against pending
// transactions, and committing the resulting state transitions exactly once.
package recon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/adityaks/nftpay/internal/domain"
)

// Known bank-alert phrasings. Amounts appear either as "INR 2,500.00",
// "Rs. 2500" or "₹2500.00", and occasionally with the currency trailing
// ("2500.00 INR"). Paise are at most two fraction digits.
var (
	amountLeading  = regexp.MustCompile(`(?i)(?:INR|Rs\.?|₹)\s*([0-9,]+(?:\.[0-9]{1,2})?)`)
	amountTrailing = regexp.MustCompile(`(?i)([0-9,]+(?:\.[0-9]{1,2})?)\s*(?:INR|Rs\.?|₹)`)

	// UPI references appear as "UPI Ref No 123456789012", "UPI Txn ID: ..."
	// or "UTR ...".
	refPattern = regexp.MustCompile(`(?i)(?:UPI\s*)?(?:Ref(?:erence)?\s*No\.?|Txn\s*ID|UTR)\s*[:#-]?\s*([A-Za-z0-9-]+)`)
)

// noteLimit bounds how much alert text is carried on a PaymentSignal.
const noteLimit = 500

// ParseSignal extracts a structured PaymentSignal from a raw credit alert.
// A body with no recognizable credit amount yields domain.ErrParseFailure;
// the caller drops the signal and continues with the rest of the tick.
func ParseSignal(raw domain.RawSignal) (domain.PaymentSignal, error) {
	amount, ok := parseAmount(raw.Body)
	if !ok {
		return domain.PaymentSignal{}, fmt.Errorf("%w: signal %s", domain.ErrParseFailure, raw.ID)
	}

	note := raw.Body
	if len(note) > noteLimit {
		note = note[:noteLimit]
	}

	return domain.PaymentSignal{
		Amount:     amount,
		Currency:   domain.CurrencyINR,
		Reference:  parseReference(raw.Body),
		Note:       note,
		ObservedAt: raw.ReceivedAt,
		SourceID:   raw.ID,
	}, nil
}

// parseAmount finds the first recognizable INR amount in text.
func parseAmount(text string) (decimal.Decimal, bool) {
	m := amountLeading.FindStringSubmatch(text)
	if m == nil {
		m = amountTrailing.FindStringSubmatch(text)
	}
	if m == nil {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseReference extracts the UPI reference / UTR fragment, if present.
func parseReference(text string) string {
	if m := refPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

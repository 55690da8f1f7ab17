package recon

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/adityaks/nftpay/internal/domain"
)

// vpaPattern recognizes UPI virtual payment addresses (handle@psp) inside
// alert text.
var vpaPattern = regexp.MustCompile(`[A-Za-z0-9._-]{2,}@[A-Za-z]{2,}`)

// Matcher pairs a parsed payment signal with at most one pending INR
// transaction.
type Matcher struct {
	payeeVPA  string
	payeeName string
	lookback  time.Duration
	logger    *slog.Logger
}

// NewMatcher creates a Matcher. payeeVPA and payeeName are optional; when
// set they enable the payee guard that rejects alerts addressed to a
// different UPI handle.
func NewMatcher(payeeVPA, payeeName string, lookback time.Duration, logger *slog.Logger) *Matcher {
	return &Matcher{
		payeeVPA:  strings.ToLower(strings.TrimSpace(payeeVPA)),
		payeeName: strings.ToLower(strings.TrimSpace(payeeName)),
		lookback:  lookback,
		logger:    logger.With(slog.String("component", "matcher")),
	}
}

// Match selects the pending INR transaction whose amount equals the
// signal's amount exactly. Amounts are quantized to paise upstream, so
// equality carries no tolerance; see the store schema (DECIMAL(10,2)).
//
// When several candidates share the same price the earliest createdAt wins.
// This first-come-first-served tie-break is deliberate: the oldest pending
// purchase was prompted to pay first, so an ambiguous credit is attributed
// to it.
//
// Returns nil when no candidate matches.
func (m *Matcher) Match(now time.Time, sig domain.PaymentSignal, candidates []domain.Transaction) *domain.Transaction {
	if m.rejectedByPayeeGuard(sig) {
		m.logger.Debug("signal names a different payee, rejected",
			slog.String("signal_id", sig.SourceID),
		)
		return nil
	}

	cutoff := now.Add(-m.lookback)

	var best *domain.Transaction
	for i := range candidates {
		t := &candidates[i]
		if t.Status != domain.TxStatusPending || t.Currency != domain.CurrencyINR {
			continue
		}
		if t.CreatedAt.Before(cutoff) {
			continue
		}
		if !t.Amount.Equal(sig.Amount) {
			continue
		}
		if best == nil || t.CreatedAt.Before(best.CreatedAt) {
			best = t
		}
	}

	if best != nil {
		m.logger.Debug("signal matched",
			slog.String("signal_id", sig.SourceID),
			slog.String("transaction_id", best.ID),
			slog.String("amount", sig.Amount.StringFixed(2)),
		)
	}
	return best
}

// rejectedByPayeeGuard reports whether the signal clearly names a payee
// other than the configured one. The guard only fires when the alert text
// contains at least one UPI handle and neither the configured VPA nor the
// configured display name appears. Alerts that omit the payee entirely are
// allowed through, matching is then on amount alone.
func (m *Matcher) rejectedByPayeeGuard(sig domain.PaymentSignal) bool {
	if m.payeeVPA == "" && m.payeeName == "" {
		return false
	}

	text := strings.ToLower(sig.Reference + "\n" + sig.Note)

	handles := vpaPattern.FindAllString(text, -1)
	if len(handles) == 0 {
		return false
	}
	for _, h := range handles {
		if m.payeeVPA != "" && strings.EqualFold(h, m.payeeVPA) {
			return false
		}
	}
	if m.payeeName != "" && strings.Contains(text, m.payeeName) {
		return false
	}
	return true
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawSignal is one unparsed candidate payment event as delivered by a
// signal source, typically a bank credit-alert email. ID is the
// source-native identifier (e.g. IMAP message id) and is the key used for
// cross-tick de-duplication.
type RawSignal struct {
	ID         string
	ReceivedAt time.Time
	Body       string
}

// PaymentSignal is the structured form of a credit alert. It is ephemeral:
// created during a scheduler tick, consumed within it, never persisted.
type PaymentSignal struct {
	Amount     decimal.Decimal
	Currency   Currency // fixed to INR for this engine
	Reference  string   // UPI ref / UTR extracted from the alert, may be empty
	Note       string   // truncated alert text, kept for matching and audit logs
	ObservedAt time.Time
	SourceID   string // RawSignal.ID that produced this signal
}

// OutcomeStatus classifies the result of applying one signal.
type OutcomeStatus string

const (
	OutcomeMatched        OutcomeStatus = "matched"
	OutcomeUnmatched      OutcomeStatus = "unmatched"
	OutcomeAlreadyHandled OutcomeStatus = "already_handled"
	OutcomeCommitFailed   OutcomeStatus = "commit_failed"
)

// ReconciliationOutcome pairs a signal with the transaction it was applied
// to, or records why it was not.
type ReconciliationOutcome struct {
	Signal        PaymentSignal
	Status        OutcomeStatus
	TransactionID string
}

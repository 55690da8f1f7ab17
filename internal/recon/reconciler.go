package recon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adityaks/nftpay/internal/domain"
)

// ReceiptMailer delivers a payment receipt to the buyer. Delivery is
// best-effort: the reconciler never awaits success and a failure never
// rolls back the committed state change.
type ReceiptMailer interface {
	SendReceipt(ctx context.Context, to, name string, txn domain.Transaction) error
}

// OpsAlerter raises operator alerts for reconciliation anomalies.
type OpsAlerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Reconciler executes the pending→completed / available→sold state
// transition for a matched signal. The compare-and-swap inside
// TransactionStore.ConditionalComplete is what guarantees exactly-once:
// whichever actor flips the row wins, everyone else observes
// already-handled and never touches the item.
type Reconciler struct {
	txs    domain.TransactionStore
	items  domain.ItemStore
	users  domain.UserStore
	mailer ReceiptMailer
	alerts OpsAlerter
	logger *slog.Logger

	// notifyTimeout bounds the fire-and-forget receipt goroutine.
	notifyTimeout time.Duration
}

// NewReconciler creates a Reconciler. mailer and alerts may be nil, in
// which case the corresponding side effects are skipped.
func NewReconciler(
	txs domain.TransactionStore,
	items domain.ItemStore,
	users domain.UserStore,
	mailer ReceiptMailer,
	alerts OpsAlerter,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		txs:           txs,
		items:         items,
		users:         users,
		mailer:        mailer,
		alerts:        alerts,
		logger:        logger.With(slog.String("component", "reconciler")),
		notifyTimeout: 15 * time.Second,
	}
}

// Apply commits one matched signal against its transaction.
//
// A storage error on the conditional update is retried once immediately; a
// second failure yields a commit_failed outcome and the caller must leave
// the signal unconsumed (not marked seen) so a later tick retries it.
func (r *Reconciler) Apply(ctx context.Context, sig domain.PaymentSignal, txn domain.Transaction) domain.ReconciliationOutcome {
	outcome := domain.ReconciliationOutcome{Signal: sig, TransactionID: txn.ID}

	externalRef := sig.Reference
	if externalRef == "" {
		externalRef = sig.SourceID
	}

	won, err := r.conditionalCompleteWithRetry(ctx, txn.ID, externalRef)
	if err != nil {
		r.logger.Error("commit failed after retry, leaving signal for a later tick",
			slog.String("transaction_id", txn.ID),
			slog.String("signal_id", sig.SourceID),
			slog.String("error", err.Error()),
		)
		r.alert(ctx, "commit_failed", "Reconciliation commit failed",
			fmt.Sprintf("transaction %s, signal %s: %v", txn.ID, sig.SourceID, err))
		outcome.Status = domain.OutcomeCommitFailed
		return outcome
	}
	if !won {
		// A previous tick or a concurrent manual action completed the
		// transaction first. Not an error, and the item must not be
		// touched again.
		r.logger.Info("transaction no longer pending, signal discarded",
			slog.String("transaction_id", txn.ID),
			slog.String("signal_id", sig.SourceID),
		)
		outcome.Status = domain.OutcomeAlreadyHandled
		return outcome
	}

	if err := r.markSoldWithRetry(ctx, txn.ItemID, txn.UserID); err != nil {
		// The transaction is authoritative and already completed; the item
		// flags are now stale until an operator intervenes.
		r.logger.Error("item update failed after completed transaction",
			slog.String("transaction_id", txn.ID),
			slog.Int64("item_id", txn.ItemID),
			slog.String("error", err.Error()),
		)
		r.alert(ctx, "commit_failed", "Item flags out of sync",
			fmt.Sprintf("transaction %s completed but item %d not marked sold: %v", txn.ID, txn.ItemID, err))
	}

	r.logger.Info("reconciliation completed transaction",
		slog.String("transaction_id", txn.ID),
		slog.Int64("item_id", txn.ItemID),
		slog.String("amount", sig.Amount.StringFixed(2)),
		slog.String("upi_ref", externalRef),
	)

	r.sendReceiptAsync(txn, externalRef)

	outcome.Status = domain.OutcomeMatched
	return outcome
}

func (r *Reconciler) conditionalCompleteWithRetry(ctx context.Context, id, externalRef string) (bool, error) {
	won, err := r.txs.ConditionalComplete(ctx, id, externalRef)
	if err == nil {
		return won, nil
	}
	r.logger.Warn("conditional complete failed, retrying once",
		slog.String("transaction_id", id),
		slog.String("error", err.Error()),
	)
	return r.txs.ConditionalComplete(ctx, id, externalRef)
}

func (r *Reconciler) markSoldWithRetry(ctx context.Context, itemID, ownerID int64) error {
	if err := r.items.MarkSold(ctx, itemID, ownerID); err == nil {
		return nil
	}
	return r.items.MarkSold(ctx, itemID, ownerID)
}

// sendReceiptAsync emails the buyer in the background. It deliberately does
// not use the tick's context: the commit is already durable and shutdown
// should not cancel an in-flight receipt.
func (r *Reconciler) sendReceiptAsync(txn domain.Transaction, externalRef string) {
	if r.mailer == nil {
		return
	}
	txn.Status = domain.TxStatusCompleted
	txn.TxnRef = externalRef

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.notifyTimeout)
		defer cancel()

		user, err := r.users.GetByID(ctx, txn.UserID)
		if err != nil {
			r.logger.Warn("receipt skipped, buyer lookup failed",
				slog.String("transaction_id", txn.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		name := user.Name
		if name == "" {
			name = "Buyer"
		}
		if err := r.mailer.SendReceipt(ctx, user.Email, name, txn); err != nil {
			r.logger.Warn("receipt delivery failed",
				slog.String("transaction_id", txn.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (r *Reconciler) alert(ctx context.Context, event, title, message string) {
	if r.alerts == nil {
		return
	}
	if err := r.alerts.Notify(ctx, event, title, message); err != nil {
		r.logger.Debug("ops alert failed", slog.String("error", err.Error()))
	}
}

package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/adityaks/nftpay/internal/domain"
	"github.com/adityaks/nftpay/internal/upi"
)

// reservationTTL bounds how long a checkout lock on one item is held while
// the reservation row is written.
const reservationTTL = 30 * time.Second

// PurchaseHandler serves the checkout flow: reserve an item, create a
// pending INR transaction, and hand the buyer a UPI payment prompt. The
// reconciliation engine completes the transaction once the bank alert
// arrives.
type PurchaseHandler struct {
	items  domain.ItemStore
	txs    domain.TransactionStore
	users  domain.UserStore
	locks  domain.LockManager
	payee  upi.Payee
	logger *slog.Logger
}

// NewPurchaseHandler creates a PurchaseHandler.
func NewPurchaseHandler(
	items domain.ItemStore,
	txs domain.TransactionStore,
	users domain.UserStore,
	locks domain.LockManager,
	payee upi.Payee,
	logger *slog.Logger,
) *PurchaseHandler {
	return &PurchaseHandler{
		items:  items,
		txs:    txs,
		users:  users,
		locks:  locks,
		payee:  payee,
		logger: logger,
	}
}

type checkoutRequest struct {
	UserID int64 `json:"user_id"`
	ItemID int64 `json:"nft_id"`
}

type checkoutResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	UPIIntent     string `json:"upi_intent"`
	QRPNGBase64   string `json:"qr_png_base64"`
}

// Checkout reserves an item and creates a pending INR transaction.
// POST /api/purchase/checkout
func (h *PurchaseHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.ItemID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id and nft_id are required")
		return
	}

	ctx := r.Context()

	if _, err := h.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	// Serialize reservation attempts per item. The conditional UPDATE in
	// Reserve is the real guard; the lock just avoids needless contention.
	unlock, err := h.locks.Acquire(ctx, fmt.Sprintf("checkout:item:%d", req.ItemID), reservationTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, "item is being checked out by someone else")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to lock item")
		return
	}
	defer unlock()

	item, err := h.items.GetByID(ctx, req.ItemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load item")
		return
	}

	if !item.Available() {
		writeError(w, http.StatusConflict, "item is sold or reserved")
		return
	}

	if err := h.items.Reserve(ctx, item.ID); err != nil {
		if errors.Is(err, domain.ErrItemUnavailable) {
			writeError(w, http.StatusConflict, "item is sold or reserved")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reserve item")
		return
	}

	txn := domain.Transaction{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		ItemID:      item.ID,
		PaymentMode: domain.PaymentModeUPI,
		Status:      domain.TxStatusPending,
		Amount:      item.PriceINR,
		Currency:    domain.CurrencyINR,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.txs.Create(ctx, txn); err != nil {
		// Roll the reservation back so the item is purchasable again.
		if relErr := h.items.Release(ctx, item.ID); relErr != nil {
			h.logger.Error("reservation rollback failed",
				slog.Int64("item_id", item.ID),
				slog.String("error", relErr.Error()),
			)
		}
		h.logger.Error("create transaction failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	note := fmt.Sprintf("order %s", txn.ID)
	qr, err := upi.QRPNG(h.payee, txn.Amount, note, 256)
	if err != nil {
		h.logger.Warn("qr render failed, responding with intent only",
			slog.String("transaction_id", txn.ID),
			slog.String("error", err.Error()),
		)
	}

	h.logger.Info("checkout created pending transaction",
		slog.String("transaction_id", txn.ID),
		slog.Int64("item_id", item.ID),
		slog.String("amount", txn.Amount.StringFixed(2)),
	)

	writeJSON(w, http.StatusCreated, checkoutResponse{
		TransactionID: txn.ID,
		Status:        string(txn.Status),
		Amount:        txn.Amount.StringFixed(2),
		Currency:      string(txn.Currency),
		UPIIntent:     upi.IntentURL(h.payee, txn.Amount, note),
		QRPNGBase64:   base64.StdEncoding.EncodeToString(qr),
	})
}

// Status returns the current payment status of a transaction. Buyers poll
// this after paying; it flips to completed once reconciliation matches the
// bank alert.
// GET /api/purchase/{id}/status
func (h *PurchaseHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	txn, err := h.txs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load transaction")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": txn.ID,
		"status":         string(txn.Status),
		"amount":         txn.Amount.StringFixed(2),
		"currency":       string(txn.Currency),
		"txn_ref":        txn.TxnRef,
		"created_at":     txn.CreatedAt.UTC().Format(time.RFC3339),
	})
}

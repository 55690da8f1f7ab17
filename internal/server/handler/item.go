package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/adityaks/nftpay/internal/domain"
)

// ItemHandler serves NFT listing endpoints.
type ItemHandler struct {
	items  domain.ItemStore
	logger *slog.Logger
}

// NewItemHandler creates an ItemHandler.
func NewItemHandler(items domain.ItemStore, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{items: items, logger: logger}
}

type itemResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"image_url"`
	PriceINR    string  `json:"price_inr"`
	PriceUSD    string  `json:"price_usd"`
	Category    string  `json:"category,omitempty"`
	IsSold      bool    `json:"is_sold"`
	IsReserved  bool    `json:"is_reserved"`
	SoldAt      *string `json:"sold_at,omitempty"`
}

func toItemResponse(it domain.Item) itemResponse {
	resp := itemResponse{
		ID:          it.ID,
		Title:       it.Title,
		Description: it.Description,
		ImageURL:    it.ImageURL,
		PriceINR:    it.PriceINR.StringFixed(2),
		PriceUSD:    it.PriceUSD.StringFixed(2),
		Category:    it.Category,
		IsSold:      it.IsSold,
		IsReserved:  it.IsReserved,
	}
	if it.SoldAt != nil {
		s := it.SoldAt.UTC().Format(time.RFC3339)
		resp.SoldAt = &s
	}
	return resp
}

// ListItems returns available (unsold) listings.
// GET /api/nfts?category=&limit=&offset=
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.ListAvailable(r.Context(), r.URL.Query().Get("category"), parseListOpts(r))
	if err != nil {
		h.logger.Error("list items failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, toItemResponse(it))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetItem returns a single listing by id.
// GET /api/nfts/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	it, err := h.items.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		h.logger.Error("get item failed", slog.Int64("id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load item")
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it))
}

package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/app"
)

// stockLevels handles GET /api/v1/stock.
func (h *Handler) stockLevels(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.StockLevels(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Levels)
}

// adjustStock handles POST /api/v1/stock/{productID}/adjust.
// Body: { delta, note? }. Delta may be negative but may never push on-hand
// below zero or below the reserved quantity.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(chi.URLParam(r, "productID"))
	if err != nil || productID <= 0 {
		writeError(w, r, "invalid product id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var req app.AdjustStockRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	if req.Delta.IsZero() {
		writeError(w, r, "delta must not be zero", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	if err := h.svc.AdjustStock(r.Context(), productID, actor(r), req.Delta, req.Note); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listPaymentTypes handles GET /api/v1/payment-types.
func (h *Handler) listPaymentTypes(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPaymentTypes(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.PaymentTypes)
}

// openReceivables handles GET /api/v1/reports/receivables.
func (h *Handler) openReceivables(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.OpenReceivables(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Receivables)
}

// orderSummary handles GET /api/v1/reports/orders-summary.
func (h *Handler) orderSummary(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.OrderSummary(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Summary)
}

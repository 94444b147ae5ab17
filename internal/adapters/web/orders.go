package web

import (
	"net/http"

	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/app"
	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/core"
)

// createOrder handles POST /api/v1/orders.
// Body: { customer_name, notes?, shipping_cost?, discount?, other_expenses?,
// payment_type_id?, installment_spec?, items: [{product_id, quantity, unit_price?}] }
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), actor(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result.Order)
}

// listOrders handles GET /api/v1/orders. Accepts an optional ?status= filter.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var statusPtr *core.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := core.OrderStatus(s)
		statusPtr = &status
	}

	result, err := h.svc.ListOrders(r.Context(), statusPtr)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Orders)
}

// getOrder handles GET /api/v1/orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}

// replaceItems handles PUT /api/v1/orders/{id}/items. The submitted item set
// replaces the existing one atomically; totals are recomputed server-side.
func (h *Handler) replaceItems(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req app.ReplaceItemsRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.svc.ReplaceItems(r.Context(), id, actor(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}

// updatePaymentTerms handles PUT /api/v1/orders/{id}/payment-terms.
func (h *Handler) updatePaymentTerms(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req app.PaymentTermsRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.svc.UpdatePaymentTerms(r.Context(), id, actor(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}

// markPrinted handles POST /api/v1/orders/{id}/print.
func (h *Handler) markPrinted(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.MarkPrinted(r.Context(), id, actor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}

// lifecycle wraps the shared shape of the six transition endpoints.
func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request,
	op func(r *http.Request, id int) (*app.OrderResult, error)) {

	id, ok := orderID(w, r)
	if !ok {
		return
	}
	result, err := op(r, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Order)
}

// sendQuote handles POST /api/v1/orders/{id}/send.
func (h *Handler) sendQuote(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(r *http.Request, id int) (*app.OrderResult, error) {
		return h.svc.SendQuote(r.Context(), id, actor(r))
	})
}

// reserve handles POST /api/v1/orders/{id}/reserve.
func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(r *http.Request, id int) (*app.OrderResult, error) {
		return h.svc.Reserve(r.Context(), id, actor(r))
	})
}

// unreserve handles POST /api/v1/orders/{id}/unreserve.
func (h *Handler) unreserve(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(r *http.Request, id int) (*app.OrderResult, error) {
		return h.svc.Unreserve(r.Context(), id, actor(r))
	})
}

// invoice handles POST /api/v1/orders/{id}/invoice.
func (h *Handler) invoice(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(r *http.Request, id int) (*app.OrderResult, error) {
		return h.svc.Invoice(r.Context(), id, actor(r))
	})
}

// uninvoice handles POST /api/v1/orders/{id}/uninvoice.
func (h *Handler) uninvoice(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(r *http.Request, id int) (*app.OrderResult, error) {
		return h.svc.Uninvoice(r.Context(), id, actor(r))
	})
}

// cancel handles POST /api/v1/orders/{id}/cancel.
func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, func(r *http.Request, id int) (*app.OrderResult, error) {
		return h.svc.Cancel(r.Context(), id, actor(r))
	})
}

// postReceivables handles POST /api/v1/orders/{id}/receivables.
func (h *Handler) postReceivables(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.PostReceivables(r.Context(), id, actor(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result.Installments)
}

// reverseReceivables handles DELETE /api/v1/orders/{id}/receivables.
func (h *Handler) reverseReceivables(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	if err := h.svc.ReverseReceivables(r.Context(), id, actor(r)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listInstallments handles GET /api/v1/orders/{id}/receivables.
func (h *Handler) listInstallments(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListInstallments(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Installments)
}

// listEvents handles GET /api/v1/orders/{id}/events.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetOrderEvents(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Events)
}

// listMovements handles GET /api/v1/orders/{id}/movements.
func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetOrderMovements(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, result.Movements)
}

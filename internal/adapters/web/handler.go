package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/app"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc      app.ApplicationService
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, log *slog.Logger) http.Handler {
	h := &Handler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		// Order aggregate
		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Put("/orders/{id}/items", h.replaceItems)
		r.Put("/orders/{id}/payment-terms", h.updatePaymentTerms)
		r.Post("/orders/{id}/print", h.markPrinted)

		// Lifecycle transitions
		r.Post("/orders/{id}/send", h.sendQuote)
		r.Post("/orders/{id}/reserve", h.reserve)
		r.Post("/orders/{id}/unreserve", h.unreserve)
		r.Post("/orders/{id}/invoice", h.invoice)
		r.Post("/orders/{id}/uninvoice", h.uninvoice)
		r.Post("/orders/{id}/cancel", h.cancel)

		// Receivables
		r.Post("/orders/{id}/receivables", h.postReceivables)
		r.Delete("/orders/{id}/receivables", h.reverseReceivables)
		r.Get("/orders/{id}/receivables", h.listInstallments)

		// Audit trails
		r.Get("/orders/{id}/events", h.listEvents)
		r.Get("/orders/{id}/movements", h.listMovements)

		// Stock
		r.Get("/stock", h.stockLevels)
		r.Post("/stock/{productID}/adjust", h.adjustStock)

		// Reference data and reports
		r.Get("/payment-types", h.listPaymentTypes)
		r.Get("/reports/receivables", h.openReceivables)
		r.Get("/reports/orders-summary", h.orderSummary)
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// actor reads the X-Actor header identifying who performed the operation.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "system"
}

// orderID extracts and parses the {id} URL parameter.
func orderID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid order id", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an
// appropriate error response on failure. Returns HTTP 413 when the body
// exceeds the size limit set by RequestBodyLimit middleware; HTTP 400 for all
// other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// decodeValid decodes the body into v and runs struct validation on it.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, r, "validation failed: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

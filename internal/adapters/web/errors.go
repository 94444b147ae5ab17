package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Detail    any    `json:"detail,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetail(w, r, message, code, status, nil)
}

func writeErrorDetail(w http.ResponseWriter, r *http.Request, message, code string, status int, detail any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Detail:    detail,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps core error types to HTTP statuses. Shortage reports ride
// along in the detail field so API clients can show per-item availability.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *core.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, r, err.Error(), notFound.Code(), http.StatusNotFound)
		return
	}

	var insufficient *core.InsufficientStockError
	if errors.As(err, &insufficient) {
		writeErrorDetail(w, r, err.Error(), insufficient.Code(), http.StatusConflict, insufficient.Shortages)
		return
	}

	var invalidTransition *core.InvalidTransitionError
	if errors.As(err, &invalidTransition) {
		writeError(w, r, err.Error(), invalidTransition.Code(), http.StatusConflict)
		return
	}

	var notEditable *core.NotEditableError
	if errors.As(err, &notEditable) {
		writeError(w, r, err.Error(), notEditable.Code(), http.StatusConflict)
		return
	}

	var partiallySettled *core.PartiallySettledError
	if errors.As(err, &partiallySettled) {
		writeError(w, r, err.Error(), partiallySettled.Code(), http.StatusConflict)
		return
	}

	var conflict *core.ConflictError
	if errors.As(err, &conflict) {
		writeError(w, r, err.Error(), conflict.Code(), http.StatusConflict)
		return
	}

	var invalidPayment *core.InvalidPaymentTypeError
	if errors.As(err, &invalidPayment) {
		writeError(w, r, err.Error(), invalidPayment.Code(), http.StatusUnprocessableEntity)
		return
	}

	var noSpec *core.NoInstallmentSpecError
	if errors.As(err, &noSpec) {
		writeError(w, r, err.Error(), noSpec.Code(), http.StatusUnprocessableEntity)
		return
	}

	writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
}

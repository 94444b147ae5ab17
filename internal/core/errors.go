package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Error codes surfaced to callers. The HTTP adapter maps these to the
// structured payloads the consuming UI renders.
const (
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeOrderNotEditable    = "ORDER_NOT_EDITABLE"
	CodeInvalidPaymentType  = "INVALID_PAYMENT_TYPE"
	CodeNoInstallmentSpec   = "NO_INSTALLMENT_SPEC"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodePartiallySettled    = "PARTIALLY_SETTLED"
	CodeNotFound            = "NOT_FOUND"
)

// InvalidTransitionError is returned when a requested lifecycle action is not
// legal from the order's current status. Never retried automatically.
type InvalidTransitionError struct {
	OrderID int
	Action  string
	From    OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d: cannot %s from status %s", e.OrderID, e.Action, e.From)
}

func (e *InvalidTransitionError) Code() string { return CodeInvalidTransition }

// StockShortage names one product that could not be reserved and by how much.
type StockShortage struct {
	ProductID   int             `json:"product_id"`
	ProductCode string          `json:"product_code"`
	Requested   decimal.Decimal `json:"requested"`
	Available   decimal.Decimal `json:"available"`
}

// InsufficientStockError aggregates every short item of a failed batch
// reservation. The batch leaves no partial reservation behind.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (requested %s, available %s)",
			s.ProductCode, s.Requested.String(), s.Available.String()))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Code() string { return CodeInsufficientStock }

// NotEditableError is returned when a line-item edit is attempted outside an
// editable status.
type NotEditableError struct {
	OrderID int
	Status  OrderStatus
}

func (e *NotEditableError) Error() string {
	return fmt.Sprintf("order %d is not editable in status %s", e.OrderID, e.Status)
}

func (e *NotEditableError) Code() string { return CodeOrderNotEditable }

// InvalidPaymentTypeError is returned when receivables posting is requested
// for an order without a term-based payment type.
type InvalidPaymentTypeError struct {
	OrderID        int
	Name           string
	Classification PaymentClassification
}

func (e *InvalidPaymentTypeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("order %d has no payment type assigned", e.OrderID)
	}
	return fmt.Sprintf("order %d: payment type %q is %s, receivables require a TERM type",
		e.OrderID, e.Name, e.Classification)
}

func (e *InvalidPaymentTypeError) Code() string { return CodeInvalidPaymentType }

// NoInstallmentSpecError is returned when receivables posting is requested
// for an order with no installment schedule configured.
type NoInstallmentSpecError struct {
	OrderID int
}

func (e *NoInstallmentSpecError) Error() string {
	return fmt.Sprintf("order %d has no installment spec configured (e.g. \"30 60 90\")", e.OrderID)
}

func (e *NoInstallmentSpecError) Code() string { return CodeNoInstallmentSpec }

// ConflictError wraps lock contention that survived the bounded retry loop.
// Callers own any further retry policy.
type ConflictError struct {
	Attempts int
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("operation aborted after %d attempts due to lock contention: %v", e.Attempts, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func (e *ConflictError) Code() string { return CodeConcurrencyConflict }

// PartiallySettledError blocks receivables reversal when downstream
// collections have already recorded payments against the installments.
// Financial data is never silently destroyed.
type PartiallySettledError struct {
	OrderID      int
	SettledCount int
	SettledTotal decimal.Decimal
}

func (e *PartiallySettledError) Error() string {
	return fmt.Sprintf("order %d: %d installment(s) already settled for a total of %s, reversal refused",
		e.OrderID, e.SettledCount, e.SettledTotal.StringFixed(2))
}

func (e *PartiallySettledError) Code() string { return CodePartiallySettled }

// NotFoundError reports a missing order or product.
type NotFoundError struct {
	Kind string
	ID   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Code() string { return CodeNotFound }

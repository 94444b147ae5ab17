package app

import (
	"github.com/shopspring/decimal"

	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/core"
)

// Request payloads accepted by the HTTP adapter. Validation tags cover the
// structural rules; domain rules (stock, status gating) live in core.

type ItemRequest struct {
	ProductID int             `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	// UnitPrice zero means "snapshot the current catalog price".
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateOrderRequest struct {
	CustomerName    string          `json:"customer_name" validate:"required,max=200"`
	Notes           string          `json:"notes" validate:"max=2000"`
	ShippingCost    decimal.Decimal `json:"shipping_cost"`
	Discount        decimal.Decimal `json:"discount"`
	OtherExpenses   decimal.Decimal `json:"other_expenses"`
	PaymentTypeID   *int            `json:"payment_type_id" validate:"omitempty,gt=0"`
	InstallmentSpec string          `json:"installment_spec" validate:"max=200"`
	Items           []ItemRequest   `json:"items" validate:"required,min=1,dive"`
}

type ReplaceItemsRequest struct {
	Items []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

type PaymentTermsRequest struct {
	PaymentTypeID   *int   `json:"payment_type_id" validate:"omitempty,gt=0"`
	InstallmentSpec string `json:"installment_spec" validate:"max=200"`
}

type AdjustStockRequest struct {
	Delta decimal.Decimal `json:"delta"`
	Note  string          `json:"note" validate:"max=500"`
}

// Result wrappers returned to the HTTP adapter.

type OrderResult struct {
	Order *core.Order `json:"order"`
}

type OrderListResult struct {
	Orders []core.Order `json:"orders"`
}

type InstallmentListResult struct {
	Installments []core.Installment `json:"installments"`
}

type EventListResult struct {
	Events []core.OrderEvent `json:"events"`
}

type MovementListResult struct {
	Movements []core.StockMovement `json:"movements"`
}

type StockResult struct {
	Levels []core.StockLevel `json:"levels"`
}

type PaymentTypeListResult struct {
	PaymentTypes []core.PaymentType `json:"payment_types"`
}

type ReceivablesReportResult struct {
	Receivables []core.OpenReceivable `json:"receivables"`
}

type SummaryResult struct {
	Summary []core.StatusSummary `json:"summary"`
}

func (r CreateOrderRequest) toCoreInput(actor string) core.CreateOrderInput {
	return core.CreateOrderInput{
		CustomerName:    r.CustomerName,
		Notes:           r.Notes,
		ShippingCost:    r.ShippingCost,
		Discount:        r.Discount,
		OtherExpenses:   r.OtherExpenses,
		PaymentTypeID:   r.PaymentTypeID,
		InstallmentSpec: r.InstallmentSpec,
		Items:           toCoreItems(r.Items),
		Actor:           actor,
	}
}

func toCoreItems(items []ItemRequest) []core.OrderItemInput {
	out := make([]core.OrderItemInput, len(items))
	for i, item := range items {
		out[i] = core.OrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return out
}

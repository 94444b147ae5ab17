package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusQuoteOpen      OrderStatus = "QUOTE_OPEN"
	StatusQuoteSent      OrderStatus = "QUOTE_SENT"
	StatusOrderGenerated OrderStatus = "ORDER_GENERATED"
	StatusInvoiced       OrderStatus = "INVOICED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

// IsQuote reports whether the status is one of the pre-commitment states
// with no inventory impact.
func (s OrderStatus) IsQuote() bool {
	return s == StatusQuoteOpen || s == StatusQuoteSent
}

type Order struct {
	ID                 int              `json:"id"`
	OrderNumber        string           `json:"order_number"`
	CustomerName       string           `json:"customer_name"`
	Status             OrderStatus      `json:"status"`
	ReservedFromStatus *OrderStatus     `json:"reserved_from_status,omitempty"`
	ItemsTotal         decimal.Decimal  `json:"items_total"`
	ShippingCost       decimal.Decimal  `json:"shipping_cost"`
	Discount           decimal.Decimal  `json:"discount"`
	OtherExpenses      decimal.Decimal  `json:"other_expenses"`
	Total              decimal.Decimal  `json:"total"`
	PaymentTypeID      *int             `json:"payment_type_id,omitempty"`
	InstallmentSpec    string           `json:"installment_spec"`
	Printed            bool             `json:"printed"`
	PrintedAt          *time.Time       `json:"printed_at,omitempty"`
	PrintedBy          *string          `json:"printed_by,omitempty"`
	StockPosted        bool             `json:"stock_posted"`
	AccountsPosted     bool             `json:"accounts_posted"`
	AccountsPostedAt   *time.Time       `json:"accounts_posted_at,omitempty"`
	AccountsPostedBy   *string          `json:"accounts_posted_by,omitempty"`
	Notes              string           `json:"notes"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	Items              []OrderItem      `json:"items"`
}

// OrderItem carries a price snapshot: UnitPrice is the price agreed when the
// item was added, never a live catalog lookup.
type OrderItem struct {
	ID          int             `json:"id"`
	OrderID     int             `json:"order_id"`
	LineNumber  int             `json:"line_number"`
	ProductID   int             `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// OrderItemInput is one requested line in a create or replace-items call.
// UnitPrice zero means "snapshot the current catalog price".
type OrderItemInput struct {
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Product struct {
	ID          int             `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	QtyOnHand   decimal.Decimal `json:"qty_on_hand"`
	QtyReserved decimal.Decimal `json:"qty_reserved"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

type MovementType string

const (
	MovementReservation MovementType = "RESERVATION"
	MovementRelease     MovementType = "RELEASE"
	MovementDeduction   MovementType = "DEDUCTION"
	MovementRestoration MovementType = "RESTORATION"
	MovementAdjustment  MovementType = "ADJUSTMENT"
)

// StockMovement is an immutable ledger row. Reversing an effect appends a
// compensating movement; rows are never updated or deleted.
type StockMovement struct {
	ID           int             `json:"id"`
	ProductID    int             `json:"product_id"`
	OrderID      *int            `json:"order_id,omitempty"`
	MovementType MovementType    `json:"movement_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Actor        string          `json:"actor"`
	Note         string          `json:"note"`
	CreatedAt    time.Time       `json:"created_at"`
}

type PaymentClassification string

const (
	PaymentTerm      PaymentClassification = "TERM"
	PaymentImmediate PaymentClassification = "IMMEDIATE"
)

type PaymentType struct {
	ID             int                   `json:"id"`
	Name           string                `json:"name"`
	Classification PaymentClassification `json:"classification"`
	IsActive       bool                  `json:"is_active"`
}

type Installment struct {
	ID         int             `json:"id"`
	OrderID    int             `json:"order_id"`
	Seq        int             `json:"seq"`
	OffsetDays int             `json:"offset_days"`
	DueDate    time.Time       `json:"due_date"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	PostedBy   string          `json:"posted_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OrderEvent is one row of the append-only transition log.
type OrderEvent struct {
	ID         int          `json:"id"`
	OrderID    int          `json:"order_id"`
	Action     string       `json:"action"`
	FromStatus *OrderStatus `json:"from_status,omitempty"`
	ToStatus   *OrderStatus `json:"to_status,omitempty"`
	Actor      string       `json:"actor"`
	CreatedAt  time.Time    `json:"created_at"`
}

type StockLevel struct {
	ProductID   int             `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	OnHand      decimal.Decimal `json:"on_hand"`
	Reserved    decimal.Decimal `json:"reserved"`
	Available   decimal.Decimal `json:"available"`
}

package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/core"
)

// ApplicationService is the single entry point the transport layer talks to.
// It composes the core services and converts between transport payloads and
// core inputs; all business rules stay in core.
type ApplicationService interface {
	// Order aggregate
	CreateOrder(ctx context.Context, actor string, req CreateOrderRequest) (*OrderResult, error)
	ReplaceItems(ctx context.Context, orderID int, actor string, req ReplaceItemsRequest) (*OrderResult, error)
	UpdatePaymentTerms(ctx context.Context, orderID int, actor string, req PaymentTermsRequest) (*OrderResult, error)
	MarkPrinted(ctx context.Context, orderID int, actor string) (*OrderResult, error)

	// Lifecycle transitions
	SendQuote(ctx context.Context, orderID int, actor string) (*OrderResult, error)
	Reserve(ctx context.Context, orderID int, actor string) (*OrderResult, error)
	Unreserve(ctx context.Context, orderID int, actor string) (*OrderResult, error)
	Invoice(ctx context.Context, orderID int, actor string) (*OrderResult, error)
	Uninvoice(ctx context.Context, orderID int, actor string) (*OrderResult, error)
	Cancel(ctx context.Context, orderID int, actor string) (*OrderResult, error)

	// Receivables
	PostReceivables(ctx context.Context, orderID int, actor string) (*InstallmentListResult, error)
	ReverseReceivables(ctx context.Context, orderID int, actor string) error
	ListInstallments(ctx context.Context, orderID int) (*InstallmentListResult, error)

	// Reads
	GetOrder(ctx context.Context, orderID int) (*OrderResult, error)
	ListOrders(ctx context.Context, status *core.OrderStatus) (*OrderListResult, error)
	GetOrderEvents(ctx context.Context, orderID int) (*EventListResult, error)
	GetOrderMovements(ctx context.Context, orderID int) (*MovementListResult, error)
	StockLevels(ctx context.Context) (*StockResult, error)
	ListPaymentTypes(ctx context.Context) (*PaymentTypeListResult, error)
	OpenReceivables(ctx context.Context) (*ReceivablesReportResult, error)
	OrderSummary(ctx context.Context) (*SummaryResult, error)

	// Stock
	AdjustStock(ctx context.Context, productID int, actor string, delta decimal.Decimal, note string) error
}

type appService struct {
	orders      core.OrderService
	lifecycle   core.LifecycleService
	receivables core.ReceivablesService
	ledger      *core.Ledger
	reporting   core.ReportingService
}

func NewAppService(
	orders core.OrderService,
	lifecycle core.LifecycleService,
	receivables core.ReceivablesService,
	ledger *core.Ledger,
	reporting core.ReportingService,
) ApplicationService {
	return &appService{
		orders:      orders,
		lifecycle:   lifecycle,
		receivables: receivables,
		ledger:      ledger,
		reporting:   reporting,
	}
}

func (s *appService) CreateOrder(ctx context.Context, actor string, req CreateOrderRequest) (*OrderResult, error) {
	order, err := s.orders.CreateOrder(ctx, req.toCoreInput(actor))
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ReplaceItems(ctx context.Context, orderID int, actor string, req ReplaceItemsRequest) (*OrderResult, error) {
	order, err := s.orders.ReplaceItems(ctx, orderID, actor, toCoreItems(req.Items))
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) UpdatePaymentTerms(ctx context.Context, orderID int, actor string, req PaymentTermsRequest) (*OrderResult, error) {
	order, err := s.orders.UpdatePaymentTerms(ctx, orderID, actor, req.PaymentTypeID, req.InstallmentSpec)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) MarkPrinted(ctx context.Context, orderID int, actor string) (*OrderResult, error) {
	order, err := s.orders.MarkPrinted(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) SendQuote(ctx context.Context, orderID int, actor string) (*OrderResult, error) {
	return wrapOrder(s.lifecycle.MarkQuoteSent(ctx, orderID, actor))
}

func (s *appService) Reserve(ctx context.Context, orderID int, actor string) (*OrderResult, error) {
	return wrapOrder(s.lifecycle.Reserve(ctx, orderID, actor))
}

func (s *appService) Unreserve(ctx context.Context, orderID int, actor string) (*OrderResult, error) {
	return wrapOrder(s.lifecycle.Unreserve(ctx, orderID, actor))
}

func (s *appService) Invoice(ctx context.Context, orderID int, actor string) (*OrderResult, error) {
	return wrapOrder(s.lifecycle.Invoice(ctx, orderID, actor))
}

func (s *appService) Uninvoice(ctx context.Context, orderID int, actor string) (*OrderResult, error) {
	return wrapOrder(s.lifecycle.Uninvoice(ctx, orderID, actor))
}

func (s *appService) Cancel(ctx context.Context, orderID int, actor string) (*OrderResult, error) {
	return wrapOrder(s.lifecycle.Cancel(ctx, orderID, actor))
}

func wrapOrder(order *core.Order, err error) (*OrderResult, error) {
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) PostReceivables(ctx context.Context, orderID int, actor string) (*InstallmentListResult, error) {
	installments, err := s.receivables.Post(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	return &InstallmentListResult{Installments: installments}, nil
}

func (s *appService) ReverseReceivables(ctx context.Context, orderID int, actor string) error {
	return s.receivables.Reverse(ctx, orderID, actor)
}

func (s *appService) ListInstallments(ctx context.Context, orderID int) (*InstallmentListResult, error) {
	installments, err := s.receivables.ListInstallments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &InstallmentListResult{Installments: installments}, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID int) (*OrderResult, error) {
	return wrapOrder(s.orders.GetOrder(ctx, orderID))
}

func (s *appService) ListOrders(ctx context.Context, status *core.OrderStatus) (*OrderListResult, error) {
	orders, err := s.orders.GetOrders(ctx, status)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) GetOrderEvents(ctx context.Context, orderID int) (*EventListResult, error) {
	events, err := s.orders.GetOrderEvents(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &EventListResult{Events: events}, nil
}

func (s *appService) GetOrderMovements(ctx context.Context, orderID int) (*MovementListResult, error) {
	movements, err := s.ledger.Movements(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{Movements: movements}, nil
}

func (s *appService) StockLevels(ctx context.Context) (*StockResult, error) {
	levels, err := s.ledger.StockLevels(ctx)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) ListPaymentTypes(ctx context.Context) (*PaymentTypeListResult, error) {
	types, err := s.orders.ListPaymentTypes(ctx)
	if err != nil {
		return nil, err
	}
	return &PaymentTypeListResult{PaymentTypes: types}, nil
}

func (s *appService) OpenReceivables(ctx context.Context) (*ReceivablesReportResult, error) {
	receivables, err := s.reporting.OpenReceivables(ctx)
	if err != nil {
		return nil, err
	}
	return &ReceivablesReportResult{Receivables: receivables}, nil
}

func (s *appService) OrderSummary(ctx context.Context) (*SummaryResult, error) {
	summary, err := s.reporting.OrderSummary(ctx)
	if err != nil {
		return nil, err
	}
	return &SummaryResult{Summary: summary}, nil
}

func (s *appService) AdjustStock(ctx context.Context, productID int, actor string, delta decimal.Decimal, note string) error {
	return s.ledger.Adjust(ctx, productID, delta, actor, note)
}

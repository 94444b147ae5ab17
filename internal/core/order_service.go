package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Policy carries the named configuration switches of the engine.
type Policy struct {
	// AllowEditWhileReserved permits ReplaceItems on ORDER_GENERATED orders
	// whose stock has not been invoice-posted. The edit releases the old
	// reservations and reserves the new item set in the same transaction,
	// so an edited order is never left reserved for removed items.
	AllowEditWhileReserved bool
}

// OrderService owns the order aggregate: header, line items and the
// lifecycle flags. Status transitions live in LifecycleService; this service
// only mutates orders in ways that do not move them through the lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	// ReplaceItems swaps the full item set atomically and recomputes totals.
	// Partial item patches are not supported.
	ReplaceItems(ctx context.Context, orderID int, actor string, items []OrderItemInput) (*Order, error)
	UpdatePaymentTerms(ctx context.Context, orderID int, actor string, paymentTypeID *int, installmentSpec string) (*Order, error)
	// MarkPrinted records the printed flag with actor and timestamp. It is
	// independent of lifecycle status; repeat calls refresh the timestamp.
	MarkPrinted(ctx context.Context, orderID int, actor string) (*Order, error)

	GetOrder(ctx context.Context, orderID int) (*Order, error)
	GetOrders(ctx context.Context, status *OrderStatus) ([]Order, error)
	GetOrderEvents(ctx context.Context, orderID int) ([]OrderEvent, error)
	ListPaymentTypes(ctx context.Context) ([]PaymentType, error)
}

type CreateOrderInput struct {
	CustomerName    string
	Notes           string
	ShippingCost    decimal.Decimal
	Discount        decimal.Decimal
	OtherExpenses   decimal.Decimal
	PaymentTypeID   *int
	InstallmentSpec string
	Items           []OrderItemInput
	Actor           string
}

type orderService struct {
	pool   *pgxpool.Pool
	ledger *Ledger
	policy Policy
}

func NewOrderService(pool *pgxpool.Pool, ledger *Ledger, policy Policy) OrderService {
	return &orderService{pool: pool, ledger: ledger, policy: policy}
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ── Creation and editing ─────────────────────────────────────────────────────

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("order must have at least one item")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	resolved, itemsTotal, err := resolveItemsTx(ctx, tx, in.Items)
	if err != nil {
		return nil, err
	}
	total := finalTotal(itemsTotal, in.ShippingCost, in.Discount, in.OtherExpenses)

	var orderID int
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (customer_name, status, items_total, shipping_cost, discount, other_expenses,
		                    total, payment_type_id, installment_spec, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, in.CustomerName, StatusQuoteOpen, itemsTotal, in.ShippingCost, in.Discount, in.OtherExpenses,
		total, in.PaymentTypeID, in.InstallmentSpec, in.Notes).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertItemsTx(ctx, tx, orderID, resolved); err != nil {
		return nil, err
	}

	open := StatusQuoteOpen
	if err := appendEventTx(ctx, tx, orderID, "CREATED", nil, &open, in.Actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}

	return s.GetOrder(ctx, orderID)
}

func (s *orderService) ReplaceItems(ctx context.Context, orderID int, actor string, items []OrderItemInput) (*Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("order must have at least one item")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	hdr, err := fetchOrderForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	editWhileReserved := false
	switch {
	case hdr.Status.IsQuote():
		// editable
	case s.policy.AllowEditWhileReserved && hdr.Status == StatusOrderGenerated && !hdr.StockPosted:
		editWhileReserved = true
	default:
		return nil, &NotEditableError{OrderID: orderID, Status: hdr.Status}
	}

	if editWhileReserved {
		// Release the reservations of the outgoing item set before it is
		// replaced, so removed items cannot strand reserved stock.
		oldItems, err := fetchOrderItemsQ(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.ReleaseBatchTx(ctx, tx, orderID, actor, oldItems); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to clear order items: %w", err)
	}

	resolved, itemsTotal, err := resolveItemsTx(ctx, tx, items)
	if err != nil {
		return nil, err
	}
	if err := insertItemsTx(ctx, tx, orderID, resolved); err != nil {
		return nil, err
	}

	total := finalTotal(itemsTotal, hdr.ShippingCost, hdr.Discount, hdr.OtherExpenses)
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET items_total = $1, total = $2, updated_at = NOW() WHERE id = $3
	`, itemsTotal, total, orderID); err != nil {
		return nil, fmt.Errorf("failed to update order totals: %w", err)
	}

	if editWhileReserved {
		// Re-reserve the incoming set so the order stays ORDER_GENERATED
		// with its reservations matching its items. Shortages abort the
		// whole edit.
		newItems, err := fetchOrderItemsQ(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.ReserveBatchTx(ctx, tx, orderID, actor, newItems); err != nil {
			return nil, err
		}
	}

	if err := appendEventTx(ctx, tx, orderID, "ITEMS_REPLACED", &hdr.Status, &hdr.Status, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit item replacement: %w", err)
	}

	return s.GetOrder(ctx, orderID)
}

func (s *orderService) UpdatePaymentTerms(ctx context.Context, orderID int, actor string, paymentTypeID *int, installmentSpec string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	hdr, err := fetchOrderForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if hdr.AccountsPosted {
		return nil, fmt.Errorf("order %d: payment terms are frozen while receivables are posted, reverse them first", orderID)
	}

	if paymentTypeID != nil {
		var exists bool
		err = tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM payment_types WHERE id = $1 AND is_active = true)", *paymentTypeID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to verify payment type: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("payment type %d not found or inactive", *paymentTypeID)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET payment_type_id = $1, installment_spec = $2, updated_at = NOW() WHERE id = $3
	`, paymentTypeID, installmentSpec, orderID); err != nil {
		return nil, fmt.Errorf("failed to update payment terms: %w", err)
	}

	if err := appendEventTx(ctx, tx, orderID, "PAYMENT_TERMS_UPDATED", &hdr.Status, &hdr.Status, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment terms update: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) MarkPrinted(ctx context.Context, orderID int, actor string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	hdr, err := fetchOrderForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET printed = true, printed_at = NOW(), printed_by = $1, updated_at = NOW() WHERE id = $2
	`, actor, orderID); err != nil {
		return nil, fmt.Errorf("failed to mark order printed: %w", err)
	}

	if err := appendEventTx(ctx, tx, orderID, "PRINTED", &hdr.Status, &hdr.Status, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit printed flag: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

// ── Queries ──────────────────────────────────────────────────────────────────

const orderColumns = `
	id, COALESCE(order_number, ''), customer_name, status, reserved_from_status,
	items_total, shipping_cost, discount, other_expenses, total,
	payment_type_id, installment_spec,
	printed, printed_at, printed_by,
	stock_posted, accounts_posted, accounts_posted_at, accounts_posted_by,
	notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.Status, &o.ReservedFromStatus,
		&o.ItemsTotal, &o.ShippingCost, &o.Discount, &o.OtherExpenses, &o.Total,
		&o.PaymentTypeID, &o.InstallmentSpec,
		&o.Printed, &o.PrintedAt, &o.PrintedBy,
		&o.StockPosted, &o.AccountsPosted, &o.AccountsPostedAt, &o.AccountsPostedBy,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID int) (*Order, error) {
	return fetchOrderQ(ctx, s.pool, orderID)
}

func fetchOrderQ(ctx context.Context, q pgxQuerier, orderID int) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "order", ID: orderID}
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	items, err := fetchOrderItemsQ(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// fetchOrderForUpdateTx locks the order header row for the remainder of the
// transaction and returns it without items.
func fetchOrderForUpdateTx(ctx context.Context, tx pgx.Tx, orderID int) (*Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "order", ID: orderID}
		}
		return nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	return o, nil
}

func (s *orderService) GetOrders(ctx context.Context, status *OrderStatus) ([]Order, error) {
	query := "SELECT " + orderColumns + " FROM orders"
	args := []any{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *orderService) GetOrderEvents(ctx context.Context, orderID int) ([]OrderEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, action, from_status, to_status, actor, created_at
		FROM order_events
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order events: %w", err)
	}
	defer rows.Close()

	var events []OrderEvent
	for rows.Next() {
		var e OrderEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Action, &e.FromStatus, &e.ToStatus, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *orderService) ListPaymentTypes(ctx context.Context) ([]PaymentType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, classification, is_active
		FROM payment_types
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment types: %w", err)
	}
	defer rows.Close()

	var types []PaymentType
	for rows.Next() {
		var pt PaymentType
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.Classification, &pt.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan payment type: %w", err)
		}
		types = append(types, pt)
	}
	return types, rows.Err()
}

// ── Shared helpers ───────────────────────────────────────────────────────────

type resolvedItem struct {
	productID int
	unitPrice decimal.Decimal
	quantity  decimal.Decimal
	lineTotal decimal.Decimal
}

// resolveItemsTx validates each requested line against the catalog and
// snapshots its price: the explicit input price when given, the current
// catalog price otherwise. The snapshot is stored on the item and never
// re-read from the catalog afterwards.
func resolveItemsTx(ctx context.Context, tx pgx.Tx, items []OrderItemInput) ([]resolvedItem, decimal.Decimal, error) {
	var itemsTotal decimal.Decimal
	resolved := make([]resolvedItem, 0, len(items))

	for i, input := range items {
		if input.Quantity.LessThan(decimal.NewFromInt(1)) {
			return nil, decimal.Zero, fmt.Errorf("line %d: quantity must be at least 1, got %s", i+1, input.Quantity)
		}

		var catalogPrice decimal.Decimal
		err := tx.QueryRow(ctx,
			"SELECT unit_price FROM products WHERE id = $1 AND is_active = true",
			input.ProductID,
		).Scan(&catalogPrice)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, &NotFoundError{Kind: "product", ID: input.ProductID}
			}
			return nil, decimal.Zero, fmt.Errorf("line %d: failed to resolve product %d: %w", i+1, input.ProductID, err)
		}

		price := input.UnitPrice
		if price.IsZero() {
			price = catalogPrice
		}

		lineTotal := price.Mul(input.Quantity)
		itemsTotal = itemsTotal.Add(lineTotal)
		resolved = append(resolved, resolvedItem{
			productID: input.ProductID,
			unitPrice: price,
			quantity:  input.Quantity,
			lineTotal: lineTotal,
		})
	}
	return resolved, itemsTotal, nil
}

func insertItemsTx(ctx context.Context, tx pgx.Tx, orderID int, items []resolvedItem) error {
	for i, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, line_number, product_id, unit_price, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, i+1, item.productID, item.unitPrice, item.quantity, item.lineTotal)
		if err != nil {
			return fmt.Errorf("failed to insert order item %d: %w", i+1, err)
		}
	}
	return nil
}

func fetchOrderItemsQ(ctx context.Context, q pgxQuerier, orderID int) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.line_number, oi.product_id, p.code, p.name,
		       oi.unit_price, oi.quantity, oi.line_total
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.line_number
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.LineNumber, &it.ProductID,
			&it.ProductCode, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// finalTotal applies the order-level charges to the items total. Shipping and
// other expenses add, the global discount subtracts.
func finalTotal(itemsTotal, shipping, discount, otherExpenses decimal.Decimal) decimal.Decimal {
	return itemsTotal.Add(shipping).Add(otherExpenses).Sub(discount)
}

func appendEventTx(ctx context.Context, tx pgx.Tx, orderID int, action string, from, to *OrderStatus, actor string) error {
	if actor == "" {
		actor = "system"
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO order_events (order_id, action, from_status, to_status, actor)
		VALUES ($1, $2, $3, $4, $5)
	`, orderID, action, from, to, actor)
	if err != nil {
		return fmt.Errorf("failed to append %s event for order %d: %w", action, orderID, err)
	}
	return nil
}

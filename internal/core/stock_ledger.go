package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Ledger is the sole owner of per-product qty_on_hand and qty_reserved
// counters. Every mutation goes through one of its primitives and appends
// exactly one stock movement. Other services never touch the counters.
//
// The Tx primitives run inside a caller-provided transaction so the state
// machine can keep stock mutations atomic with order status changes; the
// transaction boundary is also what makes a failed batch roll back without
// leaving partial reservations behind.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// lockedProduct is a product row snapshot taken under FOR UPDATE.
type lockedProduct struct {
	id       int
	code     string
	onHand   decimal.Decimal
	reserved decimal.Decimal
}

func lockProductTx(ctx context.Context, tx pgx.Tx, productID int) (*lockedProduct, error) {
	var p lockedProduct
	err := tx.QueryRow(ctx, `
		SELECT id, code, qty_on_hand, qty_reserved
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(&p.id, &p.code, &p.onHand, &p.reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "product", ID: productID}
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	return &p, nil
}

func appendMovementTx(ctx context.Context, tx pgx.Tx, productID int, orderID *int,
	movementType MovementType, qty decimal.Decimal, actor, note string) error {

	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements (product_id, order_id, movement_type, quantity, actor, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, productID, orderID, movementType, qty, actor, note)
	if err != nil {
		return fmt.Errorf("failed to append %s movement for product %d: %w", movementType, productID, err)
	}
	return nil
}

func updateCountersTx(ctx context.Context, tx pgx.Tx, productID int, onHand, reserved decimal.Decimal) error {
	_, err := tx.Exec(ctx, `
		UPDATE products
		SET qty_on_hand = $1, qty_reserved = $2, updated_at = NOW()
		WHERE id = $3
	`, onHand, reserved, productID)
	if err != nil {
		return fmt.Errorf("failed to update stock counters for product %d: %w", productID, err)
	}
	return nil
}

// ReserveTx moves qty from available to reserved for one product. Returns an
// InsufficientStockError naming the single shortage when available stock does
// not cover the request.
func (l *Ledger) ReserveTx(ctx context.Context, tx pgx.Tx, productID int, qty decimal.Decimal, orderID int, actor string) error {
	p, err := lockProductTx(ctx, tx, productID)
	if err != nil {
		return err
	}

	available := p.onHand.Sub(p.reserved)
	if available.LessThan(qty) {
		return &InsufficientStockError{Shortages: []StockShortage{{
			ProductID:   p.id,
			ProductCode: p.code,
			Requested:   qty,
			Available:   available,
		}}}
	}

	if err := updateCountersTx(ctx, tx, p.id, p.onHand, p.reserved.Add(qty)); err != nil {
		return err
	}
	return appendMovementTx(ctx, tx, p.id, &orderID, MovementReservation, qty, actor,
		fmt.Sprintf("stock reserved for order %d", orderID))
}

// ReleaseTx returns qty from reserved to available. Release never fails for
// insufficient stock: a reserved counter below the release amount is clamped
// at zero and flagged in the movement note, since it signals a bookkeeping
// bug rather than a user error.
func (l *Ledger) ReleaseTx(ctx context.Context, tx pgx.Tx, productID int, qty decimal.Decimal, orderID int, actor string) error {
	p, err := lockProductTx(ctx, tx, productID)
	if err != nil {
		return err
	}

	note := fmt.Sprintf("reservation released for order %d", orderID)
	newReserved := p.reserved.Sub(qty)
	if newReserved.IsNegative() {
		note = fmt.Sprintf("reservation released for order %d (clamped: reserved %s < release %s)",
			orderID, p.reserved.String(), qty.String())
		newReserved = decimal.Zero
	}

	if err := updateCountersTx(ctx, tx, p.id, p.onHand, newReserved); err != nil {
		return err
	}
	return appendMovementTx(ctx, tx, p.id, &orderID, MovementRelease, qty, actor, note)
}

// CommitTx converts a reservation into a permanent deduction: on_hand and
// reserved both drop by qty. Availability is not re-checked; the quantity was
// already earmarked by a prior reservation.
func (l *Ledger) CommitTx(ctx context.Context, tx pgx.Tx, productID int, qty decimal.Decimal, orderID int, actor string) error {
	p, err := lockProductTx(ctx, tx, productID)
	if err != nil {
		return err
	}

	newOnHand := p.onHand.Sub(qty)
	newReserved := p.reserved.Sub(qty)
	if newOnHand.IsNegative() || newReserved.IsNegative() {
		return fmt.Errorf("commit of %s units of product %s would drive counters negative (on_hand %s, reserved %s)",
			qty.String(), p.code, p.onHand.String(), p.reserved.String())
	}

	if err := updateCountersTx(ctx, tx, p.id, newOnHand, newReserved); err != nil {
		return err
	}
	return appendMovementTx(ctx, tx, p.id, &orderID, MovementDeduction, qty, actor,
		fmt.Sprintf("stock deducted on invoicing of order %d", orderID))
}

// RestoreTx reverses a deduction: on_hand and reserved both rise by qty,
// returning the product to the committed-but-not-consumed state.
func (l *Ledger) RestoreTx(ctx context.Context, tx pgx.Tx, productID int, qty decimal.Decimal, orderID int, actor string) error {
	p, err := lockProductTx(ctx, tx, productID)
	if err != nil {
		return err
	}

	if err := updateCountersTx(ctx, tx, p.id, p.onHand.Add(qty), p.reserved.Add(qty)); err != nil {
		return err
	}
	return appendMovementTx(ctx, tx, p.id, &orderID, MovementRestoration, qty, actor,
		fmt.Sprintf("stock restored on un-invoicing of order %d", orderID))
}

// productQty is one product's total quantity across all lines of a batch.
type productQty struct {
	productID int
	qty       decimal.Decimal
}

// aggregateByProduct sums line quantities per product and returns the totals
// in ascending product-id order. An order may carry several lines for the
// same product; locks, availability checks and counter writes must operate on
// the per-product total, never per line. The fixed ascending lock order also
// keeps two orders reserving the same products in different line order from
// deadlocking.
func aggregateByProduct(items []OrderItem) []productQty {
	totals := make(map[int]decimal.Decimal, len(items))
	for _, item := range items {
		totals[item.ProductID] = totals[item.ProductID].Add(item.Quantity)
	}

	aggregated := make([]productQty, 0, len(totals))
	for id, qty := range totals {
		aggregated = append(aggregated, productQty{productID: id, qty: qty})
	}
	sort.Slice(aggregated, func(i, j int) bool { return aggregated[i].productID < aggregated[j].productID })
	return aggregated
}

// ReserveBatchTx reserves stock for every item or none. All product rows are
// locked first (ascending product id), availability is evaluated against that
// single snapshot, and only a fully satisfiable batch mutates counters. On
// failure it returns an InsufficientStockError naming every short item; the
// caller's rollback discards any prior writes in the transaction.
func (l *Ledger) ReserveBatchTx(ctx context.Context, tx pgx.Tx, orderID int, actor string, items []OrderItem) error {
	aggregated := aggregateByProduct(items)

	locked := make([]*lockedProduct, len(aggregated))
	for i, pq := range aggregated {
		p, err := lockProductTx(ctx, tx, pq.productID)
		if err != nil {
			return err
		}
		locked[i] = p
	}

	var shortages []StockShortage
	for i, pq := range aggregated {
		available := locked[i].onHand.Sub(locked[i].reserved)
		if available.LessThan(pq.qty) {
			shortages = append(shortages, StockShortage{
				ProductID:   locked[i].id,
				ProductCode: locked[i].code,
				Requested:   pq.qty,
				Available:   available,
			})
		}
	}
	if len(shortages) > 0 {
		return &InsufficientStockError{Shortages: shortages}
	}

	for i, pq := range aggregated {
		p := locked[i]
		if err := updateCountersTx(ctx, tx, p.id, p.onHand, p.reserved.Add(pq.qty)); err != nil {
			return err
		}
		if err := appendMovementTx(ctx, tx, p.id, &orderID, MovementReservation, pq.qty, actor,
			fmt.Sprintf("stock reserved for order %d", orderID)); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseBatchTx releases the reservations held for every item.
func (l *Ledger) ReleaseBatchTx(ctx context.Context, tx pgx.Tx, orderID int, actor string, items []OrderItem) error {
	for _, pq := range aggregateByProduct(items) {
		if err := l.ReleaseTx(ctx, tx, pq.productID, pq.qty, orderID, actor); err != nil {
			return err
		}
	}
	return nil
}

// CommitBatchTx converts every item's reservation into a permanent deduction.
func (l *Ledger) CommitBatchTx(ctx context.Context, tx pgx.Tx, orderID int, actor string, items []OrderItem) error {
	for _, pq := range aggregateByProduct(items) {
		if err := l.CommitTx(ctx, tx, pq.productID, pq.qty, orderID, actor); err != nil {
			return err
		}
	}
	return nil
}

// RestoreBatchTx reverses a committed deduction for every item.
func (l *Ledger) RestoreBatchTx(ctx context.Context, tx pgx.Tx, orderID int, actor string, items []OrderItem) error {
	for _, pq := range aggregateByProduct(items) {
		if err := l.RestoreTx(ctx, tx, pq.productID, pq.qty, orderID, actor); err != nil {
			return err
		}
	}
	return nil
}

// Adjust applies a signed on-hand correction in its own transaction.
// Adjustments that would push on_hand below zero or below the reserved
// quantity are refused: catalog-side edits cannot undercut availability
// checks already granted to reservations.
func (l *Ledger) Adjust(ctx context.Context, productID int, delta decimal.Decimal, actor, note string) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin adjustment transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockProductTx(ctx, tx, productID)
	if err != nil {
		return err
	}

	newOnHand := p.onHand.Add(delta)
	if newOnHand.IsNegative() {
		return fmt.Errorf("adjustment of %s would drive product %s on-hand negative (currently %s)",
			delta.String(), p.code, p.onHand.String())
	}
	if newOnHand.LessThan(p.reserved) {
		return fmt.Errorf("adjustment of %s would leave product %s with on-hand %s below reserved %s",
			delta.String(), p.code, newOnHand.String(), p.reserved.String())
	}

	if err := updateCountersTx(ctx, tx, p.id, newOnHand, p.reserved); err != nil {
		return err
	}
	if note == "" {
		note = "manual stock adjustment"
	}
	if err := appendMovementTx(ctx, tx, p.id, nil, MovementAdjustment, delta, actor, note); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit adjustment: %w", err)
	}
	return nil
}

// StockLevels returns on-hand, reserved and derived available quantities for
// every active product.
func (l *Ledger) StockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, code, name, qty_on_hand, qty_reserved, qty_on_hand - qty_reserved AS qty_available
		FROM products
		WHERE is_active = true
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.ProductCode, &sl.ProductName,
			&sl.OnHand, &sl.Reserved, &sl.Available); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

// Movements returns the movement history for one order, oldest first.
func (l *Ledger) Movements(ctx context.Context, orderID int) ([]StockMovement, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, product_id, order_id, movement_type, quantity, actor, note, created_at
		FROM stock_movements
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.OrderID, &m.MovementType,
			&m.Quantity, &m.Actor, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

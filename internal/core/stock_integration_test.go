package core_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// setupTestDB connects to the dedicated test database, truncates every engine
// table and seeds a small catalog. Set TEST_DATABASE_URL to run integration
// tests; they are skipped otherwise to protect the live database. The schema
// itself must already be applied (cmd/migrate against the test database).
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE order_events, installments, stock_movements, order_items,
			orders, order_sequences, products, payment_types RESTART IDENTITY CASCADE;

		INSERT INTO products (code, name, unit_price, qty_on_hand, qty_reserved) VALUES
		('P001', 'Widget A',  500.00, 10, 0),
		('P002', 'Widget B', 1200.00,  5, 0),
		('P003', 'Widget C',  300.00,  0, 0);

		INSERT INTO payment_types (name, classification, is_active) VALUES
		('Cash',           'IMMEDIATE', true),
		('Term Invoice',   'TERM',      true),
		('Suspended Term', 'TERM',      false);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

// stockInfo fetches on-hand and reserved counters for a product by code.
func stockInfo(t *testing.T, ctx context.Context, ledger *core.Ledger, productCode string) (onHand, reserved decimal.Decimal) {
	t.Helper()
	levels, err := ledger.StockLevels(ctx)
	if err != nil {
		t.Fatalf("StockLevels failed: %v", err)
	}
	for _, sl := range levels {
		if sl.ProductCode == productCode {
			return sl.OnHand, sl.Reserved
		}
	}
	t.Fatalf("Product %s not found in stock levels", productCode)
	return decimal.Zero, decimal.Zero
}

func TestLedger_Adjust(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	// P003 starts empty; receive 25 units.
	if err := ledger.Adjust(ctx, 3, decimal.NewFromInt(25), "warehouse", "initial receipt"); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}

	onHand, reserved := stockInfo(t, ctx, ledger, "P003")
	if !onHand.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Expected on_hand=25, got %s", onHand)
	}
	if !reserved.IsZero() {
		t.Errorf("Expected reserved=0, got %s", reserved)
	}

	// Negative correction within bounds.
	if err := ledger.Adjust(ctx, 3, decimal.NewFromInt(-5), "warehouse", "damaged units"); err != nil {
		t.Fatalf("Negative Adjust failed: %v", err)
	}
	onHand, _ = stockInfo(t, ctx, ledger, "P003")
	if !onHand.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected on_hand=20 after correction, got %s", onHand)
	}
}

func TestLedger_Adjust_RefusesNegativeOnHand(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	ctx := context.Background()

	// P002 has 5 on hand; removing 6 must be refused.
	err := ledger.Adjust(ctx, 2, decimal.NewFromInt(-6), "warehouse", "")
	if err == nil {
		t.Fatal("Expected error adjusting on_hand below zero, got nil")
	}

	onHand, _ := stockInfo(t, ctx, ledger, "P002")
	if !onHand.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected on_hand unchanged at 5, got %s", onHand)
	}
}

func TestLedger_Adjust_RefusesBelowReserved(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, lifecycleSvc := newEngineServices(pool, ledger)
	ctx := context.Background()

	// Reserve 6 of P001 so an adjustment below the reserved level is refused.
	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(6)},
	})
	if _, err := lifecycleSvc.Reserve(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// 10 on hand, 6 reserved: removing 5 would leave 5 < 6 reserved.
	err := ledger.Adjust(ctx, 1, decimal.NewFromInt(-5), "warehouse", "")
	if err == nil {
		t.Fatal("Expected error adjusting on_hand below reserved, got nil")
	}

	onHand, reserved := stockInfo(t, ctx, ledger, "P001")
	if !onHand.Equal(decimal.NewFromInt(10)) || !reserved.Equal(decimal.NewFromInt(6)) {
		t.Errorf("Expected on_hand=10, reserved=6 unchanged; got %s, %s", onHand, reserved)
	}
}

func TestLedger_DuplicateProductLinesAggregate(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, lifecycleSvc := newEngineServices(pool, ledger)
	ctx := context.Background()

	// Two lines for the same product must reserve their combined quantity.
	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(4)},
		{ProductID: 1, Quantity: decimal.NewFromInt(3)},
	})
	if _, err := lifecycleSvc.Reserve(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	onHand, reserved := stockInfo(t, ctx, ledger, "P001")
	if !onHand.Equal(decimal.NewFromInt(10)) || !reserved.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Expected on_hand=10, reserved=7; got %s, %s", onHand, reserved)
	}

	// One movement per product carrying the aggregated quantity, so the
	// trail and the counters tell the same story.
	movements, err := ledger.Movements(ctx, order.ID)
	if err != nil {
		t.Fatalf("Movements failed: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("Expected 1 aggregated movement, got %d", len(movements))
	}
	if !movements[0].Quantity.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Expected movement quantity 7, got %s", movements[0].Quantity)
	}

	// Invoicing commits the same aggregated quantity the reservation held.
	if _, err := lifecycleSvc.Invoice(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Invoice failed: %v", err)
	}
	onHand, reserved = stockInfo(t, ctx, ledger, "P001")
	if !onHand.Equal(decimal.NewFromInt(3)) || !reserved.IsZero() {
		t.Errorf("After invoice: expected on_hand=3, reserved=0; got %s, %s", onHand, reserved)
	}
}

func TestLedger_DuplicateProductLinesCumulativeShortage(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, lifecycleSvc := newEngineServices(pool, ledger)
	ctx := context.Background()

	// Each line alone fits in the 10 available units; the 12-unit total
	// does not, and the shortage must report the cumulative request.
	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(6)},
		{ProductID: 1, Quantity: decimal.NewFromInt(6)},
	})
	_, err := lifecycleSvc.Reserve(ctx, order.ID, "tester")

	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	if len(insufficient.Shortages) != 1 {
		t.Fatalf("Expected 1 shortage, got %d", len(insufficient.Shortages))
	}
	s := insufficient.Shortages[0]
	if !s.Requested.Equal(decimal.NewFromInt(12)) || !s.Available.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected requested=12 available=10, got %s / %s", s.Requested, s.Available)
	}

	_, reserved := stockInfo(t, ctx, ledger, "P001")
	if !reserved.IsZero() {
		t.Errorf("Expected reserved=0 after failed reserve, got %s", reserved)
	}
}

func TestLedger_ReleaseClampsAtZero(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, lifecycleSvc := newEngineServices(pool, ledger)
	ctx := context.Background()

	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(4)},
	})
	if _, err := lifecycleSvc.Reserve(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// Simulate counter drift: the reserved counter no longer covers the
	// order's reservation. Releasing must clamp at zero, not fail and not
	// go negative.
	if _, err := pool.Exec(ctx, "UPDATE products SET qty_reserved = 1 WHERE id = 1"); err != nil {
		t.Fatalf("Failed to force counter drift: %v", err)
	}

	if _, err := lifecycleSvc.Unreserve(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Unreserve with drifted counter failed: %v", err)
	}

	onHand, reserved := stockInfo(t, ctx, ledger, "P001")
	if !onHand.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected on_hand=10 untouched, got %s", onHand)
	}
	if !reserved.IsZero() {
		t.Errorf("Expected reserved clamped to 0, got %s", reserved)
	}

	// The RELEASE movement flags the clamp so the drift is auditable.
	movements, err := ledger.Movements(ctx, order.ID)
	if err != nil {
		t.Fatalf("Movements failed: %v", err)
	}
	var release *core.StockMovement
	for i := range movements {
		if movements[i].MovementType == core.MovementRelease {
			release = &movements[i]
		}
	}
	if release == nil {
		t.Fatal("Expected a RELEASE movement")
	}
	if !strings.Contains(release.Note, "clamped") {
		t.Errorf("Expected clamp marker in release note, got %q", release.Note)
	}
}

func TestLedger_MovementTrail(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, lifecycleSvc := newEngineServices(pool, ledger)
	ctx := context.Background()

	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(4)},
	})

	if _, err := lifecycleSvc.Reserve(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if _, err := lifecycleSvc.Invoice(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Invoice failed: %v", err)
	}
	if _, err := lifecycleSvc.Uninvoice(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Uninvoice failed: %v", err)
	}

	movements, err := ledger.Movements(ctx, order.ID)
	if err != nil {
		t.Fatalf("Movements failed: %v", err)
	}

	want := []core.MovementType{core.MovementReservation, core.MovementDeduction, core.MovementRestoration}
	if len(movements) != len(want) {
		t.Fatalf("Expected %d movements, got %d", len(want), len(movements))
	}
	for i, m := range movements {
		if m.MovementType != want[i] {
			t.Errorf("Movement %d: expected %s, got %s", i, want[i], m.MovementType)
		}
		if !m.Quantity.Equal(decimal.NewFromInt(4)) {
			t.Errorf("Movement %d: expected quantity 4, got %s", i, m.Quantity)
		}
		if m.Actor != "tester" {
			t.Errorf("Movement %d: expected actor tester, got %s", i, m.Actor)
		}
	}
}

package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/core"

	"github.com/shopspring/decimal"
)

func TestOrderService_CreateOrder_Totals(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, _ := newEngineServices(pool, ledger)
	ctx := context.Background()

	// 2 × P001 @ 500 + 1 × P002 @ 1200 = 2200 items
	// + shipping 50 + other 30 - discount 100 = 2180
	order, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerName:  "Acme Corp",
		ShippingCost:  decimal.NewFromInt(50),
		Discount:      decimal.NewFromInt(100),
		OtherExpenses: decimal.NewFromInt(30),
		Items: []core.OrderItemInput{
			{ProductID: 1, Quantity: decimal.NewFromInt(2)},
			{ProductID: 2, Quantity: decimal.NewFromInt(1)},
		},
		Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if !order.ItemsTotal.Equal(decimal.NewFromInt(2200)) {
		t.Errorf("Expected items_total 2200, got %s", order.ItemsTotal)
	}
	if !order.Total.Equal(decimal.NewFromInt(2180)) {
		t.Errorf("Expected total 2180, got %s", order.Total)
	}
	if len(order.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(order.Items))
	}
	if order.Items[0].LineNumber != 1 || order.Items[1].LineNumber != 2 {
		t.Errorf("Expected line numbers 1,2; got %d,%d", order.Items[0].LineNumber, order.Items[1].LineNumber)
	}
}

func TestOrderService_PriceSnapshot(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, _ := newEngineServices(pool, ledger)
	ctx := context.Background()

	// Line 1 snapshots the catalog price, line 2 an explicit agreed price.
	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(1)},
		{ProductID: 2, Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(999)},
	})
	if !order.Items[0].UnitPrice.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected catalog price 500 snapshotted, got %s", order.Items[0].UnitPrice)
	}
	if !order.Items[1].UnitPrice.Equal(decimal.NewFromInt(999)) {
		t.Errorf("Expected agreed price 999 snapshotted, got %s", order.Items[1].UnitPrice)
	}

	// A later catalog price change must not touch the stored snapshot.
	if _, err := pool.Exec(ctx, "UPDATE products SET unit_price = 750 WHERE id = 1"); err != nil {
		t.Fatalf("Failed to change catalog price: %v", err)
	}

	order, err := orderSvc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if !order.Items[0].UnitPrice.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Snapshot must survive catalog change: expected 500, got %s", order.Items[0].UnitPrice)
	}
	if !order.ItemsTotal.Equal(decimal.NewFromInt(1499)) {
		t.Errorf("Expected items_total 1499, got %s", order.ItemsTotal)
	}
}

func TestOrderService_ReplaceItems(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, _ := newEngineServices(pool, ledger)
	ctx := context.Background()

	order, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerName: "Acme Corp",
		ShippingCost: decimal.NewFromInt(50),
		Items: []core.OrderItemInput{
			{ProductID: 1, Quantity: decimal.NewFromInt(2)},
		},
		Actor: "tester",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// Replace the whole set: new items, totals recomputed, charges kept.
	order, err = orderSvc.ReplaceItems(ctx, order.ID, "tester", []core.OrderItemInput{
		{ProductID: 2, Quantity: decimal.NewFromInt(3)},
	})
	if err != nil {
		t.Fatalf("ReplaceItems failed: %v", err)
	}
	if len(order.Items) != 1 || order.Items[0].ProductID != 2 {
		t.Fatalf("Expected single P002 line after replacement, got %+v", order.Items)
	}
	if !order.ItemsTotal.Equal(decimal.NewFromInt(3600)) {
		t.Errorf("Expected items_total 3600, got %s", order.ItemsTotal)
	}
	if !order.Total.Equal(decimal.NewFromInt(3650)) {
		t.Errorf("Expected total 3650 (shipping kept), got %s", order.Total)
	}
}

func TestOrderService_ReplaceItems_GatedAfterReserve(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, lifecycleSvc := newEngineServices(pool, ledger)
	ctx := context.Background()

	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(2)},
	})
	if _, err := lifecycleSvc.Reserve(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// Default policy: reserved orders are not editable.
	_, err := orderSvc.ReplaceItems(ctx, order.ID, "tester", []core.OrderItemInput{
		{ProductID: 2, Quantity: decimal.NewFromInt(1)},
	})
	var notEditable *core.NotEditableError
	if !errors.As(err, &notEditable) {
		t.Fatalf("Expected NotEditableError, got %v", err)
	}
	if notEditable.Status != core.StatusOrderGenerated {
		t.Errorf("Expected status ORDER_GENERATED in error, got %s", notEditable.Status)
	}
}

func TestOrderService_ReplaceItems_EditWhileReservedPolicy(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc := core.NewOrderService(pool, ledger, core.Policy{AllowEditWhileReserved: true})
	lifecycleSvc := core.NewLifecycleService(pool, ledger, 3)
	ctx := context.Background()

	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(6)},
	})
	if _, err := lifecycleSvc.Reserve(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// The edit swaps the reservation from P001 to P002 in one transaction.
	order, err := orderSvc.ReplaceItems(ctx, order.ID, "tester", []core.OrderItemInput{
		{ProductID: 2, Quantity: decimal.NewFromInt(3)},
	})
	if err != nil {
		t.Fatalf("ReplaceItems under relaxed policy failed: %v", err)
	}
	if order.Status != core.StatusOrderGenerated {
		t.Errorf("Expected order to stay ORDER_GENERATED, got %s", order.Status)
	}

	_, reservedA := stockInfo(t, ctx, ledger, "P001")
	_, reservedB := stockInfo(t, ctx, ledger, "P002")
	if !reservedA.IsZero() {
		t.Errorf("Expected P001 reservation released, got %s", reservedA)
	}
	if !reservedB.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected P002 reserved=3, got %s", reservedB)
	}

	// A shortage in the new set aborts the edit and keeps the old reservation.
	_, err = orderSvc.ReplaceItems(ctx, order.ID, "tester", []core.OrderItemInput{
		{ProductID: 3, Quantity: decimal.NewFromInt(1)},
	})
	var insufficient *core.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	_, reservedB = stockInfo(t, ctx, ledger, "P002")
	if !reservedB.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Failed edit must keep old reservation: expected P002 reserved=3, got %s", reservedB)
	}

	// Invoiced orders are frozen even under the relaxed policy.
	if _, err := lifecycleSvc.Invoice(ctx, order.ID, "tester"); err != nil {
		t.Fatalf("Invoice failed: %v", err)
	}
	_, err = orderSvc.ReplaceItems(ctx, order.ID, "tester", []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(1)},
	})
	var notEditable *core.NotEditableError
	if !errors.As(err, &notEditable) {
		t.Fatalf("Expected NotEditableError on invoiced order, got %v", err)
	}
}

func TestOrderService_MarkPrinted(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, _ := newEngineServices(pool, ledger)
	ctx := context.Background()

	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(1)},
	})
	if order.Printed {
		t.Error("New order must not be flagged printed")
	}

	order, err := orderSvc.MarkPrinted(ctx, order.ID, "alice")
	if err != nil {
		t.Fatalf("MarkPrinted failed: %v", err)
	}
	if !order.Printed || order.PrintedAt == nil {
		t.Error("Expected printed flag and timestamp set")
	}
	if order.PrintedBy == nil || *order.PrintedBy != "alice" {
		t.Error("Expected printed_by alice")
	}
}

func TestOrderService_UpdatePaymentTerms(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, _ := newEngineServices(pool, ledger)
	ctx := context.Background()

	order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(1)},
	})

	termID := 2 // Term Invoice
	order, err := orderSvc.UpdatePaymentTerms(ctx, order.ID, "tester", &termID, "30 60")
	if err != nil {
		t.Fatalf("UpdatePaymentTerms failed: %v", err)
	}
	if order.PaymentTypeID == nil || *order.PaymentTypeID != termID {
		t.Error("Expected payment type assigned")
	}
	if order.InstallmentSpec != "30 60" {
		t.Errorf("Expected installment spec kept verbatim, got %q", order.InstallmentSpec)
	}

	// Inactive payment types are refused.
	suspendedID := 3
	if _, err := orderSvc.UpdatePaymentTerms(ctx, order.ID, "tester", &suspendedID, ""); err == nil {
		t.Error("Expected error assigning an inactive payment type, got nil")
	}
}

func TestOrderService_GetOrders_StatusFilter(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, lifecycleSvc := newEngineServices(pool, ledger)
	ctx := context.Background()

	orderA := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(1)},
	})
	createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
		{ProductID: 2, Quantity: decimal.NewFromInt(1)},
	})
	if _, err := lifecycleSvc.Reserve(ctx, orderA.ID, "tester"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	generated := core.StatusOrderGenerated
	orders, err := orderSvc.GetOrders(ctx, &generated)
	if err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != orderA.ID {
		t.Errorf("Expected only order %d in ORDER_GENERATED, got %+v", orderA.ID, orders)
	}

	all, err := orderSvc.GetOrders(ctx, nil)
	if err != nil {
		t.Fatalf("GetOrders (all) failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 orders without filter, got %d", len(all))
	}
}

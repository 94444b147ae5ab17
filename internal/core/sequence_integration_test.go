package core_test

import (
	"context"
	"testing"

	"github.com/DudssFnx/zeno-ecommerce-sub001/internal/core"

	"github.com/shopspring/decimal"
)

func TestOrderNumbers_SequentialAndStable(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ledger := core.NewLedger(pool)
	orderSvc, lifecycleSvc := newEngineServices(pool, ledger)
	ctx := context.Background()

	want := []string{"ORD-00001", "ORD-00002", "ORD-00003"}
	var firstID int
	for i := range want {
		order := createTestOrder(t, ctx, orderSvc, []core.OrderItemInput{
			{ProductID: 1, Quantity: decimal.NewFromInt(1)},
		})
		if i == 0 {
			firstID = order.ID
		}
		order, err := lifecycleSvc.Reserve(ctx, order.ID, "tester")
		if err != nil {
			t.Fatalf("Reserve %d failed: %v", i, err)
		}
		if order.OrderNumber != want[i] {
			t.Errorf("Expected order number %s, got %s", want[i], order.OrderNumber)
		}
	}

	// A reserve/unreserve/reserve round trip keeps the original number
	// instead of consuming a new one.
	if _, err := lifecycleSvc.Unreserve(ctx, firstID, "tester"); err != nil {
		t.Fatalf("Unreserve failed: %v", err)
	}
	order, err := lifecycleSvc.Reserve(ctx, firstID, "tester")
	if err != nil {
		t.Fatalf("Re-reserve failed: %v", err)
	}
	if order.OrderNumber != "ORD-00001" {
		t.Errorf("Expected original number ORD-00001 kept, got %s", order.OrderNumber)
	}
}

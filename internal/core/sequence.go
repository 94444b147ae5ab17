package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const orderSequenceScope = "orders"

// nextOrderNumberTx draws the next gapless order number inside the caller's
// transaction. The single-row upsert serializes concurrent callers on the
// sequence row, and a rolled-back transaction returns the number to the pool,
// so confirmed orders are numbered without gaps.
func nextOrderNumberTx(ctx context.Context, tx pgx.Tx) (string, error) {
	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO order_sequences (scope, last_number)
		VALUES ($1, 1)
		ON CONFLICT (scope)
		DO UPDATE SET last_number = order_sequences.last_number + 1
		RETURNING last_number
	`, orderSequenceScope).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate order number: %w", err)
	}
	return fmt.Sprintf("ORD-%05d", lastNumber), nil
}

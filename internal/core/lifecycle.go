package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lifecycle actions. Each one is validated against the transition table
// before any side effect runs.
const (
	ActionSend      = "SEND"
	ActionReserve   = "RESERVE"
	ActionUnreserve = "UNRESERVE"
	ActionInvoice   = "INVOICE"
	ActionUninvoice = "UNINVOICE"
	ActionCancel    = "CANCEL"
)

// transitionAllowed is the single source of truth for lifecycle legality:
//
//	QUOTE_OPEN → QUOTE_SENT → ORDER_GENERATED → INVOICED
//
// with CANCELLED reachable from every non-invoiced state, UNRESERVE walking
// ORDER_GENERATED back to its quote state and UNINVOICE walking INVOICED
// back to ORDER_GENERATED. There is no direct quote → INVOICED path.
func transitionAllowed(from OrderStatus, action string) bool {
	switch action {
	case ActionSend:
		return from == StatusQuoteOpen
	case ActionReserve:
		return from.IsQuote()
	case ActionUnreserve:
		return from == StatusOrderGenerated
	case ActionInvoice:
		return from == StatusOrderGenerated
	case ActionUninvoice:
		return from == StatusInvoiced
	case ActionCancel:
		return from != StatusInvoiced && from != StatusCancelled
	default:
		return false
	}
}

// LifecycleService executes order status transitions. Every operation runs
// as one transaction covering the status change, the stock movements and the
// audit event, wrapped in a bounded retry on lock contention.
type LifecycleService interface {
	MarkQuoteSent(ctx context.Context, orderID int, actor string) (*Order, error)
	// Reserve earmarks stock for every line item, or fails atomically with a
	// shortage report naming each insufficient item. Assigns the sequential
	// order number on first reservation.
	Reserve(ctx context.Context, orderID int, actor string) (*Order, error)
	// Unreserve releases the reserved quantities and returns the order to
	// the quote state it was reserved from.
	Unreserve(ctx context.Context, orderID int, actor string) (*Order, error)
	// Invoice converts reservations into permanent on-hand deductions.
	Invoice(ctx context.Context, orderID int, actor string) (*Order, error)
	// Uninvoice reverses the deduction, returning stock to the
	// committed-but-not-consumed state.
	Uninvoice(ctx context.Context, orderID int, actor string) (*Order, error)
	// Cancel soft-cancels the order, releasing any reservations first.
	// Invoiced orders must be un-invoiced before they can be cancelled.
	Cancel(ctx context.Context, orderID int, actor string) (*Order, error)
}

type lifecycleService struct {
	pool    *pgxpool.Pool
	ledger  *Ledger
	retries int
}

func NewLifecycleService(pool *pgxpool.Pool, ledger *Ledger, conflictRetries int) LifecycleService {
	if conflictRetries < 1 {
		conflictRetries = 1
	}
	return &lifecycleService{pool: pool, ledger: ledger, retries: conflictRetries}
}

// isSerializationFailure reports whether err is a PostgreSQL serialization
// failure (40001) or deadlock (40P01) — the only errors the engine retries.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func (s *lifecycleService) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < s.retries; attempt++ {
		err = op(ctx)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
	}
	return &ConflictError{Attempts: s.retries, Err: err}
}

// transition runs one lifecycle operation: lock the order, validate the
// action, apply side effects, move the status, log the event — one commit.
func (s *lifecycleService) transition(ctx context.Context, orderID int, action, actor string,
	apply func(ctx context.Context, tx pgx.Tx, hdr *Order) (OrderStatus, error)) (*Order, error) {

	err := s.withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		hdr, err := fetchOrderForUpdateTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !transitionAllowed(hdr.Status, action) {
			return &InvalidTransitionError{OrderID: orderID, Action: action, From: hdr.Status}
		}

		to, err := apply(ctx, tx, hdr)
		if err != nil {
			return err
		}

		if err := appendEventTx(ctx, tx, orderID, action, &hdr.Status, &to, actor); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit %s: %w", action, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fetchOrderQ(ctx, s.pool, orderID)
}

func (s *lifecycleService) MarkQuoteSent(ctx context.Context, orderID int, actor string) (*Order, error) {
	return s.transition(ctx, orderID, ActionSend, actor,
		func(ctx context.Context, tx pgx.Tx, hdr *Order) (OrderStatus, error) {
			if _, err := tx.Exec(ctx,
				"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
				StatusQuoteSent, orderID,
			); err != nil {
				return "", fmt.Errorf("failed to mark quote sent: %w", err)
			}
			return StatusQuoteSent, nil
		})
}

func (s *lifecycleService) Reserve(ctx context.Context, orderID int, actor string) (*Order, error) {
	return s.transition(ctx, orderID, ActionReserve, actor,
		func(ctx context.Context, tx pgx.Tx, hdr *Order) (OrderStatus, error) {
			items, err := fetchOrderItemsQ(ctx, tx, orderID)
			if err != nil {
				return "", err
			}
			if len(items) == 0 {
				return "", fmt.Errorf("order %d has no items to reserve", orderID)
			}

			if err := s.ledger.ReserveBatchTx(ctx, tx, orderID, actor, items); err != nil {
				return "", err
			}

			orderNumber := hdr.OrderNumber
			if orderNumber == "" {
				orderNumber, err = nextOrderNumberTx(ctx, tx)
				if err != nil {
					return "", err
				}
			}

			if _, err := tx.Exec(ctx, `
				UPDATE orders
				SET status = $1, order_number = $2, reserved_from_status = $3, updated_at = NOW()
				WHERE id = $4
			`, StatusOrderGenerated, orderNumber, hdr.Status, orderID); err != nil {
				return "", fmt.Errorf("failed to move order %d to %s: %w", orderID, StatusOrderGenerated, err)
			}
			return StatusOrderGenerated, nil
		})
}

func (s *lifecycleService) Unreserve(ctx context.Context, orderID int, actor string) (*Order, error) {
	return s.transition(ctx, orderID, ActionUnreserve, actor,
		func(ctx context.Context, tx pgx.Tx, hdr *Order) (OrderStatus, error) {
			if hdr.StockPosted {
				// Invoiced stock must be restored through UNINVOICE first.
				return "", &InvalidTransitionError{OrderID: orderID, Action: ActionUnreserve, From: hdr.Status}
			}

			items, err := fetchOrderItemsQ(ctx, tx, orderID)
			if err != nil {
				return "", err
			}
			if err := s.ledger.ReleaseBatchTx(ctx, tx, orderID, actor, items); err != nil {
				return "", err
			}

			target := StatusQuoteOpen
			if hdr.ReservedFromStatus != nil {
				target = *hdr.ReservedFromStatus
			}

			if _, err := tx.Exec(ctx, `
				UPDATE orders SET status = $1, reserved_from_status = NULL, updated_at = NOW() WHERE id = $2
			`, target, orderID); err != nil {
				return "", fmt.Errorf("failed to move order %d back to %s: %w", orderID, target, err)
			}
			return target, nil
		})
}

func (s *lifecycleService) Invoice(ctx context.Context, orderID int, actor string) (*Order, error) {
	return s.transition(ctx, orderID, ActionInvoice, actor,
		func(ctx context.Context, tx pgx.Tx, hdr *Order) (OrderStatus, error) {
			items, err := fetchOrderItemsQ(ctx, tx, orderID)
			if err != nil {
				return "", err
			}
			if err := s.ledger.CommitBatchTx(ctx, tx, orderID, actor, items); err != nil {
				return "", err
			}

			if _, err := tx.Exec(ctx, `
				UPDATE orders SET status = $1, stock_posted = true, updated_at = NOW() WHERE id = $2
			`, StatusInvoiced, orderID); err != nil {
				return "", fmt.Errorf("failed to move order %d to %s: %w", orderID, StatusInvoiced, err)
			}
			return StatusInvoiced, nil
		})
}

func (s *lifecycleService) Uninvoice(ctx context.Context, orderID int, actor string) (*Order, error) {
	return s.transition(ctx, orderID, ActionUninvoice, actor,
		func(ctx context.Context, tx pgx.Tx, hdr *Order) (OrderStatus, error) {
			items, err := fetchOrderItemsQ(ctx, tx, orderID)
			if err != nil {
				return "", err
			}
			if err := s.ledger.RestoreBatchTx(ctx, tx, orderID, actor, items); err != nil {
				return "", err
			}

			if _, err := tx.Exec(ctx, `
				UPDATE orders SET status = $1, stock_posted = false, updated_at = NOW() WHERE id = $2
			`, StatusOrderGenerated, orderID); err != nil {
				return "", fmt.Errorf("failed to move order %d back to %s: %w", orderID, StatusOrderGenerated, err)
			}
			return StatusOrderGenerated, nil
		})
}

func (s *lifecycleService) Cancel(ctx context.Context, orderID int, actor string) (*Order, error) {
	return s.transition(ctx, orderID, ActionCancel, actor,
		func(ctx context.Context, tx pgx.Tx, hdr *Order) (OrderStatus, error) {
			if hdr.Status == StatusOrderGenerated {
				items, err := fetchOrderItemsQ(ctx, tx, orderID)
				if err != nil {
					return "", err
				}
				if err := s.ledger.ReleaseBatchTx(ctx, tx, orderID, actor, items); err != nil {
					return "", err
				}
			}

			if _, err := tx.Exec(ctx, `
				UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2
			`, StatusCancelled, orderID); err != nil {
				return "", fmt.Errorf("failed to cancel order %d: %w", orderID, err)
			}
			return StatusCancelled, nil
		})
}

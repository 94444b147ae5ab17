package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReceivablesService generates and reverses accounts-receivable installments
// for orders paid on term-based payment types.
type ReceivablesService interface {
	// Post parses the order's installment spec and writes one installment
	// per offset, the amounts summing exactly to the order total.
	Post(ctx context.Context, orderID int, actor string) ([]Installment, error)
	// Reverse voids a posting. Refused with PartiallySettledError when any
	// installment already carries downstream payments.
	Reverse(ctx context.Context, orderID int, actor string) error
	ListInstallments(ctx context.Context, orderID int) ([]Installment, error)
}

type receivablesService struct {
	pool *pgxpool.Pool
}

func NewReceivablesService(pool *pgxpool.Pool) ReceivablesService {
	return &receivablesService{pool: pool}
}

// parseInstallmentSpec parses a whitespace-separated list of day offsets,
// e.g. "30 60 90". Offsets must be non-negative integers.
func parseInstallmentSpec(spec string) ([]int, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, fmt.Errorf("installment spec is empty")
	}

	offsets := make([]int, 0, len(fields))
	for _, f := range fields {
		days, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid installment offset %q: expected a number of days", f)
		}
		if days < 0 {
			return nil, fmt.Errorf("invalid installment offset %d: must not be negative", days)
		}
		offsets = append(offsets, days)
	}
	return offsets, nil
}

// splitAmount divides total into n parts that sum exactly to total at cent
// precision. The division happens in integer cents; leftover cents are
// distributed one each to the earliest installments.
func splitAmount(total decimal.Decimal, n int) []decimal.Decimal {
	cents := total.Shift(2).Round(0).IntPart()
	base := cents / int64(n)
	remainder := cents % int64(n)

	amounts := make([]decimal.Decimal, n)
	for i := range amounts {
		c := base
		if int64(i) < remainder {
			c++
		}
		amounts[i] = decimal.New(c, -2)
	}
	return amounts
}

func (s *receivablesService) Post(ctx context.Context, orderID int, actor string) ([]Installment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	hdr, err := fetchOrderForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	// Receivables attach to committed orders only: the order must have
	// passed through reservation before its total is posted.
	if hdr.Status.IsQuote() || hdr.Status == StatusCancelled {
		return nil, fmt.Errorf("order %d: receivables require at least %s status, currently %s",
			orderID, StatusOrderGenerated, hdr.Status)
	}
	if hdr.AccountsPosted {
		return nil, fmt.Errorf("order %d: receivables are already posted", orderID)
	}
	if !hdr.Total.IsPositive() {
		return nil, fmt.Errorf("order %d: cannot post receivables for non-positive total %s",
			orderID, hdr.Total.StringFixed(2))
	}

	if hdr.PaymentTypeID == nil {
		return nil, &InvalidPaymentTypeError{OrderID: orderID}
	}
	var pt PaymentType
	err = tx.QueryRow(ctx,
		"SELECT id, name, classification, is_active FROM payment_types WHERE id = $1",
		*hdr.PaymentTypeID,
	).Scan(&pt.ID, &pt.Name, &pt.Classification, &pt.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve payment type %d: %w", *hdr.PaymentTypeID, err)
	}
	if pt.Classification != PaymentTerm || !pt.IsActive {
		return nil, &InvalidPaymentTypeError{OrderID: orderID, Name: pt.Name, Classification: pt.Classification}
	}

	if strings.TrimSpace(hdr.InstallmentSpec) == "" {
		return nil, &NoInstallmentSpecError{OrderID: orderID}
	}
	offsets, err := parseInstallmentSpec(hdr.InstallmentSpec)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", orderID, err)
	}

	amounts := splitAmount(hdr.Total, len(offsets))
	for i, days := range offsets {
		dueDate := hdr.CreatedAt.AddDate(0, 0, days)
		_, err = tx.Exec(ctx, `
			INSERT INTO installments (order_id, seq, offset_days, due_date, amount, posted_by)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, i+1, days, dueDate, amounts[i], actor)
		if err != nil {
			return nil, fmt.Errorf("failed to insert installment %d for order %d: %w", i+1, orderID, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders
		SET accounts_posted = true, accounts_posted_at = NOW(), accounts_posted_by = $1, updated_at = NOW()
		WHERE id = $2
	`, actor, orderID); err != nil {
		return nil, fmt.Errorf("failed to flag order %d accounts-posted: %w", orderID, err)
	}

	if err := appendEventTx(ctx, tx, orderID, "ACCOUNTS_POSTED", &hdr.Status, &hdr.Status, actor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit receivables posting: %w", err)
	}

	return s.ListInstallments(ctx, orderID)
}

func (s *receivablesService) Reverse(ctx context.Context, orderID int, actor string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	hdr, err := fetchOrderForUpdateTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !hdr.AccountsPosted {
		return fmt.Errorf("order %d: receivables are not posted", orderID)
	}

	// Downstream collections may already have settled part of the schedule.
	// Reversal must never discard collected funds.
	var settledCount int
	var settledTotal decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(paid_amount), 0)
		FROM installments
		WHERE order_id = $1 AND paid_amount > 0
	`, orderID).Scan(&settledCount, &settledTotal)
	if err != nil {
		return fmt.Errorf("failed to check installment settlement for order %d: %w", orderID, err)
	}
	if settledCount > 0 {
		return &PartiallySettledError{OrderID: orderID, SettledCount: settledCount, SettledTotal: settledTotal}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM installments WHERE order_id = $1", orderID); err != nil {
		return fmt.Errorf("failed to void installments for order %d: %w", orderID, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders
		SET accounts_posted = false, accounts_posted_at = NULL, accounts_posted_by = NULL, updated_at = NOW()
		WHERE id = $1
	`, orderID); err != nil {
		return fmt.Errorf("failed to clear accounts-posted flag on order %d: %w", orderID, err)
	}

	if err := appendEventTx(ctx, tx, orderID, "ACCOUNTS_REVERSED", &hdr.Status, &hdr.Status, actor); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit receivables reversal: %w", err)
	}
	return nil
}

func (s *receivablesService) ListInstallments(ctx context.Context, orderID int) ([]Installment, error) {
	return fetchInstallmentsQ(ctx, s.pool, orderID)
}

func fetchInstallmentsQ(ctx context.Context, q pgxQuerier, orderID int) ([]Installment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, seq, offset_days, due_date, amount, paid_amount, posted_by, created_at
		FROM installments
		WHERE order_id = $1
		ORDER BY seq
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var installments []Installment
	for rows.Next() {
		var inst Installment
		if err := rows.Scan(&inst.ID, &inst.OrderID, &inst.Seq, &inst.OffsetDays,
			&inst.DueDate, &inst.Amount, &inst.PaidAmount, &inst.PostedBy, &inst.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReportingService serves the read models consumed by display layers. It
// never mutates state.
type ReportingService interface {
	// OpenReceivables lists installments that are not fully settled,
	// earliest due date first.
	OpenReceivables(ctx context.Context) ([]OpenReceivable, error)
	// OrderSummary aggregates order counts and totals per status.
	OrderSummary(ctx context.Context) ([]StatusSummary, error)
}

type OpenReceivable struct {
	InstallmentID int             `json:"installment_id"`
	OrderID       int             `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerName  string          `json:"customer_name"`
	Seq           int             `json:"seq"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Outstanding   decimal.Decimal `json:"outstanding"`
}

type StatusSummary struct {
	Status OrderStatus     `json:"status"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

func (s *reportingService) OpenReceivables(ctx context.Context) ([]OpenReceivable, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.order_id, COALESCE(o.order_number, ''), o.customer_name,
		       i.seq, i.due_date, i.amount, i.paid_amount, i.amount - i.paid_amount AS outstanding
		FROM installments i
		JOIN orders o ON o.id = i.order_id
		WHERE i.paid_amount < i.amount
		ORDER BY i.due_date, i.order_id, i.seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open receivables: %w", err)
	}
	defer rows.Close()

	var receivables []OpenReceivable
	for rows.Next() {
		var r OpenReceivable
		if err := rows.Scan(&r.InstallmentID, &r.OrderID, &r.OrderNumber, &r.CustomerName,
			&r.Seq, &r.DueDate, &r.Amount, &r.PaidAmount, &r.Outstanding); err != nil {
			return nil, fmt.Errorf("failed to scan open receivable: %w", err)
		}
		receivables = append(receivables, r)
	}
	return receivables, rows.Err()
}

func (s *reportingService) OrderSummary(ctx context.Context) ([]StatusSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		GROUP BY status
		ORDER BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query order summary: %w", err)
	}
	defer rows.Close()

	var summary []StatusSummary
	for rows.Next() {
		var st StatusSummary
		if err := rows.Scan(&st.Status, &st.Count, &st.Total); err != nil {
			return nil, fmt.Errorf("failed to scan status summary: %w", err)
		}
		summary = append(summary, st)
	}
	return summary, rows.Err()
}

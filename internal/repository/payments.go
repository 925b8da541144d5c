package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"payflow.io/payflow/internal/payment"
	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// PaymentRepository stores payment rows and the persisted copy of their
// history.
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository creates a PaymentRepository.
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreatePayment inserts the payment and its creation event. An existing row
// with the same id is left untouched.
func (r *PaymentRepository) CreatePayment(ctx context.Context, p *payment.Payment, ev payment.Event) error {
	return runInTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO payments (id, user_id, customer_id, amount, currency, status,
				description, refunded_amount, created_at, updated_at)
			VALUES ($1, $2, NULLIF($3, ''), $4::numeric, $5, $6, $7, $8::numeric, $9, $10)
			ON CONFLICT (id) DO NOTHING
		`
		_, err := tx.Exec(ctx, query,
			p.ID, p.UserID, p.CustomerID, p.Amount.String(), string(p.Currency), string(p.Status),
			p.Description, p.RefundedAmount.String(), p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert payment %s: %w", p.ID, err)
		}
		return insertPaymentEvent(ctx, tx, p.ID, ev)
	})
}

// UpdatePaymentStatus sets the status and appends the event explaining it.
func (r *PaymentRepository) UpdatePaymentStatus(ctx context.Context, id string, status payment.Status, updatedAt time.Time, ev payment.Event) error {
	return runInTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`,
			id, string(status), updatedAt)
		if err != nil {
			return fmt.Errorf("update payment %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("payment %s: %w", id, apperrors.ErrNotFound)
		}
		return insertPaymentEvent(ctx, tx, id, ev)
	})
}

// RecordRefund stores the cumulative refunded amount and resulting status.
func (r *PaymentRepository) RecordRefund(ctx context.Context, id string, total payment.Amount, status payment.Status, updatedAt time.Time, ev payment.Event) error {
	return runInTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE payments
			SET refunded_amount = $2::numeric, status = $3, updated_at = $4
			WHERE id = $1
		`, id, total.String(), string(status), updatedAt)
		if err != nil {
			return fmt.Errorf("record refund for payment %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("payment %s: %w", id, apperrors.ErrNotFound)
		}
		return insertPaymentEvent(ctx, tx, id, ev)
	})
}

// GetPayment reads one payment row.
func (r *PaymentRepository) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	query := `
		SELECT id, user_id, COALESCE(customer_id, ''), amount::text, currency, status,
			description, refunded_amount::text, created_at, updated_at
		FROM payments
		WHERE id = $1
	`
	var (
		p                payment.Payment
		amount, refunded string
		currency, status string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.CustomerID, &amount, &currency, &status,
		&p.Description, &refunded, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payment %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}

	if p.Amount, err = parseAmount(amount); err != nil {
		return nil, fmt.Errorf("payment %s amount: %w", id, err)
	}
	if p.RefundedAmount, err = parseAmount(refunded); err != nil {
		return nil, fmt.Errorf("payment %s refunded amount: %w", id, err)
	}
	p.Currency = payment.Currency(currency)
	p.Status = payment.Status(status)
	return &p, nil
}

// ListPaymentEvents returns the persisted history of a payment in the order
// it was written.
func (r *PaymentRepository) ListPaymentEvents(ctx context.Context, paymentID string) ([]payment.Event, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, event_type, reason, payload, created_at
		FROM payment_events
		WHERE payment_id = $1
		ORDER BY created_at, id
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list events of payment %s: %w", paymentID, err)
	}
	defer rows.Close()

	events := make([]payment.Event, 0)
	for rows.Next() {
		var (
			ev      payment.Event
			evType  string
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &evType, &ev.Reason, &payload, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Type = payment.EventType(evType)
		if len(payload) > 0 {
			var data interface{}
			if err := json.Unmarshal(payload, &data); err != nil {
				return nil, fmt.Errorf("decode event %s payload: %w", ev.ID, err)
			}
			ev.Data = data
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func insertPaymentEvent(ctx context.Context, tx pgx.Tx, paymentID string, ev payment.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode event %s payload: %w", ev.ID, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO payment_events (id, payment_id, event_type, reason, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, paymentID, string(ev.Type), ev.Reason, payload, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

func parseAmount(s string) (payment.Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return payment.Amount{}, err
	}
	return payment.NewAmount(d)
}

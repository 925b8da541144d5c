package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow.io/payflow/internal/payment"
	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/testutil"
)

var created = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func amount(t *testing.T, s string) payment.Amount {
	t.Helper()
	a, err := payment.NewAmount(decimal.RequireFromString(s))
	require.NoError(t, err)
	return a
}

func newPendingPayment(t *testing.T, id string) *payment.Payment {
	t.Helper()
	return &payment.Payment{
		ID:             id,
		UserID:         "user-1",
		Amount:         amount(t, "100.00"),
		Currency:       payment.USD,
		Status:         payment.StatusPending,
		Description:    "invoice 42",
		RefundedAmount: amount(t, "0"),
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestPaymentRepository_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(testutil.OpenMigratedPool(t, "repo_pay_create"))

	p := newPendingPayment(t, "pay-1")
	ev := payment.Event{ID: "pay-1-1", Type: payment.EventPaymentCreated, Timestamp: created, Data: map[string]string{"amount": "100.00"}}
	require.NoError(t, repo.CreatePayment(ctx, p, ev))
	require.NoError(t, repo.CreatePayment(ctx, p, ev))

	got, err := repo.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Empty(t, got.CustomerID)
	assert.Equal(t, "100.00", got.Amount.String())
	assert.True(t, got.RefundedAmount.IsZero())
	assert.Equal(t, payment.USD, got.Currency)
	assert.Equal(t, payment.StatusPending, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))

	events, err := repo.ListPaymentEvents(ctx, "pay-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, payment.EventPaymentCreated, events[0].Type)
	assert.Equal(t, map[string]interface{}{"amount": "100.00"}, events[0].Data)
}

func TestPaymentRepository_UpdateStatusAppendsEvent(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(testutil.OpenMigratedPool(t, "repo_pay_update"))

	require.NoError(t, repo.CreatePayment(ctx, newPendingPayment(t, "pay-2"),
		payment.Event{ID: "pay-2-1", Type: payment.EventPaymentCreated, Timestamp: created}))

	later := created.Add(time.Minute)
	ev := payment.Event{
		ID:        "pay-2-2",
		Type:      payment.EventPaymentCancelled,
		Timestamp: later,
		Reason:    "customer request",
		Data:      payment.Cancellation{Reason: "customer request"},
	}
	require.NoError(t, repo.UpdatePaymentStatus(ctx, "pay-2", payment.StatusCancelled, later, ev))

	got, err := repo.GetPayment(ctx, "pay-2")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCancelled, got.Status)
	assert.True(t, later.Equal(got.UpdatedAt))

	events, err := repo.ListPaymentEvents(ctx, "pay-2")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, payment.EventPaymentCancelled, events[1].Type)
	assert.Equal(t, "customer request", events[1].Reason)
}

func TestPaymentRepository_RecordRefund(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(testutil.OpenMigratedPool(t, "repo_pay_refund"))

	p := newPendingPayment(t, "pay-3")
	p.Status = payment.StatusCompleted
	require.NoError(t, repo.CreatePayment(ctx, p,
		payment.Event{ID: "pay-3-1", Type: payment.EventPaymentCreated, Timestamp: created}))

	ev := payment.Event{ID: "pay-3-2", Type: payment.EventPaymentRefunded, Timestamp: created.Add(time.Hour)}
	require.NoError(t, repo.RecordRefund(ctx, "pay-3", amount(t, "40.00"), payment.StatusCompleted, created.Add(time.Hour), ev))

	got, err := repo.GetPayment(ctx, "pay-3")
	require.NoError(t, err)
	assert.Equal(t, "40.00", got.RefundedAmount.String())
	assert.Equal(t, payment.StatusCompleted, got.Status)

	ev = payment.Event{ID: "pay-3-3", Type: payment.EventPaymentRefunded, Timestamp: created.Add(2 * time.Hour)}
	require.NoError(t, repo.RecordRefund(ctx, "pay-3", amount(t, "100.00"), payment.StatusRefunded, created.Add(2*time.Hour), ev))

	got, err = repo.GetPayment(ctx, "pay-3")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, got.Status)
}

func TestPaymentRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository(testutil.OpenMigratedPool(t, "repo_pay_missing"))

	_, err := repo.GetPayment(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = repo.UpdatePaymentStatus(ctx, "missing", payment.StatusCancelled, created,
		payment.Event{ID: "missing-2", Type: payment.EventPaymentCancelled, Timestamp: created})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	events, err := repo.ListPaymentEvents(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

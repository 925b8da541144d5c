// Package activities implements the side-effecting steps that workflows
// schedule: payment persistence, onboarding writes and email notifications.
//
// Every write is idempotent. Rows are keyed by ids chosen inside the
// workflow, so a retried activity converges on the same state instead of
// duplicating it.
package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"payflow.io/payflow/internal/mailer"
	"payflow.io/payflow/internal/payment"
	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// PaymentStore persists payment aggregates and their history.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *payment.Payment, ev payment.Event) error
	UpdatePaymentStatus(ctx context.Context, id string, status payment.Status, updatedAt time.Time, ev payment.Event) error
	RecordRefund(ctx context.Context, id string, total payment.Amount, status payment.Status, updatedAt time.Time, ev payment.Event) error
	GetPayment(ctx context.Context, id string) (*payment.Payment, error)
}

// Contact is the addressable part of a user.
type Contact struct {
	Name  string
	Email string
}

// Directory answers existence and contact lookups for users and customers.
type Directory interface {
	GetUserContact(ctx context.Context, id string) (*Contact, error)
	CustomerExists(ctx context.Context, id string) (bool, error)
}

// PaymentActivities is registered on the worker as a struct so every exported
// method becomes an activity.
type PaymentActivities struct {
	Store     PaymentStore
	Directory Directory
	Mailer    mailer.Sender
}

// CreatePaymentRecord inserts the payment row and its PaymentCreated event.
// Re-running it for the same payment is a no-op.
func (a *PaymentActivities) CreatePaymentRecord(ctx context.Context, in CreatePaymentRecordInput) error {
	activity.GetLogger(ctx).Info("Persisting payment",
		"PaymentID", in.Payment.ID, "Amount", in.Payment.Amount.String(), "Currency", string(in.Payment.Currency))

	p := in.Payment
	if err := a.Store.CreatePayment(ctx, &p, in.Event); err != nil {
		return fmt.Errorf("create payment %s: %w", in.Payment.ID, err)
	}
	return nil
}

// UpdatePaymentStatus persists a status change together with its event.
func (a *PaymentActivities) UpdatePaymentStatus(ctx context.Context, in UpdatePaymentStatusInput) error {
	activity.GetLogger(ctx).Info("Persisting payment status",
		"PaymentID", in.PaymentID, "Status", string(in.Status), "Reason", in.Reason)

	err := a.Store.UpdatePaymentStatus(ctx, in.PaymentID, in.Status, in.UpdatedAt, in.Event)
	if errors.Is(err, apperrors.ErrNotFound) {
		// The aggregate only issues updates after a successful create, so a
		// missing row will not appear by retrying.
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("payment %s has no record", in.PaymentID), apperrors.CodePaymentNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("update payment %s status: %w", in.PaymentID, err)
	}
	return nil
}

// RecordPaymentRefund persists the cumulative refunded amount.
func (a *PaymentActivities) RecordPaymentRefund(ctx context.Context, in RecordPaymentRefundInput) error {
	activity.GetLogger(ctx).Info("Persisting payment refund",
		"PaymentID", in.PaymentID, "TotalRefunded", in.TotalRefunded.String(), "Status", string(in.Status))

	err := a.Store.RecordRefund(ctx, in.PaymentID, in.TotalRefunded, in.Status, in.UpdatedAt, in.Event)
	if errors.Is(err, apperrors.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("payment %s has no record", in.PaymentID), apperrors.CodePaymentNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("record refund for payment %s: %w", in.PaymentID, err)
	}
	return nil
}

// GetPaymentRecord reads a payment row. Not-found is non-retryable.
func (a *PaymentActivities) GetPaymentRecord(ctx context.Context, paymentID string) (*payment.Payment, error) {
	p, err := a.Store.GetPayment(ctx, paymentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("payment %s not found", paymentID), apperrors.CodePaymentNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentID, err)
	}
	return p, nil
}

// ValidatePaymentData checks a send-payment request before anything is written.
func (a *PaymentActivities) ValidatePaymentData(ctx context.Context, in SendPaymentInput) error {
	activity.GetLogger(ctx).Info("Validating payment data", "UserID", in.UserID)

	if err := validateStruct(in); err != nil {
		return err
	}
	if !in.Amount.IsPositive() {
		return validationError("Amount must be greater than 0", nil)
	}
	if _, err := payment.ParseCurrency(in.Currency); err != nil {
		return validationError(err.Error(), err)
	}
	return nil
}

// ProcessPayment checks that the referenced user and customer exist and
// writes a PENDING payment row.
func (a *PaymentActivities) ProcessPayment(ctx context.Context, in ProcessPaymentInput) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Processing payment", "PaymentID", in.PaymentID, "UserID", in.UserID)

	if _, err := a.Directory.GetUserContact(ctx, in.UserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("User with ID %s not found", in.UserID), apperrors.CodeUserNotFound, err)
		}
		return "", fmt.Errorf("look up user %s: %w", in.UserID, err)
	}

	if in.CustomerID != "" {
		ok, err := a.Directory.CustomerExists(ctx, in.CustomerID)
		if err != nil {
			return "", fmt.Errorf("look up customer %s: %w", in.CustomerID, err)
		}
		if !ok {
			return "", temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("Customer with ID %s not found", in.CustomerID), apperrors.CodeCustomerNotFound, nil)
		}
	}

	agg := payment.NewAggregate(in.PaymentID)
	now := time.Now().UTC()
	p, err := agg.CheckCreate(payment.CreateParams{
		UserID:      in.UserID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		CustomerID:  in.CustomerID,
		Description: in.Description,
	}, now)
	if err != nil {
		return "", validationError(err.Error(), err)
	}

	ev := agg.NextEvent(payment.EventPaymentCreated, p, "", now)
	if err := a.Store.CreatePayment(ctx, p, ev); err != nil {
		return "", fmt.Errorf("create payment %s: %w", in.PaymentID, err)
	}

	logger.Info("Payment processed", "PaymentID", in.PaymentID)
	return in.PaymentID, nil
}

// SendPaymentEmail notifies the paying user.
func (a *PaymentActivities) SendPaymentEmail(ctx context.Context, in SendPaymentEmailInput) error {
	contact, err := a.Directory.GetUserContact(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("User with ID %s not found", in.UserID), apperrors.CodeUserNotFound, err)
		}
		return fmt.Errorf("look up user %s: %w", in.UserID, err)
	}

	return a.Mailer.Send(ctx, mailer.Message{
		To:      contact.Email,
		Subject: fmt.Sprintf("Payment Confirmation - %s %s", in.Amount.String(), in.Currency),
		Body: fmt.Sprintf("Hello %s, your payment %s of %s %s is %s.",
			contact.Name, in.PaymentID, in.Amount.String(), in.Currency, in.Status),
	})
}

package activities

import (
	"time"

	"github.com/shopspring/decimal"

	"payflow.io/payflow/internal/domain"
	"payflow.io/payflow/internal/payment"
)

// CreatePaymentRecordInput persists a newly created payment with its first
// history event.
type CreatePaymentRecordInput struct {
	Payment payment.Payment `json:"payment"`
	Event   payment.Event   `json:"event"`
}

// UpdatePaymentStatusInput persists a status change and the event explaining it.
type UpdatePaymentStatusInput struct {
	PaymentID string         `json:"paymentId"`
	Status    payment.Status `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Event     payment.Event  `json:"event"`
}

// RecordPaymentRefundInput persists the cumulative refunded amount, and the
// REFUNDED status when the refund is full.
type RecordPaymentRefundInput struct {
	PaymentID     string         `json:"paymentId"`
	TotalRefunded payment.Amount `json:"totalRefunded"`
	Status        payment.Status `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	Event         payment.Event  `json:"event"`
}

// SendPaymentInput is both the SendPaymentWorkflow input and the
// ValidatePaymentData activity input.
type SendPaymentInput struct {
	UserID      string          `json:"userId" validate:"required"`
	CustomerID  string          `json:"customerId,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"required"`
	Description string          `json:"description,omitempty"`
}

// ProcessPaymentInput creates a PENDING payment row for a send-payment run.
// PaymentID is chosen by the workflow so retries write the same row.
type ProcessPaymentInput struct {
	PaymentID   string          `json:"paymentId"`
	UserID      string          `json:"userId"`
	CustomerID  string          `json:"customerId,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
}

// SendPaymentEmailInput notifies a user about a payment.
type SendPaymentEmailInput struct {
	UserID    string         `json:"userId"`
	PaymentID string         `json:"paymentId"`
	Amount    payment.Amount `json:"amount"`
	Currency  string         `json:"currency"`
	Status    payment.Status `json:"status"`
}

// UserOnboardingInput is the UserOnboardingWorkflow input.
type UserOnboardingInput struct {
	RequestID   string             `json:"requestId"`
	Name        string             `json:"name" validate:"required,min=2"`
	Email       string             `json:"email" validate:"required,email"`
	Phone       string             `json:"phone,omitempty"`
	CompanyName string             `json:"companyName,omitempty"`
	Address     domain.AddressData `json:"address" validate:"required"`
}

// CreateAddressInput writes an address. AddressID is chosen by the workflow.
type CreateAddressInput struct {
	AddressID string             `json:"addressId"`
	Address   domain.AddressData `json:"address"`
}

// CreateUserInput writes a user and publishes USER_CREATED.
type CreateUserInput struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	AddressID   string `json:"addressId"`
	Context     string `json:"context,omitempty"`
}

// CreateCustomerInput is the CreateCustomerWorkflow and ValidateCustomerData input.
type CreateCustomerInput struct {
	UserID      string `json:"userId" validate:"required"`
	CompanyName string `json:"companyName" validate:"required,min=2"`
	ContactName string `json:"contactName" validate:"required,min=2"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone,omitempty"`
	AddressID   string `json:"addressId" validate:"required"`
	Context     string `json:"context,omitempty"`
}

// CreateCustomerRecordInput writes a customer and publishes CUSTOMER_CREATED.
type CreateCustomerRecordInput struct {
	CustomerID string              `json:"customerId"`
	Customer   CreateCustomerInput `json:"customer"`
}

// CustomerWelcomeInput is the CustomerWelcomeWorkflow input.
type CustomerWelcomeInput struct {
	CustomerID  string `json:"customerId"`
	Email       string `json:"email"`
	CompanyName string `json:"companyName"`
	ContactName string `json:"contactName,omitempty"`
}

// EmailInput is a plain outgoing email.
type EmailInput struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

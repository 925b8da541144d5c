package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType defines the type of domain event.
type EventType string

const (
	// Payment
	EventStartPaymentProcessingRequested EventType = "START_PAYMENT_PROCESSING_REQUESTED"

	// Onboarding
	EventUserOnboardingRequested EventType = "USER_ONBOARDING_REQUESTED"
	EventUserCreated             EventType = "USER_CREATED"
	EventCustomerCreated         EventType = "CUSTOMER_CREATED"
)

// Aggregate types recorded on domain events.
const (
	AggregatePayment    = "payment"
	AggregateOnboarding = "onboarding"
	AggregateUser       = "user"
	AggregateCustomer   = "customer"
)

// ContextOnboarding marks users and customers created by the onboarding flow.
// Saga reactions to USER_CREATED and CUSTOMER_CREATED only fire for it.
const ContextOnboarding = "ONBOARDING"

// EventStatus defines the delivery status of a domain event.
type EventStatus string

const (
	EventStatusPending    EventStatus = "PENDING"
	EventStatusProcessing EventStatus = "PROCESSING"
	EventStatusCompleted  EventStatus = "COMPLETED"
	EventStatusFailed     EventStatus = "FAILED"
)

// DomainEvent is an immutable fact published to the event bus. The payload is
// stored as raw JSON so the outbox table and in-process delivery share one
// representation.
type DomainEvent struct {
	EventID       string      `json:"event_id"`
	EventType     EventType   `json:"event_type"`
	AggregateType string      `json:"aggregate_type"`
	AggregateID   string      `json:"aggregate_id"`
	Payload       []byte      `json:"payload"`
	Status        EventStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

// DecodePayload unmarshals the event payload into v.
func (e *DomainEvent) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// StartPaymentProcessingPayload asks for a send-payment run.
type StartPaymentProcessingPayload struct {
	UserID      string          `json:"user_id"`
	CustomerID  string          `json:"customer_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
}

// ToJSON converts payload to JSON bytes.
func (p StartPaymentProcessingPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// AddressData is a postal address as submitted during onboarding.
type AddressData struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	ZipCode string `json:"zip_code" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// UserOnboardingRequestedPayload carries the data of a signup request.
type UserOnboardingRequestedPayload struct {
	RequestID   string      `json:"request_id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone,omitempty"`
	CompanyName string      `json:"company_name,omitempty"`
	Address     AddressData `json:"address"`
}

// ToJSON converts payload to JSON bytes.
func (p UserOnboardingRequestedPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// UserCreatedPayload is published after a user row is written.
type UserCreatedPayload struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	AddressID   string `json:"address_id,omitempty"`
	Context     string `json:"context,omitempty"`
}

// ToJSON converts payload to JSON bytes.
func (p UserCreatedPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// CustomerCreatedPayload is published after a customer row is written.
type CustomerCreatedPayload struct {
	CustomerID  string `json:"customer_id"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone,omitempty"`
	AddressID   string `json:"address_id,omitempty"`
	Context     string `json:"context,omitempty"`
}

// ToJSON converts payload to JSON bytes.
func (p CustomerCreatedPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// Payload is implemented by every event payload type.
type Payload interface {
	ToJSON() ([]byte, error)
}

// NewEvent builds a pending DomainEvent with a JSON-encoded payload.
func NewEvent(id string, t EventType, aggregateType, aggregateID string, payload Payload, now time.Time) (*DomainEvent, error) {
	raw, err := payload.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return &DomainEvent{
		EventID:       id,
		EventType:     t,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       raw,
		Status:        EventStatusPending,
		CreatedAt:     now,
	}, nil
}

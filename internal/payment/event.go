package payment

import (
	"fmt"
	"time"
)

// EventType names an entry in a payment's history.
type EventType string

const (
	EventPaymentCreated             EventType = "PaymentCreated"
	EventPaymentStatusUpdated       EventType = "PaymentStatusUpdated"
	EventPaymentProcessingStarted   EventType = "PaymentProcessingStarted"
	EventPaymentProcessingCompleted EventType = "PaymentProcessingCompleted"
	EventPaymentProcessingFailed    EventType = "PaymentProcessingFailed"
	EventPaymentCancelled           EventType = "PaymentCancelled"
	EventPaymentRefunded            EventType = "PaymentRefunded"
)

// Event is one append-only history entry of a payment aggregate.
//
// ID is "<paymentId>-<sequence>", so re-persisting the same event after an
// activity retry hits the same primary key.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	Reason    string      `json:"reason,omitempty"`
}

// StatusChange is the payload of PaymentStatusUpdated.
type StatusChange struct {
	OldStatus Status `json:"oldStatus"`
	NewStatus Status `json:"newStatus"`
	Reason    string `json:"reason,omitempty"`
}

// ProcessingStarted is the payload of PaymentProcessingStarted.
type ProcessingStarted struct {
	PaymentMethod string                 `json:"paymentMethod,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ProcessingCompleted is the payload of PaymentProcessingCompleted.
type ProcessingCompleted struct {
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

// ProcessingFailed is the payload of PaymentProcessingFailed.
type ProcessingFailed struct {
	Error string `json:"error"`
}

// Cancellation is the payload of PaymentCancelled.
type Cancellation struct {
	Reason string `json:"reason"`
}

// Refund is the payload of PaymentRefunded.
type Refund struct {
	RefundAmount  Amount `json:"refundAmount"`
	TotalRefunded Amount `json:"totalRefunded"`
	Reason        string `json:"reason,omitempty"`
	IsFullRefund  bool   `json:"isFullRefund"`
}

// EventID builds the deterministic id of the seq-th event of a payment.
func EventID(paymentID string, seq int) string {
	return fmt.Sprintf("%s-%d", paymentID, seq)
}

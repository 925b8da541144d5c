package payment

import (
	"fmt"
	"strings"

	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// Status is the lifecycle state of a payment.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// StatusNotFound is what status queries answer before a payment exists.
const StatusNotFound = "not_found"

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending, StatusProcessing, StatusCompleted,
	StatusFailed, StatusCancelled, StatusRefunded,
}

// transitions is the single transition table for payments.
// FAILED -> PENDING is the retry path.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted:  {StatusRefunded},
	StatusFailed:     {StatusPending},
	StatusCancelled:  nil,
	StatusRefunded:   nil,
}

// ParseStatus is case-insensitive.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := transitions[st]; !ok {
		return "", apperrors.FromCode(apperrors.CodePaymentInvalidInput,
			fmt.Sprintf("unknown payment status %q", s), ErrInvalidInput)
	}
	return st, nil
}

// IsValid reports whether s is one of the six statuses.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether s -> to is allowed.
func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// IsCancellable reports whether a payment in s may be cancelled.
func (s Status) IsCancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s Status) String() string { return string(s) }

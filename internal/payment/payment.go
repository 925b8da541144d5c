// Package payment holds the payment domain: money and status value types and
// the aggregate state machine that the payment workflow drives.
//
// Nothing here touches I/O or the workflow runtime. Every mutating operation
// is split into a Check step, which validates against current state without
// changing it, and an Apply step, which the caller runs only after the change
// has been persisted.
package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProcessingMode selects how processPayment reaches a final state.
type ProcessingMode string

const (
	// ProcessingAuto completes the payment right after PROCESSING is persisted.
	ProcessingAuto ProcessingMode = "auto"
	// ProcessingExternal leaves the payment in PROCESSING until a processor
	// reports the outcome through completeProcessing.
	ProcessingExternal ProcessingMode = "external"
)

// ParseProcessingMode defaults the empty string to auto.
func ParseProcessingMode(s string) (ProcessingMode, error) {
	switch ProcessingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProcessingAuto:
		return ProcessingAuto, nil
	case ProcessingExternal:
		return ProcessingExternal, nil
	default:
		return "", fmt.Errorf("unknown processing mode %q", s)
	}
}

// Payment is the aggregate snapshot returned by getPayment.
type Payment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CustomerID     string    `json:"customerId,omitempty"`
	Amount         Amount    `json:"amount"`
	Currency       Currency  `json:"currency"`
	Status         Status    `json:"status"`
	Description    string    `json:"description,omitempty"`
	RefundedAmount Amount    `json:"refundedAmount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CreateParams is the createPayment command.
type CreateParams struct {
	UserID      string          `json:"userId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CustomerID  string          `json:"customerId,omitempty"`
	Description string          `json:"description,omitempty"`
}

// StatusUpdate is the updatePaymentStatus command.
type StatusUpdate struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ProcessParams is the processPayment command.
type ProcessParams struct {
	PaymentMethod string                 `json:"paymentMethod,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ProcessingResult is the completeProcessing command sent by a payment
// processor callback in external mode.
type ProcessingResult struct {
	Succeeded     bool   `json:"succeeded"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
}

// CancelParams is the cancelPayment command.
type CancelParams struct {
	Reason string `json:"reason"`
}

// RefundParams is the refundPayment command. A nil Amount refunds whatever
// has not been refunded yet.
type RefundParams struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Reason string           `json:"reason"`
}

// RefundPlan is a validated refund, ready to persist.
type RefundPlan struct {
	RefundAmount  Amount
	TotalRefunded Amount
	IsFullRefund  bool
	Reason        string
}

// NewStatus is the status after the plan is applied.
func (r RefundPlan) NewStatus(current Status) Status {
	if r.IsFullRefund {
		return StatusRefunded
	}
	return current
}

// Aggregate is the in-memory state of one payment: the snapshot (nil until
// created) and its append-only history.
type Aggregate struct {
	ID      string
	payment *Payment
	history []Event
}

// NewAggregate returns an aggregate in the initial, not-yet-created state.
func NewAggregate(id string) *Aggregate {
	return &Aggregate{ID: id, history: []Event{}}
}

// Exists reports whether createPayment has succeeded.
func (a *Aggregate) Exists() bool { return a.payment != nil }

// Snapshot returns a copy of the current payment, or nil before creation.
func (a *Aggregate) Snapshot() *Payment {
	if a.payment == nil {
		return nil
	}
	p := *a.payment
	return &p
}

// StatusString answers getPaymentStatus.
func (a *Aggregate) StatusString() string {
	if a.payment == nil {
		return StatusNotFound
	}
	return string(a.payment.Status)
}

// History returns a copy of the event list, never nil.
func (a *Aggregate) History() []Event {
	out := make([]Event, len(a.history))
	copy(out, a.history)
	return out
}

// Refundable reports whether part of the amount can still be refunded.
func (a *Aggregate) Refundable() bool {
	return a.payment != nil &&
		a.payment.Status == StatusCompleted &&
		a.payment.RefundedAmount.LessThan(a.payment.Amount)
}

// Cancellable reports whether cancelPayment would be accepted.
func (a *Aggregate) Cancellable() bool {
	return a.payment != nil && a.payment.Status.IsCancellable()
}

// NextEvent builds the event that would be appended next. It does not
// append it; call Append once the event is persisted.
func (a *Aggregate) NextEvent(t EventType, data interface{}, reason string, now time.Time) Event {
	return Event{
		ID:        EventID(a.ID, len(a.history)+1),
		Type:      t,
		Timestamp: now,
		Data:      data,
		Reason:    reason,
	}
}

// Append adds a persisted event to history.
func (a *Aggregate) Append(e Event) {
	a.history = append(a.history, e)
}

// CheckCreate validates a createPayment command and builds the payment it
// would create.
func (a *Aggregate) CheckCreate(in CreateParams, now time.Time) (*Payment, error) {
	if a.payment != nil {
		return nil, alreadyExists(a.ID)
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, invalidInput("userId", "userId is required")
	}
	if !in.Amount.IsPositive() {
		return nil, invalidAmount("Payment amount must be greater than zero")
	}
	amount, err := NewAmount(in.Amount)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, invalidAmount("Payment amount must be greater than zero")
	}
	cur, err := ParseCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	return &Payment{
		ID:          a.ID,
		UserID:      in.UserID,
		CustomerID:  in.CustomerID,
		Amount:      amount,
		Currency:    cur,
		Status:      StatusPending,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApplyCreate installs a payment built by CheckCreate.
func (a *Aggregate) ApplyCreate(p *Payment) {
	cp := *p
	a.payment = &cp
}

// CheckTransition validates a move to status to.
func (a *Aggregate) CheckTransition(to Status) error {
	if a.payment == nil {
		return notFound(a.ID)
	}
	if !a.payment.Status.CanTransitionTo(to) {
		return illegalTransition(a.payment.Status, to)
	}
	return nil
}

// CheckProcess validates a processPayment command.
func (a *Aggregate) CheckProcess() error {
	if a.payment == nil {
		return notFound(a.ID)
	}
	if a.payment.Status != StatusPending {
		return cannotProcess(a.payment.Status)
	}
	return nil
}

// CheckProcessingResult validates an external processor outcome.
func (a *Aggregate) CheckProcessingResult() error {
	if a.payment == nil {
		return notFound(a.ID)
	}
	if a.payment.Status != StatusProcessing {
		return illegalTransition(a.payment.Status, StatusCompleted)
	}
	return nil
}

// CheckCancel validates a cancelPayment command.
func (a *Aggregate) CheckCancel() error {
	if a.payment == nil {
		return notFound(a.ID)
	}
	if !a.payment.Status.IsCancellable() {
		return cannotCancel(a.payment.Status)
	}
	return nil
}

// PlanRefund validates a refundPayment command and computes its effect.
func (a *Aggregate) PlanRefund(in RefundParams) (RefundPlan, error) {
	if a.payment == nil {
		return RefundPlan{}, notFound(a.ID)
	}
	p := a.payment
	if p.Status != StatusCompleted {
		return RefundPlan{}, cannotRefund(p.Status)
	}

	remaining, err := p.Amount.Sub(p.RefundedAmount)
	if err != nil {
		return RefundPlan{}, err
	}
	refund := remaining
	if in.Amount != nil {
		if !in.Amount.IsPositive() {
			return RefundPlan{}, invalidRefund(Amount{d: in.Amount.Round(amountScale)}, p.RefundedAmount, p.Amount)
		}
		if refund, err = NewAmount(*in.Amount); err != nil {
			return RefundPlan{}, err
		}
	}
	if refund.IsZero() || refund.GreaterThan(remaining) {
		return RefundPlan{}, invalidRefund(refund, p.RefundedAmount, p.Amount)
	}

	total := p.RefundedAmount.Add(refund)
	return RefundPlan{
		RefundAmount:  refund,
		TotalRefunded: total,
		IsFullRefund:  !total.LessThan(p.Amount),
		Reason:        in.Reason,
	}, nil
}

// SetStatus records a persisted status change.
func (a *Aggregate) SetStatus(to Status, now time.Time) {
	a.payment.Status = to
	a.payment.UpdatedAt = now
}

// ApplyRefund records a persisted refund.
func (a *Aggregate) ApplyRefund(plan RefundPlan, now time.Time) {
	a.payment.RefundedAmount = plan.TotalRefunded
	a.payment.Status = plan.NewStatus(a.payment.Status)
	a.payment.UpdatedAt = now
}

// State is the serialisable form of an aggregate. The workflow carries it
// across continue-as-new. Event payloads come back as generic JSON values.
type State struct {
	Payment *Payment `json:"payment,omitempty"`
	History []Event  `json:"history"`
}

// State exports the aggregate.
func (a *Aggregate) State() State {
	return State{Payment: a.Snapshot(), History: a.History()}
}

// RestoreAggregate rebuilds an aggregate from exported state.
func RestoreAggregate(id string, s State) *Aggregate {
	a := NewAggregate(id)
	if s.Payment != nil {
		a.ApplyCreate(s.Payment)
	}
	a.history = append(a.history, s.History...)
	return a
}

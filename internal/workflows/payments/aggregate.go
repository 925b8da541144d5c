// Package payments contains the payment workflows: the long-lived payment
// aggregate, one instance per payment id, and the one-shot send-payment flow
// started by the saga.
package payments

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"payflow.io/payflow/internal/activities"
	"payflow.io/payflow/internal/payment"
	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/workflows"
)

// Registered names. Updates and queries are addressed by these strings.
const (
	AggregateWorkflowName = "PaymentAggregateWorkflow"

	UpdateCreatePayment      = "createPayment"
	UpdatePaymentStatus      = "updatePaymentStatus"
	UpdateProcessPayment     = "processPayment"
	UpdateCompleteProcessing = "completeProcessing"
	UpdateCancelPayment      = "cancelPayment"
	UpdateRefundPayment      = "refundPayment"

	QueryGetPayment           = "getPayment"
	QueryGetPaymentStatus     = "getPaymentStatus"
	QueryGetPaymentHistory    = "getPaymentHistory"
	QueryIsPaymentRefundable  = "isPaymentRefundable"
	QueryIsPaymentCancellable = "isPaymentCancellable"
)

const workflowIDPrefix = "payment-aggregate-"

// WorkflowID is the id of the aggregate workflow owning paymentID.
func WorkflowID(paymentID string) string {
	return workflowIDPrefix + paymentID
}

// AggregateParams starts an aggregate workflow. State is only set when the
// workflow continues as new.
type AggregateParams struct {
	PaymentID      string                 `json:"paymentId"`
	ProcessingMode payment.ProcessingMode `json:"processingMode,omitempty"`
	State          *payment.State         `json:"state,omitempty"`
}

// Workflows carries worker-level settings into workflow code. It holds no
// per-execution state.
type Workflows struct {
	Policy workflows.ActivityPolicy
}

// Register adds the payment workflows and activities to a worker.
func (w *Workflows) Register(r workflows.Registry, acts *activities.PaymentActivities) {
	r.RegisterWorkflowWithOptions(w.PaymentAggregate, workflow.RegisterOptions{Name: AggregateWorkflowName})
	r.RegisterWorkflowWithOptions(w.SendPayment, workflow.RegisterOptions{Name: SendPaymentWorkflowName})
	r.RegisterActivity(acts)
}

// paymentActs is only used to name activity methods.
var paymentActs *activities.PaymentActivities

// aggregateRun is the state of one aggregate execution. Every handler runs on
// the workflow's single coroutine scheduler; busy serializes handlers across
// the activity calls where they yield.
type aggregateRun struct {
	agg    *payment.Aggregate
	mode   payment.ProcessingMode
	policy workflows.ActivityPolicy
	busy   bool
}

// PaymentAggregate runs until an operator terminates or cancels it.
func (w *Workflows) PaymentAggregate(ctx workflow.Context, params AggregateParams) error {
	logger := workflow.GetLogger(ctx)

	mode := params.ProcessingMode
	if mode == "" {
		mode = payment.ProcessingAuto
	}
	run := &aggregateRun{
		agg:    payment.NewAggregate(params.PaymentID),
		mode:   mode,
		policy: w.Policy,
	}
	if params.State != nil {
		run.agg = payment.RestoreAggregate(params.PaymentID, *params.State)
	}

	if err := run.registerQueries(ctx); err != nil {
		return err
	}
	if err := run.registerUpdates(ctx); err != nil {
		return err
	}
	logger.Info("Payment aggregate started", "PaymentID", params.PaymentID, "Mode", string(mode), "Restored", params.State != nil)

	// No lifecycle event ends the aggregate. Only the history size limit
	// wakes this up, and the state then moves to a fresh run.
	err := workflow.Await(ctx, func() bool {
		return !run.busy && workflow.GetInfo(ctx).GetContinueAsNewSuggested()
	})
	if err != nil {
		return err
	}
	if err := workflow.Await(ctx, func() bool { return workflow.AllHandlersFinished(ctx) }); err != nil {
		return err
	}

	state := run.agg.State()
	logger.Info("Payment aggregate continuing as new", "PaymentID", params.PaymentID, "Events", len(state.History))
	return workflow.NewContinueAsNewError(ctx, AggregateWorkflowName, AggregateParams{
		PaymentID:      params.PaymentID,
		ProcessingMode: mode,
		State:          &state,
	})
}

func (r *aggregateRun) registerQueries(ctx workflow.Context) error {
	queries := []struct {
		name    string
		handler interface{}
	}{
		{QueryGetPayment, func() (*payment.Payment, error) { return r.agg.Snapshot(), nil }},
		{QueryGetPaymentStatus, func() (string, error) { return r.agg.StatusString(), nil }},
		{QueryGetPaymentHistory, func() ([]payment.Event, error) { return r.agg.History(), nil }},
		{QueryIsPaymentRefundable, func() (bool, error) { return r.agg.Refundable(), nil }},
		{QueryIsPaymentCancellable, func() (bool, error) { return r.agg.Cancellable(), nil }},
	}
	for _, q := range queries {
		if err := workflow.SetQueryHandler(ctx, q.name, q.handler); err != nil {
			return fmt.Errorf("register query %s: %w", q.name, err)
		}
	}
	return nil
}

func (r *aggregateRun) registerUpdates(ctx workflow.Context) error {
	updates := []struct {
		name      string
		handler   interface{}
		validator interface{}
	}{
		{UpdateCreatePayment, r.create, func(_ workflow.Context, in payment.CreateParams) error {
			_, err := r.agg.CheckCreate(in, time.Time{})
			return rejection(err)
		}},
		{UpdatePaymentStatus, r.updateStatus, func(_ workflow.Context, in payment.StatusUpdate) error {
			return rejection(r.agg.CheckTransition(in.Status))
		}},
		{UpdateProcessPayment, r.process, func(_ workflow.Context, _ payment.ProcessParams) error {
			return rejection(r.agg.CheckProcess())
		}},
		{UpdateCompleteProcessing, r.completeProcessing, func(_ workflow.Context, _ payment.ProcessingResult) error {
			return rejection(r.checkCompleteProcessing())
		}},
		{UpdateCancelPayment, r.cancel, func(_ workflow.Context, _ payment.CancelParams) error {
			return rejection(r.agg.CheckCancel())
		}},
		{UpdateRefundPayment, r.refund, func(_ workflow.Context, in payment.RefundParams) error {
			_, err := r.agg.PlanRefund(in)
			return rejection(err)
		}},
	}
	for _, u := range updates {
		err := workflow.SetUpdateHandlerWithOptions(ctx, u.name, u.handler, workflow.UpdateHandlerOptions{
			Validator: u.validator,
		})
		if err != nil {
			return fmt.Errorf("register update %s: %w", u.name, err)
		}
	}
	return nil
}

// lock waits for the running handler to finish. Validators ran against the
// state at admission, so handlers check again after locking.
func (r *aggregateRun) lock(ctx workflow.Context) (func(), error) {
	if err := workflow.Await(ctx, func() bool { return !r.busy }); err != nil {
		return nil, err
	}
	r.busy = true
	return func() { r.busy = false }, nil
}

func (r *aggregateRun) create(ctx workflow.Context, in payment.CreateParams) (*payment.Payment, error) {
	unlock, err := r.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := workflow.Now(ctx)
	p, err := r.agg.CheckCreate(in, now)
	if err != nil {
		return nil, rejection(err)
	}
	ev := r.agg.NextEvent(payment.EventPaymentCreated, p, "", now)

	err = workflow.ExecuteActivity(r.policy.WithOptions(ctx), paymentActs.CreatePaymentRecord,
		activities.CreatePaymentRecordInput{Payment: *p, Event: ev}).Get(ctx, nil)
	if err != nil {
		return nil, persistenceFailure("payment creation", err)
	}

	r.agg.ApplyCreate(p)
	r.agg.Append(ev)
	workflow.GetLogger(ctx).Info("Payment created", "PaymentID", p.ID, "Amount", p.Amount.String(), "Currency", string(p.Currency))
	return r.agg.Snapshot(), nil
}

func (r *aggregateRun) updateStatus(ctx workflow.Context, in payment.StatusUpdate) (*payment.Payment, error) {
	unlock, err := r.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := r.agg.CheckTransition(in.Status); err != nil {
		return nil, rejection(err)
	}
	old := r.agg.Snapshot().Status
	change := payment.StatusChange{OldStatus: old, NewStatus: in.Status, Reason: in.Reason}
	if err := r.setStatus(ctx, in.Status, payment.EventPaymentStatusUpdated, change, in.Reason); err != nil {
		return nil, err
	}
	return r.agg.Snapshot(), nil
}

func (r *aggregateRun) process(ctx workflow.Context, in payment.ProcessParams) (*payment.Payment, error) {
	unlock, err := r.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := r.agg.CheckProcess(); err != nil {
		return nil, rejection(err)
	}

	started := payment.ProcessingStarted{PaymentMethod: in.PaymentMethod, Metadata: in.Metadata}
	if err := r.setStatus(ctx, payment.StatusProcessing, payment.EventPaymentProcessingStarted, started, ""); err != nil {
		return nil, err
	}
	if r.mode == payment.ProcessingExternal {
		return r.agg.Snapshot(), nil
	}

	completed := payment.ProcessingCompleted{PaymentMethod: in.PaymentMethod}
	if err := r.setStatus(ctx, payment.StatusCompleted, payment.EventPaymentProcessingCompleted, completed, ""); err != nil {
		if ferr := r.fail(ctx, err.Error()); ferr != nil {
			return nil, ferr
		}
	}
	return r.agg.Snapshot(), nil
}

func (r *aggregateRun) checkCompleteProcessing() error {
	if r.mode != payment.ProcessingExternal {
		return payment.ProcessingModeError(r.mode, UpdateCompleteProcessing)
	}
	return r.agg.CheckProcessingResult()
}

func (r *aggregateRun) completeProcessing(ctx workflow.Context, in payment.ProcessingResult) (*payment.Payment, error) {
	unlock, err := r.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := r.checkCompleteProcessing(); err != nil {
		return nil, rejection(err)
	}

	if !in.Succeeded {
		reason := in.FailureReason
		if reason == "" {
			reason = "payment processor reported a failure"
		}
		if err := r.fail(ctx, reason); err != nil {
			return nil, err
		}
		return r.agg.Snapshot(), nil
	}

	completed := payment.ProcessingCompleted{PaymentMethod: in.PaymentMethod}
	if err := r.setStatus(ctx, payment.StatusCompleted, payment.EventPaymentProcessingCompleted, completed, ""); err != nil {
		return nil, err
	}
	return r.agg.Snapshot(), nil
}

func (r *aggregateRun) cancel(ctx workflow.Context, in payment.CancelParams) (*payment.Payment, error) {
	unlock, err := r.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := r.agg.CheckCancel(); err != nil {
		return nil, rejection(err)
	}
	if err := r.setStatus(ctx, payment.StatusCancelled, payment.EventPaymentCancelled,
		payment.Cancellation{Reason: in.Reason}, in.Reason); err != nil {
		return nil, err
	}
	return r.agg.Snapshot(), nil
}

func (r *aggregateRun) refund(ctx workflow.Context, in payment.RefundParams) (*payment.Payment, error) {
	unlock, err := r.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	plan, err := r.agg.PlanRefund(in)
	if err != nil {
		return nil, rejection(err)
	}

	now := workflow.Now(ctx)
	current := r.agg.Snapshot()
	ev := r.agg.NextEvent(payment.EventPaymentRefunded, payment.Refund{
		RefundAmount:  plan.RefundAmount,
		TotalRefunded: plan.TotalRefunded,
		Reason:        plan.Reason,
		IsFullRefund:  plan.IsFullRefund,
	}, plan.Reason, now)

	err = workflow.ExecuteActivity(r.policy.WithOptions(ctx), paymentActs.RecordPaymentRefund,
		activities.RecordPaymentRefundInput{
			PaymentID:     r.agg.ID,
			TotalRefunded: plan.TotalRefunded,
			Status:        plan.NewStatus(current.Status),
			Reason:        plan.Reason,
			UpdatedAt:     now,
			Event:         ev,
		}).Get(ctx, nil)
	if err != nil {
		return nil, persistenceFailure("refund", err)
	}

	r.agg.ApplyRefund(plan, now)
	r.agg.Append(ev)
	workflow.GetLogger(ctx).Info("Payment refunded", "PaymentID", r.agg.ID,
		"RefundAmount", plan.RefundAmount.String(), "TotalRefunded", plan.TotalRefunded.String(), "Full", plan.IsFullRefund)
	return r.agg.Snapshot(), nil
}

// fail moves a PROCESSING payment to FAILED.
func (r *aggregateRun) fail(ctx workflow.Context, reason string) error {
	return r.setStatus(ctx, payment.StatusFailed, payment.EventPaymentProcessingFailed,
		payment.ProcessingFailed{Error: reason}, reason)
}

// setStatus persists a status change and its event, then applies both.
// On failure the aggregate is left as it was.
func (r *aggregateRun) setStatus(ctx workflow.Context, to payment.Status, t payment.EventType, data interface{}, reason string) error {
	now := workflow.Now(ctx)
	ev := r.agg.NextEvent(t, data, reason, now)

	err := workflow.ExecuteActivity(r.policy.WithOptions(ctx), paymentActs.UpdatePaymentStatus,
		activities.UpdatePaymentStatusInput{
			PaymentID: r.agg.ID,
			Status:    to,
			Reason:    reason,
			UpdatedAt: now,
			Event:     ev,
		}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Error("Persisting payment status failed", "PaymentID", r.agg.ID, "Status", string(to), "Error", err)
		return persistenceFailure("status "+string(to), err)
	}

	r.agg.SetStatus(to, now)
	r.agg.Append(ev)
	return nil
}

// rejection turns a domain error into a non-retryable application error
// typed by its code, which the facade maps back to an AppError.
func rejection(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return temporal.NewNonRetryableApplicationError(appErr.Message, appErr.Code, nil, appErr.Params)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), apperrors.CodeInternalError, nil)
}

func persistenceFailure(what string, err error) error {
	return temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("failed to persist %s: %v", what, err), apperrors.CodePersistenceFailed, err)
}

// Package saga reacts to domain events by starting workflows.
//
// Each reaction derives the workflow id from the event, so redelivery of the
// same event hits WorkflowExecutionAlreadyStarted instead of starting a
// duplicate. Start failures are logged and counted but never returned to the
// publisher.
package saga

import (
	"context"
	"errors"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/activities"
	"payflow.io/payflow/internal/domain"
	"payflow.io/payflow/internal/pkg/logger"
	"payflow.io/payflow/internal/pkg/metrics"
	"payflow.io/payflow/internal/workflows/onboarding"
	"payflow.io/payflow/internal/workflows/payments"
)

const metricsDomain = "saga"

// WorkflowStarter starts workflow executions. Satisfied by client.Client.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Router maps domain events to workflow starts.
type Router struct {
	starter   WorkflowStarter
	taskQueue string
	metrics   metrics.Recorder
	log       *zap.Logger
}

// NewRouter creates a Router. rec may be nil.
func NewRouter(starter WorkflowStarter, taskQueue string, rec metrics.Recorder) *Router {
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &Router{
		starter:   starter,
		taskQueue: taskQueue,
		metrics:   rec,
		log:       logger.Named("saga"),
	}
}

// Register subscribes the router's handlers on d.
func (r *Router) Register(d *domain.EventDispatcher) {
	d.Register(domain.EventStartPaymentProcessingRequested, r.onStartPaymentProcessing)
	d.Register(domain.EventUserOnboardingRequested, r.onUserOnboardingRequested)
	d.Register(domain.EventUserCreated, r.onUserCreated)
	d.Register(domain.EventCustomerCreated, r.onCustomerCreated)
}

// SendPaymentWorkflowID is the id of the send-payment run started for a
// START_PAYMENT_PROCESSING_REQUESTED event.
func SendPaymentWorkflowID(eventID string) string { return "send-payment-" + eventID }

// UserOnboardingWorkflowID is the id of the onboarding run for a signup request.
func UserOnboardingWorkflowID(requestID string) string { return "user-onboarding-" + requestID }

// CreateCustomerWorkflowID is the id of the customer creation run for a user.
func CreateCustomerWorkflowID(userID string) string { return "create-customer-" + userID }

// CustomerWelcomeWorkflowID is the id of the welcome run for a customer.
func CustomerWelcomeWorkflowID(customerID string) string { return "customer-welcome-" + customerID }

// IsWorkflowAlreadyStarted reports whether err means a workflow with the
// requested id already exists.
func IsWorkflowAlreadyStarted(err error) bool {
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	return errors.As(err, &started)
}

func (r *Router) onStartPaymentProcessing(ctx context.Context, ev *domain.DomainEvent) error {
	var p domain.StartPaymentProcessingPayload
	if err := ev.DecodePayload(&p); err != nil {
		return err
	}
	in := activities.SendPaymentInput{
		UserID:      p.UserID,
		CustomerID:  p.CustomerID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
	}
	r.start(ctx, ev, SendPaymentWorkflowID(ev.EventID), payments.SendPaymentWorkflowName, in)
	return nil
}

func (r *Router) onUserOnboardingRequested(ctx context.Context, ev *domain.DomainEvent) error {
	var p domain.UserOnboardingRequestedPayload
	if err := ev.DecodePayload(&p); err != nil {
		return err
	}
	requestID := p.RequestID
	if requestID == "" {
		requestID = ev.EventID
	}
	in := activities.UserOnboardingInput{
		RequestID:   requestID,
		Name:        p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		CompanyName: p.CompanyName,
		Address:     p.Address,
	}
	r.start(ctx, ev, UserOnboardingWorkflowID(requestID), onboarding.UserOnboardingWorkflowName, in)
	return nil
}

func (r *Router) onUserCreated(ctx context.Context, ev *domain.DomainEvent) error {
	var p domain.UserCreatedPayload
	if err := ev.DecodePayload(&p); err != nil {
		return err
	}
	if p.Context != domain.ContextOnboarding {
		r.skip(ev, p.Context)
		return nil
	}
	companyName := p.CompanyName
	if companyName == "" {
		companyName = p.Name + " Company"
	}
	in := activities.CreateCustomerInput{
		UserID:      p.UserID,
		CompanyName: companyName,
		ContactName: p.Name,
		Email:       p.Email,
		Phone:       p.Phone,
		AddressID:   p.AddressID,
		Context:     p.Context,
	}
	r.start(ctx, ev, CreateCustomerWorkflowID(p.UserID), onboarding.CreateCustomerWorkflowName, in)
	return nil
}

func (r *Router) onCustomerCreated(ctx context.Context, ev *domain.DomainEvent) error {
	var p domain.CustomerCreatedPayload
	if err := ev.DecodePayload(&p); err != nil {
		return err
	}
	if p.Context != domain.ContextOnboarding {
		r.skip(ev, p.Context)
		return nil
	}
	in := activities.CustomerWelcomeInput{
		CustomerID:  p.CustomerID,
		Email:       p.Email,
		CompanyName: p.CompanyName,
		ContactName: p.ContactName,
	}
	r.start(ctx, ev, CustomerWelcomeWorkflowID(p.CustomerID), onboarding.CustomerWelcomeWorkflowName, in)
	return nil
}

func (r *Router) start(ctx context.Context, ev *domain.DomainEvent, workflowID, workflowName string, input interface{}) {
	begin := time.Now()
	opts := client.StartWorkflowOptions{
		ID:                                       workflowID,
		TaskQueue:                                r.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	fields := []zap.Field{
		zap.String("event_id", ev.EventID),
		zap.String("event_type", string(ev.EventType)),
		zap.String("workflow", workflowName),
		zap.String("workflow_id", workflowID),
	}

	_, err := r.starter.ExecuteWorkflow(ctx, opts, workflowName, input)
	status := metrics.StatusSuccess
	switch {
	case err == nil:
		r.log.Info("workflow started", fields...)
	case IsWorkflowAlreadyStarted(err):
		status = metrics.StatusAlreadyStarted
		r.log.Info("workflow already started, ignoring duplicate event", fields...)
	default:
		status = metrics.StatusError
		r.log.Error("failed to start workflow", append(fields, zap.Error(err))...)
	}
	r.metrics.RecordOperation(metricsDomain, workflowName, status)
	r.metrics.RecordDuration(metricsDomain, workflowName, time.Since(begin), status)
}

func (r *Router) skip(ev *domain.DomainEvent, eventContext string) {
	r.log.Debug("event outside onboarding context, no reaction",
		zap.String("event_id", ev.EventID),
		zap.String("event_type", string(ev.EventType)),
		zap.String("context", eventContext),
	)
	r.metrics.RecordOperation(metricsDomain, string(ev.EventType), metrics.StatusSkipped)
}

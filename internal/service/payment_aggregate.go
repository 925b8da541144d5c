// Package service holds the application-facing facade over the payment
// aggregate workflows.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/payment"
	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/pkg/logger"
	"payflow.io/payflow/internal/pkg/metrics"
	"payflow.io/payflow/internal/workflows/payments"
)

const metricsDomain = "payment_aggregate"

// StatusNotFound is returned by GetPaymentStatus when no aggregate exists.
const StatusNotFound = "not_found"

// WorkflowClient is the part of client.Client the facade uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	UpdateWorkflow(ctx context.Context, options client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
	TerminateWorkflow(ctx context.Context, workflowID string, runID string, reason string, details ...interface{}) error
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
}

// AggregateServiceConfig configures PaymentAggregateService.
type AggregateServiceConfig struct {
	TaskQueue      string
	ProcessingMode payment.ProcessingMode
	// UpdateTimeout bounds each update round trip. Zero means no extra bound.
	UpdateTimeout time.Duration
}

// CreatePaymentCommand creates a payment aggregate. An empty PaymentID is
// replaced by a generated one.
type CreatePaymentCommand struct {
	PaymentID string
	payment.CreateParams
}

// WorkflowInfo describes the aggregate's workflow execution.
type WorkflowInfo struct {
	WorkflowID    string     `json:"workflowId"`
	RunID         string     `json:"runId"`
	Status        string     `json:"status"`
	TaskQueue     string     `json:"taskQueue,omitempty"`
	HistoryLength int64      `json:"historyLength"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	CloseTime     *time.Time `json:"closeTime,omitempty"`
}

// PaymentAggregateService translates typed calls into updates and queries
// against payment-aggregate-<paymentId>.
type PaymentAggregateService struct {
	client  WorkflowClient
	cfg     AggregateServiceConfig
	metrics metrics.Recorder
	log     *zap.Logger
}

// NewPaymentAggregateService creates the facade. rec may be nil.
func NewPaymentAggregateService(c WorkflowClient, cfg AggregateServiceConfig, rec metrics.Recorder) *PaymentAggregateService {
	if cfg.ProcessingMode == "" {
		cfg.ProcessingMode = payment.ProcessingAuto
	}
	if rec == nil {
		rec = metrics.NoOp{}
	}
	return &PaymentAggregateService{
		client:  c,
		cfg:     cfg,
		metrics: rec,
		log:     logger.Named("payment_aggregate"),
	}
}

// WorkflowID returns the workflow id of a payment's aggregate.
func (s *PaymentAggregateService) WorkflowID(paymentID string) string {
	return payments.WorkflowID(paymentID)
}

// CreatePayment starts the aggregate if needed and creates the payment in it.
// Repeating a create for an existing payment id fails with
// PAYMENT_ALREADY_EXISTS and leaves the aggregate unchanged.
func (s *PaymentAggregateService) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (*payment.Payment, error) {
	if cmd.PaymentID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate payment id: %w", err)
		}
		cmd.PaymentID = id.String()
	}

	opts := client.StartWorkflowOptions{
		ID:                       payments.WorkflowID(cmd.PaymentID),
		TaskQueue:                s.cfg.TaskQueue,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING,
		WorkflowIDReusePolicy:    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	params := payments.AggregateParams{PaymentID: cmd.PaymentID, ProcessingMode: s.cfg.ProcessingMode}
	if _, err := s.client.ExecuteWorkflow(ctx, opts, payments.AggregateWorkflowName, params); err != nil {
		s.metrics.RecordOperation(metricsDomain, "create", metrics.StatusError)
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil, apperrors.FromCode(apperrors.CodePaymentAlreadyExists, "payment already exists", err).
				WithParams(map[string]interface{}{"payment_id": cmd.PaymentID})
		}
		return nil, s.mapError(cmd.PaymentID, err)
	}

	return s.update(ctx, "create", cmd.PaymentID, payments.UpdateCreatePayment, cmd.CreateParams)
}

// UpdatePaymentStatus moves the payment to a new status.
func (s *PaymentAggregateService) UpdatePaymentStatus(ctx context.Context, paymentID string, in payment.StatusUpdate) (*payment.Payment, error) {
	return s.update(ctx, "update_status", paymentID, payments.UpdatePaymentStatus, in)
}

// ProcessPayment starts processing a PENDING payment.
func (s *PaymentAggregateService) ProcessPayment(ctx context.Context, paymentID string, in payment.ProcessParams) (*payment.Payment, error) {
	return s.update(ctx, "process", paymentID, payments.UpdateProcessPayment, in)
}

// CompleteProcessing reports the processor's outcome for a PROCESSING payment.
func (s *PaymentAggregateService) CompleteProcessing(ctx context.Context, paymentID string, in payment.ProcessingResult) (*payment.Payment, error) {
	return s.update(ctx, "complete_processing", paymentID, payments.UpdateCompleteProcessing, in)
}

// CancelPayment cancels a PENDING or PROCESSING payment.
func (s *PaymentAggregateService) CancelPayment(ctx context.Context, paymentID string, in payment.CancelParams) (*payment.Payment, error) {
	return s.update(ctx, "cancel", paymentID, payments.UpdateCancelPayment, in)
}

// RefundPayment refunds part or all of a COMPLETED payment.
func (s *PaymentAggregateService) RefundPayment(ctx context.Context, paymentID string, in payment.RefundParams) (*payment.Payment, error) {
	return s.update(ctx, "refund", paymentID, payments.UpdateRefundPayment, in)
}

// GetPayment returns the payment snapshot, or nil when no aggregate exists.
func (s *PaymentAggregateService) GetPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	var out *payment.Payment
	found, err := s.query(ctx, paymentID, payments.QueryGetPayment, &out)
	if err != nil || !found {
		return nil, err
	}
	return out, nil
}

// GetPaymentStatus returns the status, or StatusNotFound.
func (s *PaymentAggregateService) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	var out string
	found, err := s.query(ctx, paymentID, payments.QueryGetPaymentStatus, &out)
	if err != nil {
		return "", err
	}
	if !found {
		return StatusNotFound, nil
	}
	return out, nil
}

// GetPaymentHistory returns the ordered history, never nil.
func (s *PaymentAggregateService) GetPaymentHistory(ctx context.Context, paymentID string) ([]payment.Event, error) {
	var out []payment.Event
	if _, err := s.query(ctx, paymentID, payments.QueryGetPaymentHistory, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []payment.Event{}
	}
	return out, nil
}

// IsPaymentRefundable reports whether a refund would currently be accepted.
func (s *PaymentAggregateService) IsPaymentRefundable(ctx context.Context, paymentID string) (bool, error) {
	var out bool
	_, err := s.query(ctx, paymentID, payments.QueryIsPaymentRefundable, &out)
	return out, err
}

// IsPaymentCancellable reports whether a cancel would currently be accepted.
func (s *PaymentAggregateService) IsPaymentCancellable(ctx context.Context, paymentID string) (bool, error) {
	var out bool
	_, err := s.query(ctx, paymentID, payments.QueryIsPaymentCancellable, &out)
	return out, err
}

// TerminatePaymentWorkflow ends the aggregate's workflow. Its state stays
// queryable but it accepts no further updates.
func (s *PaymentAggregateService) TerminatePaymentWorkflow(ctx context.Context, paymentID, reason string) error {
	if reason == "" {
		reason = "terminated by operator"
	}
	if err := s.client.TerminateWorkflow(ctx, payments.WorkflowID(paymentID), "", reason); err != nil {
		s.metrics.RecordOperation(metricsDomain, "terminate", metrics.StatusError)
		return s.mapError(paymentID, err)
	}
	s.metrics.RecordOperation(metricsDomain, "terminate", metrics.StatusSuccess)
	s.log.Info("payment aggregate terminated",
		zap.String("payment_id", paymentID),
		zap.String("reason", reason),
	)
	return nil
}

// GetWorkflowInfo describes the aggregate's current run.
func (s *PaymentAggregateService) GetWorkflowInfo(ctx context.Context, paymentID string) (*WorkflowInfo, error) {
	resp, err := s.client.DescribeWorkflowExecution(ctx, payments.WorkflowID(paymentID), "")
	if err != nil {
		return nil, s.mapError(paymentID, err)
	}
	info := resp.GetWorkflowExecutionInfo()
	out := &WorkflowInfo{
		WorkflowID:    info.GetExecution().GetWorkflowId(),
		RunID:         info.GetExecution().GetRunId(),
		Status:        info.GetStatus().String(),
		TaskQueue:     info.GetTaskQueue(),
		HistoryLength: info.GetHistoryLength(),
	}
	if ts := info.GetStartTime(); ts != nil {
		t := ts.AsTime()
		out.StartTime = &t
	}
	if ts := info.GetCloseTime(); ts != nil {
		t := ts.AsTime()
		out.CloseTime = &t
	}
	return out, nil
}

func (s *PaymentAggregateService) update(ctx context.Context, op, paymentID, name string, arg interface{}) (*payment.Payment, error) {
	start := time.Now()
	if s.cfg.UpdateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UpdateTimeout)
		defer cancel()
	}

	out, err := s.doUpdate(ctx, paymentID, name, arg)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		if appErr, ok := apperrors.IsAppError(err); ok && appErr.HTTPStatus < 500 {
			status = metrics.StatusRejected
		}
		s.log.Debug("payment update failed",
			zap.String("payment_id", paymentID),
			zap.String("update", name),
			zap.Error(err),
		)
	}
	s.metrics.RecordOperation(metricsDomain, op, status)
	s.metrics.RecordDuration(metricsDomain, op, time.Since(start), status)
	return out, err
}

func (s *PaymentAggregateService) doUpdate(ctx context.Context, paymentID, name string, arg interface{}) (*payment.Payment, error) {
	handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   payments.WorkflowID(paymentID),
		UpdateName:   name,
		Args:         []interface{}{arg},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		return nil, s.mapError(paymentID, err)
	}
	var out *payment.Payment
	if err := handle.Get(ctx, &out); err != nil {
		return nil, s.mapError(paymentID, err)
	}
	return out, nil
}

// query runs a read-only query. found is false when the aggregate's workflow
// does not exist.
func (s *PaymentAggregateService) query(ctx context.Context, paymentID, name string, out interface{}) (found bool, err error) {
	val, err := s.client.QueryWorkflow(ctx, payments.WorkflowID(paymentID), "", name)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, s.mapError(paymentID, err)
	}
	if err := val.Get(out); err != nil {
		return false, fmt.Errorf("decode %s result: %w", name, err)
	}
	return true, nil
}

// mapError turns runtime errors into AppErrors. Workflow rejections carry
// their code as the application error type.
func (s *PaymentAggregateService) mapError(paymentID string, err error) error {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		code := appErr.Type()
		if code == "" {
			code = apperrors.CodeInternalError
		}
		out := apperrors.FromCode(code, appErr.Message(), err)
		if appErr.HasDetails() {
			var params map[string]interface{}
			if derr := appErr.Details(&params); derr == nil {
				out = out.WithParams(params)
			}
		}
		return out
	}
	if isNotFound(err) {
		return apperrors.ErrPaymentNotFoundf(paymentID)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.FromCode(apperrors.CodeWorkflowUnavailable, "payment aggregate did not answer in time", err)
	}
	return apperrors.FromCode(apperrors.CodeWorkflowUnavailable, "payment aggregate unavailable", err)
}

func isNotFound(err error) bool {
	var nf *serviceerror.NotFound
	return errors.As(err, &nf)
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/temporal"

	"payflow.io/payflow/internal/payment"
	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/pkg/logger"
	"payflow.io/payflow/internal/workflows/payments"
)

func init() {
	_ = logger.Init("error", "json")
}

// jsonValue decodes a canned query result.
type jsonValue struct {
	converter.EncodedValue
	raw []byte
}

func (v jsonValue) HasValue() bool { return len(v.raw) > 0 }

func (v jsonValue) Get(ptr interface{}) error { return json.Unmarshal(v.raw, ptr) }

type fakeHandle struct {
	client.WorkflowUpdateHandle
	result *payment.Payment
	err    error
}

func (h fakeHandle) Get(_ context.Context, ptr interface{}) error {
	if h.err != nil {
		return h.err
	}
	out := ptr.(**payment.Payment)
	*out = h.result
	return nil
}

type fakeClient struct {
	startOpts  []client.StartWorkflowOptions
	startArgs  []interface{}
	startErr   error
	updates    []client.UpdateWorkflowOptions
	handle     fakeHandle
	updateErr  error
	queries    map[string]interface{}
	queryErr   error
	terminated []string
	describe   *workflowservice.DescribeWorkflowExecutionResponse
}

func (f *fakeClient) ExecuteWorkflow(_ context.Context, opts client.StartWorkflowOptions, _ interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.startOpts = append(f.startOpts, opts)
	f.startArgs = append(f.startArgs, args...)
	return nil, f.startErr
}

func (f *fakeClient) UpdateWorkflow(_ context.Context, opts client.UpdateWorkflowOptions) (client.WorkflowUpdateHandle, error) {
	f.updates = append(f.updates, opts)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.handle, nil
}

func (f *fakeClient) QueryWorkflow(_ context.Context, _ string, _ string, queryType string, _ ...interface{}) (converter.EncodedValue, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	raw, err := json.Marshal(f.queries[queryType])
	if err != nil {
		return nil, err
	}
	return jsonValue{raw: raw}, nil
}

func (f *fakeClient) TerminateWorkflow(_ context.Context, workflowID, _ string, reason string, _ ...interface{}) error {
	f.terminated = append(f.terminated, workflowID+":"+reason)
	return nil
}

func (f *fakeClient) DescribeWorkflowExecution(_ context.Context, _, _ string) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	if f.describe == nil {
		return nil, serviceerror.NewNotFound("workflow not found")
	}
	return f.describe, nil
}

type opRecorder struct{ statuses []string }

func (r *opRecorder) RecordOperation(_, op, status string) { r.statuses = append(r.statuses, op+"="+status) }

func (r *opRecorder) RecordDuration(string, string, time.Duration, string) {}

func newService(c *fakeClient) (*PaymentAggregateService, *opRecorder) {
	rec := &opRecorder{}
	return NewPaymentAggregateService(c, AggregateServiceConfig{
		TaskQueue:      "main-task-queue",
		ProcessingMode: payment.ProcessingExternal,
		UpdateTimeout:  time.Second,
	}, rec), rec
}

func pendingPayment(id string) *payment.Payment {
	return &payment.Payment{
		ID:       id,
		UserID:   "user-1",
		Amount:   payment.MustAmount("100.00"),
		Currency: payment.USD,
		Status:   payment.StatusPending,
	}
}

func TestCreatePayment_StartsAggregateAndSendsCreate(t *testing.T) {
	c := &fakeClient{handle: fakeHandle{result: pendingPayment("pay-1")}}
	svc, rec := newService(c)

	got, err := svc.CreatePayment(context.Background(), CreatePaymentCommand{
		PaymentID: "pay-1",
		CreateParams: payment.CreateParams{
			UserID: "user-1", Amount: decimal.RequireFromString("100"), Currency: "usd",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, got.Status)

	require.Len(t, c.startOpts, 1)
	opts := c.startOpts[0]
	assert.Equal(t, "payment-aggregate-pay-1", opts.ID)
	assert.Equal(t, "main-task-queue", opts.TaskQueue)
	assert.Equal(t, enumspb.WORKFLOW_ID_CONFLICT_POLICY_USE_EXISTING, opts.WorkflowIDConflictPolicy)
	assert.Equal(t, enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE, opts.WorkflowIDReusePolicy)
	assert.Equal(t, payments.AggregateParams{PaymentID: "pay-1", ProcessingMode: payment.ProcessingExternal}, c.startArgs[0])

	require.Len(t, c.updates, 1)
	upd := c.updates[0]
	assert.Equal(t, "payment-aggregate-pay-1", upd.WorkflowID)
	assert.Equal(t, payments.UpdateCreatePayment, upd.UpdateName)
	assert.Equal(t, client.WorkflowUpdateStageCompleted, upd.WaitForStage)
	assert.Equal(t, []string{"create=success"}, rec.statuses)
}

func TestCreatePayment_GeneratesID(t *testing.T) {
	c := &fakeClient{handle: fakeHandle{result: pendingPayment("generated")}}
	svc, _ := newService(c)

	_, err := svc.CreatePayment(context.Background(), CreatePaymentCommand{
		CreateParams: payment.CreateParams{UserID: "user-1", Amount: decimal.NewFromInt(5), Currency: "EUR"},
	})
	require.NoError(t, err)

	id := strings.TrimPrefix(c.startOpts[0].ID, "payment-aggregate-")
	assert.Len(t, id, 36)
	assert.Equal(t, c.startOpts[0].ID, c.updates[0].WorkflowID)
}

func TestCreatePayment_ClosedAggregateAlreadyExists(t *testing.T) {
	c := &fakeClient{startErr: serviceerror.NewWorkflowExecutionAlreadyStarted("closed", "req", "run")}
	svc, _ := newService(c)

	_, err := svc.CreatePayment(context.Background(), CreatePaymentCommand{PaymentID: "pay-1"})
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodePaymentAlreadyExists, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	assert.Empty(t, c.updates)
}

func TestUpdate_RejectionBecomesAppError(t *testing.T) {
	rejection := temporal.NewNonRetryableApplicationError(
		"Cannot transition from PENDING to COMPLETED",
		apperrors.CodePaymentIllegalTransition, nil,
		map[string]interface{}{"from": "PENDING", "to": "COMPLETED"})
	c := &fakeClient{handle: fakeHandle{err: rejection}}
	svc, rec := newService(c)

	_, err := svc.UpdatePaymentStatus(context.Background(), "pay-1", payment.StatusUpdate{Status: payment.StatusCompleted})
	require.Error(t, err)

	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodePaymentIllegalTransition, appErr.Code)
	assert.Equal(t, "Cannot transition from PENDING to COMPLETED", appErr.Message)
	assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	assert.Equal(t, "PENDING", appErr.Params["from"])
	assert.Equal(t, []string{"update_status=rejected"}, rec.statuses)
}

func TestUpdate_UsesUpdateNames(t *testing.T) {
	c := &fakeClient{handle: fakeHandle{result: pendingPayment("pay-1")}}
	svc, _ := newService(c)
	ctx := context.Background()

	_, err := svc.ProcessPayment(ctx, "pay-1", payment.ProcessParams{})
	require.NoError(t, err)
	_, err = svc.CompleteProcessing(ctx, "pay-1", payment.ProcessingResult{Succeeded: true})
	require.NoError(t, err)
	_, err = svc.CancelPayment(ctx, "pay-1", payment.CancelParams{Reason: "customer request"})
	require.NoError(t, err)
	_, err = svc.RefundPayment(ctx, "pay-1", payment.RefundParams{Reason: "damaged"})
	require.NoError(t, err)

	var names []string
	for _, u := range c.updates {
		names = append(names, u.UpdateName)
	}
	assert.Equal(t, []string{
		payments.UpdateProcessPayment,
		payments.UpdateCompleteProcessing,
		payments.UpdateCancelPayment,
		payments.UpdateRefundPayment,
	}, names)
}

func TestUpdate_MissingAggregateIsNotFound(t *testing.T) {
	c := &fakeClient{updateErr: serviceerror.NewNotFound("workflow not found")}
	svc, _ := newService(c)

	_, err := svc.CancelPayment(context.Background(), "ghost", payment.CancelParams{Reason: "x"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodePaymentNotFound))
}

func TestUpdate_RuntimeFailureIsUnavailable(t *testing.T) {
	c := &fakeClient{updateErr: errors.New("connection refused")}
	svc, rec := newService(c)

	_, err := svc.ProcessPayment(context.Background(), "pay-1", payment.ProcessParams{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeWorkflowUnavailable))
	assert.Equal(t, []string{"process=error"}, rec.statuses)
}

func TestQueries_MissingAggregateSentinels(t *testing.T) {
	c := &fakeClient{queryErr: serviceerror.NewNotFound("workflow not found")}
	svc, _ := newService(c)
	ctx := context.Background()

	p, err := svc.GetPayment(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)

	status, err := svc.GetPaymentStatus(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)

	history, err := svc.GetPaymentHistory(ctx, "ghost")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	refundable, err := svc.IsPaymentRefundable(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, refundable)

	cancellable, err := svc.IsPaymentCancellable(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, cancellable)
}

func TestQueries_DecodeResults(t *testing.T) {
	c := &fakeClient{queries: map[string]interface{}{
		payments.QueryGetPayment:           pendingPayment("pay-1"),
		payments.QueryGetPaymentStatus:     "PENDING",
		payments.QueryGetPaymentHistory:    []payment.Event{{ID: "pay-1-1", Type: payment.EventPaymentCreated}},
		payments.QueryIsPaymentCancellable: true,
		payments.QueryIsPaymentRefundable:  false,
	}}
	svc, _ := newService(c)
	ctx := context.Background()

	p, err := svc.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "100.00", p.Amount.String())

	status, err := svc.GetPaymentStatus(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", status)

	history, err := svc.GetPaymentHistory(ctx, "pay-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, payment.EventPaymentCreated, history[0].Type)

	cancellable, err := svc.IsPaymentCancellable(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, cancellable)
}

func TestQueries_OtherErrorsPropagate(t *testing.T) {
	c := &fakeClient{queryErr: errors.New("deadline exceeded upstream")}
	svc, _ := newService(c)

	_, err := svc.GetPaymentStatus(context.Background(), "pay-1")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeWorkflowUnavailable))
}

func TestTerminatePaymentWorkflow(t *testing.T) {
	c := &fakeClient{}
	svc, _ := newService(c)

	require.NoError(t, svc.TerminatePaymentWorkflow(context.Background(), "pay-1", ""))
	require.NoError(t, svc.TerminatePaymentWorkflow(context.Background(), "pay-2", "fraud"))
	assert.Equal(t, []string{
		"payment-aggregate-pay-1:terminated by operator",
		"payment-aggregate-pay-2:fraud",
	}, c.terminated)
}

func TestGetWorkflowInfo(t *testing.T) {
	c := &fakeClient{describe: &workflowservice.DescribeWorkflowExecutionResponse{
		WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
			Execution:     &commonpb.WorkflowExecution{WorkflowId: "payment-aggregate-pay-1", RunId: "run-1"},
			Status:        enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
			HistoryLength: 12,
			TaskQueue:     "main-task-queue",
		},
	}}
	svc, _ := newService(c)

	info, err := svc.GetWorkflowInfo(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "payment-aggregate-pay-1", info.WorkflowID)
	assert.Equal(t, "run-1", info.RunID)
	assert.Equal(t, enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING.String(), info.Status)
	assert.EqualValues(t, 12, info.HistoryLength)
	assert.Nil(t, info.StartTime)
}

func TestGetWorkflowInfo_Missing(t *testing.T) {
	svc, _ := newService(&fakeClient{})

	_, err := svc.GetWorkflowInfo(context.Background(), "ghost")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePaymentNotFound))
}

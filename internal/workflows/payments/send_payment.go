package payments

import (
	"errors"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"payflow.io/payflow/internal/activities"
	"payflow.io/payflow/internal/payment"
	"payflow.io/payflow/internal/workflows"
)

// SendPaymentWorkflowName is the registered name of SendPayment.
const SendPaymentWorkflowName = "SendPaymentWorkflow"

// SendPaymentResult reports the outcome of a send-payment run. Business
// failures are reported here rather than failing the workflow.
type SendPaymentResult struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// SendPayment validates a payment request, writes a PENDING payment row and
// emails the user a confirmation.
func (w *Workflows) SendPayment(ctx workflow.Context, in activities.SendPaymentInput) (SendPaymentResult, error) {
	logger := workflow.GetLogger(ctx)
	ctx = w.Policy.WithOptions(ctx)

	failed := func(step string, err error) (SendPaymentResult, error) {
		logger.Warn("Send payment failed", "Step", step, "UserID", in.UserID, "Error", err)
		return SendPaymentResult{Status: workflows.StatusFailed, Error: errorMessage(err)}, nil
	}

	if err := workflow.ExecuteActivity(ctx, paymentActs.ValidatePaymentData, in).Get(ctx, nil); err != nil {
		return failed("validate", err)
	}

	var paymentID string
	err := workflow.SideEffect(ctx, func(workflow.Context) interface{} {
		return uuid.NewString()
	}).Get(&paymentID)
	if err != nil {
		return failed("assign id", err)
	}

	err = workflow.ExecuteActivity(ctx, paymentActs.ProcessPayment, activities.ProcessPaymentInput{
		PaymentID:   paymentID,
		UserID:      in.UserID,
		CustomerID:  in.CustomerID,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
	}).Get(ctx, &paymentID)
	if err != nil {
		return failed("process", err)
	}

	var record payment.Payment
	if err := workflow.ExecuteActivity(ctx, paymentActs.GetPaymentRecord, paymentID).Get(ctx, &record); err != nil {
		return failed("fetch", err)
	}

	err = workflow.ExecuteActivity(ctx, paymentActs.SendPaymentEmail, activities.SendPaymentEmailInput{
		UserID:    in.UserID,
		PaymentID: paymentID,
		Amount:    record.Amount,
		Currency:  string(record.Currency),
		Status:    record.Status,
	}).Get(ctx, nil)
	if err != nil {
		return failed("email", err)
	}

	logger.Info("Payment sent", "PaymentID", paymentID, "UserID", in.UserID)
	return SendPaymentResult{PaymentID: paymentID, Status: workflows.StatusCompleted}, nil
}

// errorMessage unwraps activity failures to the message the activity raised.
func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}

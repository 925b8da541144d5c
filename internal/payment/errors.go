package payment

import (
	"errors"
	"fmt"

	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// Sentinel errors. Every rejection returned by this package is an
// *apperrors.AppError wrapping one of these, so callers can use either
// errors.Is or the AppError code.
var (
	ErrNotFound            = errors.New("payment not found")
	ErrAlreadyExists       = errors.New("payment already exists")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidInput        = errors.New("invalid payment input")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrCannotProcess       = errors.New("payment cannot be processed")
	ErrCannotCancel        = errors.New("payment cannot be cancelled")
	ErrCannotRefund        = errors.New("payment cannot be refunded")
	ErrInvalidRefund       = errors.New("invalid refund amount")
	ErrProcessingMode      = errors.New("operation not allowed in processing mode")
)

func notFound(id string) error {
	return apperrors.FromCode(apperrors.CodePaymentNotFound, "Payment not found", ErrNotFound).
		WithParams(map[string]interface{}{"payment_id": id})
}

func alreadyExists(id string) error {
	return apperrors.FromCode(apperrors.CodePaymentAlreadyExists, "Payment already exists", ErrAlreadyExists).
		WithParams(map[string]interface{}{"payment_id": id})
}

func invalidInput(field, msg string) error {
	return apperrors.FromCode(apperrors.CodePaymentInvalidInput, msg, ErrInvalidInput).
		WithFieldErrors([]apperrors.FieldError{{Field: field, Code: "required", Message: msg}})
}

func illegalTransition(from, to Status) error {
	return apperrors.FromCode(apperrors.CodePaymentIllegalTransition,
		fmt.Sprintf("Cannot transition from %s to %s", from, to), ErrIllegalTransition).
		WithParams(map[string]interface{}{"from": string(from), "to": string(to)})
}

func cannotProcess(current Status) error {
	return apperrors.FromCode(apperrors.CodePaymentCannotProcess,
		"Payment must be in PENDING status to process", ErrCannotProcess).
		WithParams(map[string]interface{}{"status": string(current)})
}

func cannotCancel(current Status) error {
	return apperrors.FromCode(apperrors.CodePaymentCannotCancel,
		"Payment cannot be cancelled in current status", ErrCannotCancel).
		WithParams(map[string]interface{}{"status": string(current)})
}

func cannotRefund(current Status) error {
	return apperrors.FromCode(apperrors.CodePaymentCannotRefund,
		"Only completed payments can be refunded", ErrCannotRefund).
		WithParams(map[string]interface{}{"status": string(current)})
}

func invalidRefund(requested, refunded, total Amount) error {
	return apperrors.FromCode(apperrors.CodePaymentInvalidRefund, "Invalid refund amount", ErrInvalidRefund).
		WithParams(map[string]interface{}{
			"requested":       requested.String(),
			"refunded_amount": refunded.String(),
			"amount":          total.String(),
		})
}

// ProcessingModeError reports an operation that the configured processing
// mode does not allow, e.g. completeProcessing while running in auto mode.
func ProcessingModeError(mode ProcessingMode, op string) error {
	return apperrors.FromCode(apperrors.CodePaymentProcessingMode,
		fmt.Sprintf("%s is not available in %s processing mode", op, mode), ErrProcessingMode)
}

package errors

import "net/http"

// Payment aggregate error codes. These double as Temporal application error
// types, so they must stay stable across deployments.
const (
	CodePaymentNotFound          = "PAYMENT_NOT_FOUND"
	CodePaymentAlreadyExists     = "PAYMENT_ALREADY_EXISTS"
	CodePaymentInvalidAmount     = "PAYMENT_INVALID_AMOUNT"
	CodePaymentInvalidInput      = "PAYMENT_INVALID_INPUT"
	CodePaymentUnsupportedCurr   = "PAYMENT_UNSUPPORTED_CURRENCY"
	CodePaymentIllegalTransition = "PAYMENT_ILLEGAL_TRANSITION"
	CodePaymentCannotProcess     = "PAYMENT_CANNOT_PROCESS"
	CodePaymentCannotCancel      = "PAYMENT_CANNOT_CANCEL"
	CodePaymentCannotRefund      = "PAYMENT_CANNOT_REFUND"
	CodePaymentInvalidRefund     = "PAYMENT_INVALID_REFUND"
	CodePaymentProcessingMode    = "PAYMENT_PROCESSING_MODE"
)

// Workflow runtime error codes.
const (
	CodeWorkflowUnavailable = "WORKFLOW_UNAVAILABLE"
	CodeWorkflowNotFound    = "WORKFLOW_NOT_FOUND"
	CodePersistenceFailed   = "PERSISTENCE_FAILED"
)

// Validation error codes.
const (
	CodeInvalidRequestField = "INVALID_REQUEST_FIELD"
	CodeValidationFailed    = "VALIDATION_FAILED"
)

// Onboarding and API error codes.
const (
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeUserEmailTaken   = "USER_EMAIL_TAKEN"
	CodeCustomerNotFound = "CUSTOMER_NOT_FOUND"
	CodeEventPublishFail = "EVENT_PUBLISH_FAILED"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeInvalidLogLevel  = "INVALID_LOG_LEVEL"
	CodeRouteNotFound    = "ROUTE_NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

var codeStatus = map[string]int{
	CodePaymentNotFound:          http.StatusNotFound,
	CodePaymentAlreadyExists:     http.StatusConflict,
	CodePaymentInvalidAmount:     http.StatusBadRequest,
	CodePaymentInvalidInput:      http.StatusBadRequest,
	CodePaymentUnsupportedCurr:   http.StatusBadRequest,
	CodePaymentIllegalTransition: http.StatusConflict,
	CodePaymentCannotProcess:     http.StatusConflict,
	CodePaymentCannotCancel:      http.StatusConflict,
	CodePaymentCannotRefund:      http.StatusConflict,
	CodePaymentInvalidRefund:     http.StatusBadRequest,
	CodePaymentProcessingMode:    http.StatusConflict,
	CodeWorkflowUnavailable:      http.StatusServiceUnavailable,
	CodeWorkflowNotFound:         http.StatusNotFound,
	CodePersistenceFailed:        http.StatusInternalServerError,
	CodeValidationFailed:         http.StatusBadRequest,
	CodeInvalidRequestField:      http.StatusBadRequest,
	CodeUserNotFound:             http.StatusNotFound,
	CodeUserEmailTaken:           http.StatusConflict,
	CodeCustomerNotFound:         http.StatusNotFound,
}

// StatusForCode returns the HTTP status registered for code, or 500.
func StatusForCode(code string) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// FromCode rebuilds an AppError from a code that crossed a process boundary.
func FromCode(code, message string, cause error) *AppError {
	return Wrap(cause, code, message, StatusForCode(code))
}

// ErrPaymentNotFoundf creates a payment not found error.
func ErrPaymentNotFoundf(paymentID string) *AppError {
	return NotFound(CodePaymentNotFound, "payment not found").
		WithParams(map[string]interface{}{"payment_id": paymentID})
}

// ErrInvalidRequestFieldf creates a bad request error for a malformed field.
func ErrInvalidRequestFieldf(fieldName string) *AppError {
	return BadRequest(CodeInvalidRequestField, "request contains invalid field: "+fieldName)
}

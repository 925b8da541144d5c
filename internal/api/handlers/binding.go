package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// bindJSON decodes the request body into req and converts binding failures
// into a VALIDATION_FAILED AppError.
func bindJSON(c *gin.Context, req interface{}) error {
	return bindError(c.ShouldBindJSON(req))
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, req interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	err := c.ShouldBindJSON(req)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return bindError(err)
}

func bindError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Wrap(err, apperrors.CodeValidationFailed, "request body is not valid JSON", http.StatusBadRequest)
	}
	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Code:    fe.Tag(),
			Message: fe.Error(),
		})
	}
	return apperrors.BadRequest(apperrors.CodeValidationFailed, "request validation failed").
		WithFieldErrors(fields)
}

// fieldPath drops the top-level struct name from a validator namespace,
// e.g. "createPaymentRequest.UserID" becomes "UserID".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Package middleware provides HTTP middleware for the payflow API.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/pkg/logger"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Params      map[string]interface{} `json:"params,omitempty"`
	FieldErrors []apperrors.FieldError `json:"field_errors,omitempty"`
	RequestID   string                 `json:"request_id,omitempty"`
}

// ErrorHandler renders the last error added via c.Error() as an
// ErrorResponse. Handlers only record the error and return.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		rid := GetRequestID(c.Request.Context())

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			fields := []zap.Field{
				zap.String("code", appErr.Code),
				zap.String("message", appErr.Message),
				zap.Int("status", appErr.HTTPStatus),
				zap.String("path", c.FullPath()),
				zap.String("request_id", rid),
			}
			if appErr.Err != nil {
				fields = append(fields, zap.Error(appErr.Err))
			}
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error("Request failed", fields...)
			} else {
				logger.Warn("Request rejected", fields...)
			}
			c.JSON(appErr.HTTPStatus, ErrorResponse{
				Code:        appErr.Code,
				Message:     appErr.Message,
				Params:      appErr.Params,
				FieldErrors: appErr.FieldErrors,
				RequestID:   rid,
			})
			return
		}

		logger.Error("Unhandled request error", zap.Error(err), zap.String("request_id", rid))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:      apperrors.CodeInternalError,
			Message:   "An internal error occurred",
			RequestID: rid,
		})
	}
}

// NoRoute answers unknown paths with ROUTE_NOT_FOUND.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(apperrors.NotFound(apperrors.CodeRouteNotFound, "route not found"))
	}
}

// NoMethod answers known paths with an unsupported method.
func NoMethod() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(apperrors.New(apperrors.CodeMethodNotAllowed, "method not allowed", http.StatusMethodNotAllowed))
	}
}

// Package handlers implements the payflow HTTP API on top of the payment
// aggregate facade and the domain event bus.
//
// Handlers never touch workflow or database clients directly. Failures are
// recorded with c.Error and rendered by middleware.ErrorHandler.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"payflow.io/payflow/internal/domain"
	"payflow.io/payflow/internal/payment"
	"payflow.io/payflow/internal/service"
)

// PaymentService is the aggregate control facade. Satisfied by
// *service.PaymentAggregateService.
type PaymentService interface {
	WorkflowID(paymentID string) string
	CreatePayment(ctx context.Context, cmd service.CreatePaymentCommand) (*payment.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID string, in payment.StatusUpdate) (*payment.Payment, error)
	ProcessPayment(ctx context.Context, paymentID string, in payment.ProcessParams) (*payment.Payment, error)
	CompleteProcessing(ctx context.Context, paymentID string, in payment.ProcessingResult) (*payment.Payment, error)
	CancelPayment(ctx context.Context, paymentID string, in payment.CancelParams) (*payment.Payment, error)
	RefundPayment(ctx context.Context, paymentID string, in payment.RefundParams) (*payment.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*payment.Payment, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (string, error)
	GetPaymentHistory(ctx context.Context, paymentID string) ([]payment.Event, error)
	IsPaymentRefundable(ctx context.Context, paymentID string) (bool, error)
	IsPaymentCancellable(ctx context.Context, paymentID string) (bool, error)
	TerminatePaymentWorkflow(ctx context.Context, paymentID, reason string) error
	GetWorkflowInfo(ctx context.Context, paymentID string) (*service.WorkflowInfo, error)
}

var _ PaymentService = (*service.PaymentAggregateService)(nil)

// ReadinessCheck is one dependency probed by GET /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server implements all API handlers.
type Server struct {
	payments  PaymentService
	publisher domain.Publisher
	checks    []ReadinessCheck
	now       func() time.Time
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Payments  PaymentService
	Publisher domain.Publisher
	Checks    []ReadinessCheck
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		payments:  deps.Payments,
		publisher: deps.Publisher,
		checks:    deps.Checks,
		now:       time.Now,
	}
}

// RegisterRoutes mounts the API routes on api, which is expected to be the
// /api/v1 group.
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	p := api.Group("/payments")
	p.POST("", s.CreatePayment)
	p.POST("/process-requests", s.RequestPaymentProcessing)
	p.GET("/:id", s.GetPayment)
	p.GET("/:id/status", s.GetPaymentStatus)
	p.PATCH("/:id/status", s.UpdatePaymentStatus)
	p.GET("/:id/history", s.GetPaymentHistory)
	p.POST("/:id/process", s.ProcessPayment)
	p.POST("/:id/processing-result", s.CompleteProcessing)
	p.POST("/:id/cancel", s.CancelPayment)
	p.POST("/:id/refund", s.RefundPayment)
	p.GET("/:id/refundable", s.IsPaymentRefundable)
	p.GET("/:id/cancellable", s.IsPaymentCancellable)
	p.GET("/:id/workflow", s.GetWorkflowInfo)
	p.DELETE("/:id/workflow", s.TerminatePaymentWorkflow)

	api.POST("/onboarding/user", s.RequestUserOnboarding)
}

// RegisterHealthRoutes mounts the liveness and readiness probes.
func (s *Server) RegisterHealthRoutes(r gin.IRoutes) {
	r.GET("/health/live", s.GetLiveness)
	r.GET("/health/ready", s.GetReadiness)
}

func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

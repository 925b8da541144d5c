package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"payflow.io/payflow/internal/payment"
	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/service"
)

type createPaymentRequest struct {
	PaymentID   string          `json:"paymentId" binding:"omitempty,max=128"`
	UserID      string          `json:"userId" binding:"required"`
	CustomerID  string          `json:"customerId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" binding:"required,len=3"`
	Description string          `json:"description" binding:"max=500"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type processRequest struct {
	PaymentMethod string                 `json:"paymentMethod"`
	Metadata      map[string]interface{} `json:"metadata"`
}

type processingResultRequest struct {
	Succeeded     *bool  `json:"succeeded" binding:"required"`
	PaymentMethod string `json:"paymentMethod"`
	FailureReason string `json:"failureReason"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

// PaymentResponse wraps an aggregate snapshot.
type PaymentResponse struct {
	WorkflowID string           `json:"workflowId"`
	Payment    *payment.Payment `json:"payment"`
}

// StatusResponse answers GET /payments/:id/status. Status is "not_found"
// when the aggregate was never created.
type StatusResponse struct {
	WorkflowID string `json:"workflowId"`
	PaymentID  string `json:"paymentId"`
	Status     string `json:"status"`
}

// HistoryResponse answers GET /payments/:id/history.
type HistoryResponse struct {
	WorkflowID string          `json:"workflowId"`
	PaymentID  string          `json:"paymentId"`
	Events     []payment.Event `json:"events"`
}

// CheckResponse answers the refundable and cancellable probes.
type CheckResponse struct {
	WorkflowID string `json:"workflowId"`
	PaymentID  string `json:"paymentId"`
	Allowed    bool   `json:"allowed"`
}

// WorkflowResponse describes the execution behind an aggregate.
type WorkflowResponse struct {
	WorkflowID string                `json:"workflowId"`
	Workflow   *service.WorkflowInfo `json:"workflow,omitempty"`
	Terminated bool                  `json:"terminated,omitempty"`
}

// CreatePayment handles POST /payments.
func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	p, err := s.payments.CreatePayment(c.Request.Context(), service.CreatePaymentCommand{
		PaymentID: req.PaymentID,
		CreateParams: payment.CreateParams{
			UserID:      req.UserID,
			Amount:      req.Amount,
			Currency:    strings.ToUpper(req.Currency),
			CustomerID:  req.CustomerID,
			Description: req.Description,
		},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, PaymentResponse{WorkflowID: s.payments.WorkflowID(p.ID), Payment: p})
}

// GetPayment handles GET /payments/:id.
func (s *Server) GetPayment(c *gin.Context) {
	id := c.Param("id")
	p, err := s.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if p == nil {
		fail(c, apperrors.ErrPaymentNotFoundf(id))
		return
	}
	c.JSON(http.StatusOK, PaymentResponse{WorkflowID: s.payments.WorkflowID(id), Payment: p})
}

// GetPaymentStatus handles GET /payments/:id/status.
func (s *Server) GetPaymentStatus(c *gin.Context) {
	id := c.Param("id")
	status, err := s.payments.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{WorkflowID: s.payments.WorkflowID(id), PaymentID: id, Status: status})
}

// GetPaymentHistory handles GET /payments/:id/history.
func (s *Server) GetPaymentHistory(c *gin.Context) {
	id := c.Param("id")
	events, err := s.payments.GetPaymentHistory(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if events == nil {
		events = []payment.Event{}
	}
	c.JSON(http.StatusOK, HistoryResponse{WorkflowID: s.payments.WorkflowID(id), PaymentID: id, Events: events})
}

// UpdatePaymentStatus handles PATCH /payments/:id/status.
func (s *Server) UpdatePaymentStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	s.respondSnapshot(c)(s.payments.UpdatePaymentStatus(c.Request.Context(), c.Param("id"), payment.StatusUpdate{
		Status: payment.Status(strings.ToUpper(req.Status)),
		Reason: req.Reason,
	}))
}

// ProcessPayment handles POST /payments/:id/process.
func (s *Server) ProcessPayment(c *gin.Context) {
	var req processRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	s.respondSnapshot(c)(s.payments.ProcessPayment(c.Request.Context(), c.Param("id"), payment.ProcessParams{
		PaymentMethod: req.PaymentMethod,
		Metadata:      req.Metadata,
	}))
}

// CompleteProcessing handles POST /payments/:id/processing-result, the
// callback of an external payment processor.
func (s *Server) CompleteProcessing(c *gin.Context) {
	var req processingResultRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	s.respondSnapshot(c)(s.payments.CompleteProcessing(c.Request.Context(), c.Param("id"), payment.ProcessingResult{
		Succeeded:     *req.Succeeded,
		PaymentMethod: req.PaymentMethod,
		FailureReason: req.FailureReason,
	}))
}

// CancelPayment handles POST /payments/:id/cancel.
func (s *Server) CancelPayment(c *gin.Context) {
	var req cancelRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	s.respondSnapshot(c)(s.payments.CancelPayment(c.Request.Context(), c.Param("id"), payment.CancelParams{
		Reason: req.Reason,
	}))
}

// RefundPayment handles POST /payments/:id/refund. Omitting amount refunds
// the remaining balance.
func (s *Server) RefundPayment(c *gin.Context) {
	var req refundRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	s.respondSnapshot(c)(s.payments.RefundPayment(c.Request.Context(), c.Param("id"), payment.RefundParams{
		Amount: req.Amount,
		Reason: req.Reason,
	}))
}

// IsPaymentRefundable handles GET /payments/:id/refundable.
func (s *Server) IsPaymentRefundable(c *gin.Context) {
	id := c.Param("id")
	ok, err := s.payments.IsPaymentRefundable(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CheckResponse{WorkflowID: s.payments.WorkflowID(id), PaymentID: id, Allowed: ok})
}

// IsPaymentCancellable handles GET /payments/:id/cancellable.
func (s *Server) IsPaymentCancellable(c *gin.Context) {
	id := c.Param("id")
	ok, err := s.payments.IsPaymentCancellable(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CheckResponse{WorkflowID: s.payments.WorkflowID(id), PaymentID: id, Allowed: ok})
}

// GetWorkflowInfo handles GET /payments/:id/workflow.
func (s *Server) GetWorkflowInfo(c *gin.Context) {
	id := c.Param("id")
	info, err := s.payments.GetWorkflowInfo(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, WorkflowResponse{WorkflowID: s.payments.WorkflowID(id), Workflow: info})
}

// TerminatePaymentWorkflow handles DELETE /payments/:id/workflow. The
// optional reason query parameter is recorded on the execution.
func (s *Server) TerminatePaymentWorkflow(c *gin.Context) {
	id := c.Param("id")
	if err := s.payments.TerminatePaymentWorkflow(c.Request.Context(), id, c.Query("reason")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, WorkflowResponse{WorkflowID: s.payments.WorkflowID(id), Terminated: true})
}

// respondSnapshot writes the snapshot returned by an aggregate update.
func (s *Server) respondSnapshot(c *gin.Context) func(*payment.Payment, error) {
	return func(p *payment.Payment, err error) {
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, PaymentResponse{WorkflowID: s.payments.WorkflowID(c.Param("id")), Payment: p})
	}
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payflow.io/payflow/internal/domain"
	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/saga"
)

type paymentProcessingRequest struct {
	UserID      string          `json:"userId" binding:"required"`
	CustomerID  string          `json:"customerId"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" binding:"required,len=3"`
	Description string          `json:"description" binding:"max=500"`
}

type addressRequest struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	ZipCode string `json:"zipCode" binding:"required"`
	Country string `json:"country" binding:"required"`
}

type userOnboardingRequest struct {
	RequestID   string         `json:"requestId" binding:"omitempty,max=128"`
	Name        string         `json:"name" binding:"required,min=2"`
	Email       string         `json:"email" binding:"required,email"`
	Phone       string         `json:"phone"`
	CompanyName string         `json:"companyName"`
	Address     addressRequest `json:"address"`
}

// AcceptedResponse acknowledges a published domain event. WorkflowID is the
// id of the workflow the saga starts for the event.
type AcceptedResponse struct {
	EventID    string `json:"eventId"`
	RequestID  string `json:"requestId,omitempty"`
	WorkflowID string `json:"workflowId"`
}

// RequestPaymentProcessing handles POST /payments/process-requests by
// publishing START_PAYMENT_PROCESSING_REQUESTED.
func (s *Server) RequestPaymentProcessing(c *gin.Context) {
	var req paymentProcessingRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	eventID := newID()
	ev, err := domain.NewEvent(eventID, domain.EventStartPaymentProcessingRequested, domain.AggregatePayment, req.UserID,
		domain.StartPaymentProcessingPayload{
			UserID:      req.UserID,
			CustomerID:  req.CustomerID,
			Amount:      req.Amount,
			Currency:    strings.ToUpper(req.Currency),
			Description: req.Description,
		}, s.now().UTC())
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.publish(c, ev); err != nil {
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{
		EventID:    eventID,
		WorkflowID: saga.SendPaymentWorkflowID(eventID),
	})
}

// RequestUserOnboarding handles POST /onboarding/user by publishing
// USER_ONBOARDING_REQUESTED. Resubmitting the same requestId starts no
// second onboarding.
func (s *Server) RequestUserOnboarding(c *gin.Context) {
	var req userOnboardingRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = newID()
	}
	eventID := newID()
	ev, err := domain.NewEvent(eventID, domain.EventUserOnboardingRequested, domain.AggregateOnboarding, requestID,
		domain.UserOnboardingRequestedPayload{
			RequestID:   requestID,
			Name:        req.Name,
			Email:       strings.ToLower(req.Email),
			Phone:       req.Phone,
			CompanyName: req.CompanyName,
			Address: domain.AddressData{
				Street:  req.Address.Street,
				City:    req.Address.City,
				ZipCode: req.Address.ZipCode,
				Country: req.Address.Country,
			},
		}, s.now().UTC())
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.publish(c, ev); err != nil {
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{
		EventID:    eventID,
		RequestID:  requestID,
		WorkflowID: saga.UserOnboardingWorkflowID(requestID),
	})
}

func (s *Server) publish(c *gin.Context, ev *domain.DomainEvent) error {
	if err := s.publisher.Publish(c.Request.Context(), ev); err != nil {
		fail(c, apperrors.Wrap(err, apperrors.CodeEventPublishFail, "event could not be published", http.StatusServiceUnavailable).
			WithParams(map[string]interface{}{"event_type": string(ev.EventType)}))
		return err
	}
	return nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

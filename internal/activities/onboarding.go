package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"payflow.io/payflow/internal/domain"
	"payflow.io/payflow/internal/mailer"
	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// OnboardingStore writes addresses, users and customers. Inserts keyed by an
// existing id are no-ops.
type OnboardingStore interface {
	CreateAddress(ctx context.Context, a *domain.Address) error
	CreateUser(ctx context.Context, u *domain.User) error
	CreateCustomer(ctx context.Context, c *domain.Customer) error
}

// OnboardingActivities implements the user onboarding, customer creation
// and welcome steps.
type OnboardingActivities struct {
	Store  OnboardingStore
	Events domain.Publisher
	Mailer mailer.Sender
}

// ValidateUserData checks name, email and address of a signup request.
func (a *OnboardingActivities) ValidateUserData(ctx context.Context, in UserOnboardingInput) error {
	activity.GetLogger(ctx).Info("Validating user data", "Email", in.Email)
	return validateStruct(in)
}

// CreateAddress stores the address under the workflow-chosen id.
func (a *OnboardingActivities) CreateAddress(ctx context.Context, in CreateAddressInput) (string, error) {
	addr := &domain.Address{ID: in.AddressID, AddressData: in.Address, CreatedAt: time.Now().UTC()}
	if err := a.Store.CreateAddress(ctx, addr); err != nil {
		return "", fmt.Errorf("create address: %w", err)
	}
	activity.GetLogger(ctx).Info("Address created", "AddressID", in.AddressID)
	return in.AddressID, nil
}

// CreateUser stores the user and publishes USER_CREATED. The event id is
// derived from the user id, so a retry republishes the same event.
func (a *OnboardingActivities) CreateUser(ctx context.Context, in CreateUserInput) (string, error) {
	now := time.Now().UTC()
	u := &domain.User{
		ID:        in.UserID,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		AddressID: in.AddressID,
		CreatedAt: now,
	}
	if err := a.Store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return "", temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("email %s is already registered", in.Email), apperrors.CodeUserEmailTaken, err)
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	ev, err := domain.NewEvent("user-created-"+in.UserID, domain.EventUserCreated, domain.AggregateUser, in.UserID,
		domain.UserCreatedPayload{
			UserID:      in.UserID,
			Name:        in.Name,
			Email:       in.Email,
			Phone:       in.Phone,
			CompanyName: in.CompanyName,
			AddressID:   in.AddressID,
			Context:     in.Context,
		}, now)
	if err != nil {
		return "", temporal.NewNonRetryableApplicationError(err.Error(), apperrors.CodeEventPublishFail, err)
	}
	if err := a.Events.Publish(ctx, ev); err != nil {
		return "", fmt.Errorf("publish %s: %w", ev.EventType, err)
	}

	activity.GetLogger(ctx).Info("User created", "UserID", in.UserID)
	return in.UserID, nil
}

// SendEmail delivers a plain email.
func (a *OnboardingActivities) SendEmail(ctx context.Context, in EmailInput) error {
	return a.Mailer.Send(ctx, mailer.Message{To: in.To, Subject: in.Subject, Body: in.Body})
}

// ValidateCustomerData checks a customer creation request.
func (a *OnboardingActivities) ValidateCustomerData(ctx context.Context, in CreateCustomerInput) error {
	activity.GetLogger(ctx).Info("Validating customer data", "UserID", in.UserID)
	return validateStruct(in)
}

// CreateCustomer stores the customer and publishes CUSTOMER_CREATED.
func (a *OnboardingActivities) CreateCustomer(ctx context.Context, in CreateCustomerRecordInput) (string, error) {
	now := time.Now().UTC()
	c := in.Customer
	cust := &domain.Customer{
		ID:          in.CustomerID,
		UserID:      c.UserID,
		CompanyName: c.CompanyName,
		ContactName: c.ContactName,
		Email:       c.Email,
		Phone:       c.Phone,
		AddressID:   c.AddressID,
		CreatedAt:   now,
	}
	if err := a.Store.CreateCustomer(ctx, cust); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("User with ID %s not found", c.UserID), apperrors.CodeUserNotFound, err)
		}
		return "", fmt.Errorf("create customer: %w", err)
	}

	ev, err := domain.NewEvent("customer-created-"+in.CustomerID, domain.EventCustomerCreated, domain.AggregateCustomer, in.CustomerID,
		domain.CustomerCreatedPayload{
			CustomerID:  in.CustomerID,
			UserID:      c.UserID,
			Email:       c.Email,
			CompanyName: c.CompanyName,
			ContactName: c.ContactName,
			Phone:       c.Phone,
			AddressID:   c.AddressID,
			Context:     c.Context,
		}, now)
	if err != nil {
		return "", temporal.NewNonRetryableApplicationError(err.Error(), apperrors.CodeEventPublishFail, err)
	}
	if err := a.Events.Publish(ctx, ev); err != nil {
		return "", fmt.Errorf("publish %s: %w", ev.EventType, err)
	}

	activity.GetLogger(ctx).Info("Customer created", "CustomerID", in.CustomerID)
	return in.CustomerID, nil
}

// SendCustomerEmail sends the customer welcome email.
func (a *OnboardingActivities) SendCustomerEmail(ctx context.Context, in CustomerWelcomeInput) error {
	name := in.ContactName
	if name == "" {
		name = in.CompanyName
	}
	return a.Mailer.Send(ctx, mailer.Message{
		To:      in.Email,
		Subject: fmt.Sprintf("Welcome to our platform, %s!", in.CompanyName),
		Body:    fmt.Sprintf("Hello %s, the customer account for %s is ready.", name, in.CompanyName),
	})
}

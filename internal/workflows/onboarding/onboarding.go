// Package onboarding contains the user onboarding workflows. They are chained
// by events rather than child workflows: CreateUser publishes USER_CREATED,
// the saga starts CreateCustomer, which publishes CUSTOMER_CREATED, and the
// saga then starts CustomerWelcome.
package onboarding

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"payflow.io/payflow/internal/activities"
	"payflow.io/payflow/internal/domain"
	"payflow.io/payflow/internal/workflows"
)

// Registered workflow names.
const (
	UserOnboardingWorkflowName  = "UserOnboardingWorkflow"
	CreateCustomerWorkflowName  = "CreateCustomerWorkflow"
	CustomerWelcomeWorkflowName = "CustomerWelcomeWorkflow"
)

// UserOnboardingResult reports the ids written by an onboarding run.
type UserOnboardingResult struct {
	UserID    string `json:"userId"`
	AddressID string `json:"addressId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// CreateCustomerResult reports the customer written by a run.
type CreateCustomerResult struct {
	CustomerID string `json:"customerId"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Workflows carries worker-level settings into workflow code.
type Workflows struct {
	Policy workflows.ActivityPolicy
}

// Register adds the onboarding workflows and activities to a worker.
func (w *Workflows) Register(r workflows.Registry, acts *activities.OnboardingActivities) {
	r.RegisterWorkflowWithOptions(w.UserOnboarding, workflow.RegisterOptions{Name: UserOnboardingWorkflowName})
	r.RegisterWorkflowWithOptions(w.CreateCustomer, workflow.RegisterOptions{Name: CreateCustomerWorkflowName})
	r.RegisterWorkflowWithOptions(w.CustomerWelcome, workflow.RegisterOptions{Name: CustomerWelcomeWorkflowName})
	r.RegisterActivity(acts)
}

var onboardingActs *activities.OnboardingActivities

// UserOnboarding validates a signup, writes the address and the user, and
// sends the welcome email. Customer creation follows from USER_CREATED.
func (w *Workflows) UserOnboarding(ctx workflow.Context, in activities.UserOnboardingInput) (UserOnboardingResult, error) {
	logger := workflow.GetLogger(ctx)
	ctx = w.Policy.WithOptions(ctx)

	failed := func(step string, err error) (UserOnboardingResult, error) {
		logger.Warn("User onboarding failed", "Step", step, "Email", in.Email, "Error", err)
		return UserOnboardingResult{Status: workflows.StatusFailed, Error: errorMessage(err)}, nil
	}

	if err := workflow.ExecuteActivity(ctx, onboardingActs.ValidateUserData, in).Get(ctx, nil); err != nil {
		return failed("validate", err)
	}

	ids, err := newIDs(ctx, 2)
	if err != nil {
		return failed("assign ids", err)
	}
	addressID, userID := ids[0], ids[1]

	err = workflow.ExecuteActivity(ctx, onboardingActs.CreateAddress, activities.CreateAddressInput{
		AddressID: addressID,
		Address:   in.Address,
	}).Get(ctx, &addressID)
	if err != nil {
		return failed("create address", err)
	}

	err = workflow.ExecuteActivity(ctx, onboardingActs.CreateUser, activities.CreateUserInput{
		UserID:      userID,
		Name:        in.Name,
		Email:       in.Email,
		Phone:       in.Phone,
		CompanyName: in.CompanyName,
		AddressID:   addressID,
		Context:     domain.ContextOnboarding,
	}).Get(ctx, &userID)
	if err != nil {
		return failed("create user", err)
	}

	err = workflow.ExecuteActivity(ctx, onboardingActs.SendEmail, activities.EmailInput{
		To:      in.Email,
		Subject: "Welcome to our platform!",
		Body:    fmt.Sprintf("Hello %s, welcome to our platform. Your account has been created successfully.", in.Name),
	}).Get(ctx, nil)
	if err != nil {
		return failed("welcome email", err)
	}

	logger.Info("User onboarded", "UserID", userID, "AddressID", addressID, "RequestID", in.RequestID)
	return UserOnboardingResult{UserID: userID, AddressID: addressID, Status: workflows.StatusCompleted}, nil
}

// CreateCustomer validates and writes the customer for a new user, then
// emails the contact.
func (w *Workflows) CreateCustomer(ctx workflow.Context, in activities.CreateCustomerInput) (CreateCustomerResult, error) {
	logger := workflow.GetLogger(ctx)
	ctx = w.Policy.WithOptions(ctx)

	failed := func(step string, err error) (CreateCustomerResult, error) {
		logger.Warn("Customer creation failed", "Step", step, "UserID", in.UserID, "Error", err)
		return CreateCustomerResult{Status: workflows.StatusFailed, Error: errorMessage(err)}, nil
	}

	if err := workflow.ExecuteActivity(ctx, onboardingActs.ValidateCustomerData, in).Get(ctx, nil); err != nil {
		return failed("validate", err)
	}

	ids, err := newIDs(ctx, 1)
	if err != nil {
		return failed("assign id", err)
	}
	customerID := ids[0]

	err = workflow.ExecuteActivity(ctx, onboardingActs.CreateCustomer, activities.CreateCustomerRecordInput{
		CustomerID: customerID,
		Customer:   in,
	}).Get(ctx, &customerID)
	if err != nil {
		return failed("create customer", err)
	}

	err = workflow.ExecuteActivity(ctx, onboardingActs.SendEmail, activities.EmailInput{
		To:      in.Email,
		Subject: "Your customer account has been created",
		Body:    fmt.Sprintf("Hello %s, the customer account for %s has been created.", in.ContactName, in.CompanyName),
	}).Get(ctx, nil)
	if err != nil {
		return failed("email", err)
	}

	logger.Info("Customer created", "CustomerID", customerID, "UserID", in.UserID)
	return CreateCustomerResult{CustomerID: customerID, Status: workflows.StatusCompleted}, nil
}

// CustomerWelcome sends the welcome email for a customer created during
// onboarding. Delivery failures fail the workflow so they stay visible.
func (w *Workflows) CustomerWelcome(ctx workflow.Context, in activities.CustomerWelcomeInput) error {
	ctx = w.Policy.WithOptions(ctx)
	if err := workflow.ExecuteActivity(ctx, onboardingActs.SendCustomerEmail, in).Get(ctx, nil); err != nil {
		return fmt.Errorf("welcome customer %s: %w", in.CustomerID, err)
	}
	workflow.GetLogger(ctx).Info("Customer welcomed", "CustomerID", in.CustomerID)
	return nil
}

// newIDs draws n random ids once and replays them from history.
func newIDs(ctx workflow.Context, n int) ([]string, error) {
	var ids []string
	err := workflow.SideEffect(ctx, func(workflow.Context) interface{} {
		out := make([]string, n)
		for i := range out {
			out[i] = uuid.NewString()
		}
		return out
	}).Get(&ids)
	return ids, err
}

func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Message()
	}
	return err.Error()
}

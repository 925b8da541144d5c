package onboarding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"payflow.io/payflow/internal/activities"
	"payflow.io/payflow/internal/domain"
	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/workflows"
)

func newEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *activities.OnboardingActivities) {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &activities.OnboardingActivities{}
	(&Workflows{Policy: workflows.DefaultActivityPolicy()}).Register(env, acts)
	return env, acts
}

func signup() activities.UserOnboardingInput {
	return activities.UserOnboardingInput{
		RequestID: "req-1",
		Name:      "Ada Lovelace",
		Email:     "ada@example.com",
		Address: domain.AddressData{
			Street: "12 St James's Square", City: "London", ZipCode: "SW1Y", Country: "UK",
		},
	}
}

func TestUserOnboarding_Success(t *testing.T) {
	env, acts := newEnv(t)

	env.OnActivity(acts.ValidateUserData, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(acts.CreateAddress, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in activities.CreateAddressInput) (string, error) { return in.AddressID, nil })
	env.OnActivity(acts.CreateUser, mock.Anything, mock.MatchedBy(func(in activities.CreateUserInput) bool {
		return in.Context == domain.ContextOnboarding && in.AddressID != "" && in.UserID != ""
	})).Return("user-1", nil)
	env.OnActivity(acts.SendEmail, mock.Anything, mock.MatchedBy(func(in activities.EmailInput) bool {
		return in.To == "ada@example.com" && in.Subject == "Welcome to our platform!"
	})).Return(nil)

	env.ExecuteWorkflow(UserOnboardingWorkflowName, signup())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result UserOnboardingResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, workflows.StatusCompleted, result.Status)
	assert.Equal(t, "user-1", result.UserID)
	assert.NotEmpty(t, result.AddressID)
	env.AssertExpectations(t)
}

func TestUserOnboarding_DuplicateEmail(t *testing.T) {
	env, acts := newEnv(t)

	env.OnActivity(acts.ValidateUserData, mock.Anything, mock.Anything).Return(nil)
	env.OnActivity(acts.CreateAddress, mock.Anything, mock.Anything).Return("addr-1", nil)
	env.OnActivity(acts.CreateUser, mock.Anything, mock.Anything).Return("",
		temporal.NewNonRetryableApplicationError("email ada@example.com is already registered", apperrors.CodeUserEmailTaken, nil))

	env.ExecuteWorkflow(UserOnboardingWorkflowName, signup())

	var result UserOnboardingResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, workflows.StatusFailed, result.Status)
	assert.Empty(t, result.UserID)
	assert.Equal(t, "email ada@example.com is already registered", result.Error)
}

func TestCreateCustomer_Success(t *testing.T) {
	env, acts := newEnv(t)

	in := activities.CreateCustomerInput{
		UserID:      "user-1",
		CompanyName: "Analytical Engines",
		ContactName: "Ada",
		Email:       "ada@example.com",
		AddressID:   "addr-1",
		Context:     domain.ContextOnboarding,
	}
	env.OnActivity(acts.ValidateCustomerData, mock.Anything, in).Return(nil)
	env.OnActivity(acts.CreateCustomer, mock.Anything, mock.MatchedBy(func(r activities.CreateCustomerRecordInput) bool {
		return r.CustomerID != "" && r.Customer == in
	})).Return("cust-1", nil)
	env.OnActivity(acts.SendEmail, mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(CreateCustomerWorkflowName, in)

	var result CreateCustomerResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "cust-1", result.CustomerID)
	assert.Equal(t, workflows.StatusCompleted, result.Status)
}

func TestCreateCustomer_InvalidInput(t *testing.T) {
	env, acts := newEnv(t)

	env.OnActivity(acts.ValidateCustomerData, mock.Anything, mock.Anything).Return(
		temporal.NewNonRetryableApplicationError("CompanyName is required", apperrors.CodeValidationFailed, nil))

	env.ExecuteWorkflow(CreateCustomerWorkflowName, activities.CreateCustomerInput{UserID: "user-1"})

	var result CreateCustomerResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, workflows.StatusFailed, result.Status)
	assert.Equal(t, "CompanyName is required", result.Error)
}

func TestCustomerWelcome(t *testing.T) {
	env, acts := newEnv(t)

	env.OnActivity(acts.SendCustomerEmail, mock.Anything, mock.Anything).Return(nil).Once()
	env.ExecuteWorkflow(CustomerWelcomeWorkflowName, activities.CustomerWelcomeInput{
		CustomerID: "cust-1", Email: "ada@example.com", CompanyName: "Analytical Engines",
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestCustomerWelcome_EmailFailureFailsWorkflow(t *testing.T) {
	env, acts := newEnv(t)

	env.OnActivity(acts.SendCustomerEmail, mock.Anything, mock.Anything).Return(
		temporal.NewNonRetryableApplicationError("smtp unavailable", "SMTP", nil))
	env.ExecuteWorkflow(CustomerWelcomeWorkflowName, activities.CustomerWelcomeInput{CustomerID: "cust-1", Email: "a@example.com"})

	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp unavailable")
}

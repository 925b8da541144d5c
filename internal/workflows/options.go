// Package workflows holds what the workflow packages share: the activity
// timeout and retry policy and the registration surface of a worker.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"payflow.io/payflow/internal/config"
)

// Status values reported by the saga-started workflows.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ActivityPolicy bounds and retries every activity a workflow schedules.
type ActivityPolicy struct {
	StartToCloseTimeout time.Duration
	// MaxAttempts of 0 retries until the workflow gives up.
	MaxAttempts        int32
	InitialInterval    time.Duration
	MaxInterval        time.Duration
	BackoffCoefficient float64
}

// DefaultActivityPolicy matches the configuration defaults.
func DefaultActivityPolicy() ActivityPolicy {
	return ActivityPolicy{
		StartToCloseTimeout: time.Minute,
		MaxAttempts:         5,
		InitialInterval:     time.Second,
		MaxInterval:         30 * time.Second,
		BackoffCoefficient:  2,
	}
}

// PolicyFromConfig builds the policy from the temporal config section.
func PolicyFromConfig(cfg config.TemporalConfig) ActivityPolicy {
	p := DefaultActivityPolicy()
	if cfg.ActivityTimeout > 0 {
		p.StartToCloseTimeout = cfg.ActivityTimeout
	}
	p.MaxAttempts = cfg.ActivityMaxAttempts
	if cfg.ActivityInitialInterval > 0 {
		p.InitialInterval = cfg.ActivityInitialInterval
	}
	if cfg.ActivityMaxInterval > 0 {
		p.MaxInterval = cfg.ActivityMaxInterval
	}
	return p
}

// Options converts the policy to Temporal activity options.
func (p ActivityPolicy) Options() workflow.ActivityOptions {
	backoff := p.BackoffCoefficient
	if backoff < 1 {
		backoff = 2
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: p.StartToCloseTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    p.InitialInterval,
			BackoffCoefficient: backoff,
			MaximumInterval:    p.MaxInterval,
			MaximumAttempts:    p.MaxAttempts,
		},
	}
}

// WithOptions returns ctx carrying the policy's activity options.
func (p ActivityPolicy) WithOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, p.Options())
}

// Registry is the part of a Temporal worker that workflow packages register
// into. Both worker.Worker and the test environment satisfy it.
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivity(a interface{})
}

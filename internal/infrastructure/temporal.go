package infrastructure

import (
	"fmt"

	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/activities"
	"payflow.io/payflow/internal/config"
	"payflow.io/payflow/internal/pkg/logger"
	"payflow.io/payflow/internal/workflows"
	"payflow.io/payflow/internal/workflows/onboarding"
	"payflow.io/payflow/internal/workflows/payments"
)

// NewTemporalClient dials the Temporal frontend with SDK logs routed to zap.
func NewTemporalClient(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    logger.NewTemporalLogger(logger.Named("temporal")),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, err)
	}
	logger.Info("Temporal client connected",
		zap.String("host_port", cfg.HostPort),
		zap.String("namespace", cfg.Namespace),
	)
	return c, nil
}

// WorkerActivities are the activity receivers a worker hosts.
type WorkerActivities struct {
	Payments   *activities.PaymentActivities
	Onboarding *activities.OnboardingActivities
}

// RegisterWorkflows registers every workflow and activity on r.
func RegisterWorkflows(r workflows.Registry, policy workflows.ActivityPolicy, acts WorkerActivities) {
	(&payments.Workflows{Policy: policy}).Register(r, acts.Payments)
	(&onboarding.Workflows{Policy: policy}).Register(r, acts.Onboarding)
}

// NewTemporalWorker creates a worker polling cfg.TaskQueue with all
// workflows and activities registered. The caller starts and stops it.
func NewTemporalWorker(c client.Client, cfg config.TemporalConfig, acts WorkerActivities) sdkworker.Worker {
	w := sdkworker.New(c, cfg.TaskQueue, sdkworker.Options{})
	RegisterWorkflows(w, workflows.PolicyFromConfig(cfg), acts)
	logger.Info("Temporal worker configured", zap.String("task_queue", cfg.TaskQueue))
	return w
}

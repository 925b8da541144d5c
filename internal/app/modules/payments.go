package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	sdkworker "go.temporal.io/sdk/worker"

	"payflow.io/payflow/internal/activities"
	"payflow.io/payflow/internal/api/handlers"
	"payflow.io/payflow/internal/domain"
	"payflow.io/payflow/internal/infrastructure"
	"payflow.io/payflow/internal/mailer"
	"payflow.io/payflow/internal/pkg/logger"
	"payflow.io/payflow/internal/repository"
	"payflow.io/payflow/internal/service"
)

// PaymentsModule hosts the payment and onboarding workflows on a Temporal
// worker and exposes the aggregate facade.
type PaymentsModule struct {
	facade *service.PaymentAggregateService
	worker sdkworker.Worker
}

// NewPaymentsModule wires repositories, activities and the Temporal worker.
// publisher receives the events emitted by onboarding activities.
func NewPaymentsModule(infra *Infrastructure, publisher domain.Publisher) *PaymentsModule {
	cfg := infra.Config
	paymentRepo := repository.NewPaymentRepository(infra.Pool)
	directory := repository.NewDirectoryRepository(infra.Pool)
	mail := mailer.New(cfg.Mail, logger.Named("mailer"))

	acts := infrastructure.WorkerActivities{
		Payments: &activities.PaymentActivities{
			Store:     paymentRepo,
			Directory: directory,
			Mailer:    mail,
		},
		Onboarding: &activities.OnboardingActivities{
			Store:  directory,
			Events: publisher,
			Mailer: mail,
		},
	}

	return &PaymentsModule{
		facade: service.NewPaymentAggregateService(infra.Temporal, service.AggregateServiceConfig{
			TaskQueue:      cfg.Temporal.TaskQueue,
			ProcessingMode: cfg.ProcessingMode(),
			UpdateTimeout:  cfg.Temporal.UpdateTimeout,
		}, infra.Metrics),
		worker: infrastructure.NewTemporalWorker(infra.Temporal, cfg.Temporal, acts),
	}
}

func (m *PaymentsModule) Name() string { return "payments" }

func (m *PaymentsModule) RegisterWorkers(*river.Workers) {}

func (m *PaymentsModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	deps.Payments = m.facade
}

// Start begins polling the task queue.
func (m *PaymentsModule) Start(context.Context) error {
	if err := m.worker.Start(); err != nil {
		return fmt.Errorf("start temporal worker: %w", err)
	}
	logger.Info("Temporal worker started, workflows will now be executed")
	return nil
}

func (m *PaymentsModule) Shutdown(context.Context) error {
	m.worker.Stop()
	return nil
}

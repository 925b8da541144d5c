package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"payflow.io/payflow/internal/api/handlers"
	"payflow.io/payflow/internal/config"
	"payflow.io/payflow/internal/events"
	"payflow.io/payflow/internal/jobs"
	"payflow.io/payflow/internal/pkg/logger"
	"payflow.io/payflow/internal/repository"
)

// EventsModule owns the domain event outbox: its table, the River relay and
// cleanup workers, and the publisher handed to activities and handlers.
type EventsModule struct {
	infra *Infrastructure
	repo  *repository.EventRepository
	bus   *events.Bus
}

// NewEventsModule creates the module. The publisher is available after Bind.
func NewEventsModule(infra *Infrastructure) *EventsModule {
	return &EventsModule{infra: infra, repo: repository.NewEventRepository(infra.Pool)}
}

func (m *EventsModule) Name() string { return "events" }

// RegisterWorkers registers the relay and retention workers. The relay
// worker is registered in both delivery modes so jobs enqueued before a
// switch to in-process delivery still drain.
func (m *EventsModule) RegisterWorkers(workers *river.Workers) {
	river.AddWorker(workers, jobs.NewDomainEventWorker(m.repo, m.infra.Dispatcher))
	river.AddWorker(workers, jobs.NewEventCleanupWorker(m.repo, jobs.DefaultEventRetention))
}

// Bind builds the publisher for the configured delivery mode. Outbox
// delivery needs the River client, so Bind runs after Infrastructure.InitRiver.
func (m *EventsModule) Bind() error {
	switch m.infra.Config.Events.Delivery {
	case config.DeliveryInProcess:
		m.bus = events.NewInProcessBus(m.repo, m.infra.Pools, m.infra.Dispatcher)
	default:
		if m.infra.RiverClient == nil {
			return fmt.Errorf("outbox delivery requires the river client")
		}
		m.bus = events.NewOutboxBus(m.repo.Pool(), m.repo, m.infra.RiverClient)
	}
	logger.Info("Domain event bus bound", zap.String("delivery", m.bus.Delivery()))
	return nil
}

// Publisher returns the bound event bus.
func (m *EventsModule) Publisher() *events.Bus { return m.bus }

func (m *EventsModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	deps.Publisher = m.bus
}

func (m *EventsModule) Shutdown(context.Context) error { return nil }

// Package app is the composition root. Bootstrap only wires modules
// together; behaviour lives in the modules and the packages they assemble.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"payflow.io/payflow/internal/api/handlers"
	"payflow.io/payflow/internal/app/modules"
	"payflow.io/payflow/internal/config"
	"payflow.io/payflow/internal/infrastructure"
	"payflow.io/payflow/internal/jobs"
	"payflow.io/payflow/internal/pkg/worker"
	"payflow.io/payflow/internal/saga"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	Infra   *modules.Infrastructure
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	eventsModule := modules.NewEventsModule(infra)

	workers := river.NewWorkers()
	eventsModule.RegisterWorkers(workers)
	if err := infra.InitRiver(workers); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}
	// Outbox retention: prune delivered events daily and once on startup.
	infra.RiverClient.PeriodicJobs().Add(
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.EventCleanupArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	)

	if err := eventsModule.Bind(); err != nil {
		infra.Close()
		return nil, fmt.Errorf("bind event bus: %w", err)
	}

	saga.NewRouter(infra.Temporal, cfg.Temporal.TaskQueue, infra.Metrics).Register(infra.Dispatcher)

	paymentsModule := modules.NewPaymentsModule(infra, eventsModule.Publisher())

	allModules := []modules.Module{eventsModule, paymentsModule}
	server := handlers.NewServer(modules.NewServerDeps(infra, allModules))

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, infra.Metrics),
		Infra:   infra,
		DB:      infra.DB,
		Pools:   infra.Pools,
		Modules: allModules,
	}, nil
}

package modules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"go.temporal.io/sdk/client"

	"payflow.io/payflow/internal/api/handlers"
	"payflow.io/payflow/internal/config"
	"payflow.io/payflow/internal/domain"
	"payflow.io/payflow/internal/infrastructure"
	"payflow.io/payflow/internal/pkg/metrics"
	"payflow.io/payflow/internal/pkg/worker"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config      *config.Config
	DB          *infrastructure.DatabaseClients
	Pools       *worker.Pools
	Pool        *pgxpool.Pool
	RiverClient *river.Client[pgx.Tx]
	Temporal    client.Client
	Metrics     *metrics.Provider
	Dispatcher  *domain.EventDispatcher
}

// NewInfrastructure connects to Postgres and Temporal and creates the
// worker pools, metrics registry and event dispatcher.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		EventPoolSize:   cfg.Worker.EventPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	temporalClient, err := infrastructure.NewTemporalClient(cfg.Temporal)
	if err != nil {
		pools.Shutdown()
		db.Close()
		return nil, fmt.Errorf("init temporal client: %w", err)
	}

	return &Infrastructure{
		Config:     cfg,
		DB:         db,
		Pools:      pools,
		Pool:       db.Pool,
		Temporal:   temporalClient,
		Metrics:    metrics.NewProvider("payflow"),
		Dispatcher: domain.NewEventDispatcher(),
	}, nil
}

// InitRiver initializes River client on top of a prepared worker registry.
func (i *Infrastructure) InitRiver(workers *river.Workers) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if err := i.DB.InitRiverClient(workers, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// ReadinessChecks returns the probes served by GET /health/ready.
func (i *Infrastructure) ReadinessChecks() []handlers.ReadinessCheck {
	checks := make([]handlers.ReadinessCheck, 0, 2)
	if i.Pool != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "database", Check: i.Pool.Ping})
	}
	if i.Temporal != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "temporal", Check: func(ctx context.Context) error {
			_, err := i.Temporal.CheckHealth(ctx, &client.CheckHealthRequest{})
			return err
		}})
	}
	return checks
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Temporal != nil {
		i.Temporal.Close()
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}

// Package modules contains the dependency modules assembled by the
// composition root.
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"payflow.io/payflow/internal/api/handlers"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers)

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}

// ServerDepsContributor is implemented by modules that expose dependencies
// to the HTTP server.
type ServerDepsContributor interface {
	ContributeServerDeps(*handlers.ServerDeps)
}

// Starter is implemented by modules that run background work after the
// River client has started.
type Starter interface {
	Start(context.Context) error
}

// Package metrics coordinates business-metrics retrieval through pluggable
// source adapters. The manager selects an adapter from the registry by
// configured source type, drives its connect/retrieve lifecycle, normalizes
// the result through the metrics schema contract, and attaches source
// metadata centrally so adapters never do.
package metrics

import (
	"context"
	"time"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/registry"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/table"
)

// Adapter is the contract every metrics source implements.
//
// Connect must be safe to fail: it either succeeds or returns an error
// without leaving partial state. RetrieveBusinessMetrics returns a table
// in the adapter's native column names; the manager owns normalization
// into the canonical schema. Adapters must not attach metrics_source or
// retrieval_timestamp columns.
type Adapter interface {
	Connect(cfg map[string]interface{}) error
	RetrieveBusinessMetrics(ctx context.Context, products *table.Table, start, end time.Time) (*table.Table, error)
}

// Factory creates an adapter instance.
type Factory func() Adapter

var adapters = registry.New[Factory]("metrics adapter")

// Register adds a metrics adapter factory to the package registry.
func Register(name string, factory Factory) error {
	return adapters.Register(name, factory)
}

// MustRegister registers from adapter init functions.
func MustRegister(name string, factory Factory) {
	adapters.MustRegister(name, factory)
}

// DefaultRegistry returns the package-level adapter registry. Managers
// take a registry by reference, so tests can pass their own.
func DefaultRegistry() *registry.Registry[Factory] {
	return adapters
}

// Names lists the registered metrics adapters.
func Names() []string {
	return adapters.Names()
}

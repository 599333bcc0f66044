// Package registry provides generic name-to-factory registration for
// pluggable components. One registry type serves every extension point in
// the engine: metrics adapters, model adapters, storage backends, and
// transform functions all share the identical contract.
//
// Registries are populated during package initialization (adapters
// self-register from init functions) and are read-mostly afterward.
// Concurrent registration while jobs are running is unsupported.
package registry

import (
	"sort"
	"sync"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/logger"
	"go.uber.org/zap"
)

// Registry manages registration and lookup of component factories by name.
// T is the factory type stored for each entry (typically a constructor
// function, but any value works for function registries).
type Registry[T any] struct {
	kind    string
	entries map[string]T
	mu      sync.RWMutex
	logger  *zap.Logger
}

// New creates an empty registry. The kind string names the component family
// in error messages and logs (e.g. "metrics adapter", "model").
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:    kind,
		entries: make(map[string]T),
		logger:  logger.Get().With(zap.String("component", "registry"), zap.String("kind", kind)),
	}
}

// Register adds a factory under the given name. Duplicate names are
// rejected: the registry never silently overwrites an existing entry.
func (r *Registry[T]) Register(name string, factory T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return errors.Newf(errors.ErrorTypeConflict, "%s %q already registered", r.kind, name)
	}

	r.entries[name] = factory
	r.logger.Info("registered", zap.String("name", name))
	return nil
}

// MustRegister is Register for init-time self-registration, where a
// duplicate means two packages claimed the same name and the process
// cannot meaningfully continue.
func (r *Registry[T]) MustRegister(name string, factory T) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Get returns the factory registered under name. Unknown names fail with a
// lookup error naming the key and listing every registered name; lookups
// never fall back to a default.
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	factory, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		var zero T
		return zero, errors.Newf(errors.ErrorTypeLookup, "unknown %s %q, available: %v", r.kind, name, r.names()).
			WithDetail("name", name).
			WithDetail("available", r.names())
	}
	return factory, nil
}

// Has reports whether a name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[name]
	return exists
}

// Names returns all registered names in sorted order.
func (r *Registry[T]) Names() []string {
	return r.names()
}

func (r *Registry[T]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all entries (mainly for testing).
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]T)
}

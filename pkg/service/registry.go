package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Invoker is the type-erased view of a Definition, used by the Registry.
type Invoker interface {
	// Name returns the registered name of the service (e.g. "echo").
	Name() string

	// Attributes returns the declared attributes in declaration order.
	Attributes() []Attribute

	// Required returns the names of the required attributes.
	Required() []string

	// Call builds an instance from attrs and executes it.
	Call(ctx context.Context, attrs map[string]any, yield Continuation) (*Response, error)
}

// Registry holds registered services by name.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Invoker
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]Invoker),
	}
}

// Register adds a service under its own name.
// Returns an error wrapping ErrServiceExists if the name is already registered.
func (r *Registry) Register(svc Invoker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := svc.Name()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("service %q: %w", name, ErrServiceExists)
	}
	r.services[name] = svc
	return nil
}

// Lookup returns the service registered under name.
// Returns an error wrapping ErrUnknownService if it is not registered.
func (r *Registry) Lookup(name string) (Invoker, error) {
	r.mu.RLock()
	svc, exists := r.services[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("service %q: %w", name, ErrUnknownService)
	}
	return svc, nil
}

// Describe returns the attributes declared by the named service.
func (r *Registry) Describe(name string) ([]Attribute, error) {
	svc, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return svc.Attributes(), nil
}

// Call looks up the named service and invokes it with attrs.
func (r *Registry) Call(ctx context.Context, name string, attrs map[string]any, yield Continuation) (*Response, error) {
	svc, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return svc.Call(ctx, attrs, yield)
}

// Names returns the names of all registered services, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

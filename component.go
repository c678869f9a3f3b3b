package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Component is a long-lived unit resolved from the Factory at the end of
// boot.
type Component interface {
	Initialize(ctx context.Context) error
	Terminate(ctx context.Context) error
}

type namedComponent struct {
	name      string
	component Component
}

// ComponentCollection initializes components in collection order and
// terminates the initialized ones in reverse.
type ComponentCollection struct {
	logger     Logger
	components []namedComponent

	mu          sync.Mutex
	initialized []namedComponent
	started     bool
	terminated  bool
}

// NewComponentCollection resolves the components collection from f. A
// Factory without one yields an empty collection.
func NewComponentCollection(f *Factory, logger Logger) (*ComponentCollection, error) {
	items, err := f.ResolveCollection(ComponentsCollection)
	if err != nil && !errors.Is(err, ErrCollectionNotFound) {
		return nil, err
	}

	c := &ComponentCollection{logger: logger}
	for _, item := range items {
		component, ok := item.Value.(Component)
		if !ok {
			return nil, fmt.Errorf("%w: %s (%T)", ErrNotAComponent, item.Name, item.Value)
		}
		c.components = append(c.components, namedComponent{name: item.Name, component: component})
	}
	return c, nil
}

// Names returns the component names in initialization order.
func (c *ComponentCollection) Names() []string {
	names := make([]string, len(c.components))
	for i, nc := range c.components {
		names[i] = nc.name
	}
	return names
}

// Initialize runs every component's Initialize in order and stops at the
// first failure, which it returns. Only the first call does anything.
func (c *ComponentCollection) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true

	for _, nc := range c.components {
		c.logger.Debug("Initializing component", "component", nc.name)
		if err := nc.component.Initialize(ctx); err != nil {
			return fmt.Errorf("component %s: %w", nc.name, err)
		}
		c.initialized = append(c.initialized, nc)
	}
	c.logger.Info("Components initialized", "count", len(c.initialized))
	return nil
}

// Terminate runs Terminate on the initialized components in reverse order.
// Every component is terminated even if some fail; the errors are joined.
// It does nothing before Initialize and after the first call.
func (c *ComponentCollection) Terminate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated || len(c.initialized) == 0 {
		c.terminated = c.terminated || c.started
		return nil
	}
	c.terminated = true

	var errs []error
	for _, nc := range slices.Backward(c.initialized) {
		c.logger.Debug("Terminating component", "component", nc.name)
		if err := terminate(ctx, nc); err != nil {
			c.logger.Error("Component termination failed", "component", nc.name, "error", err)
			errs = append(errs, err)
		}
	}
	c.initialized = nil
	return errors.Join(errs...)
}

func terminate(ctx context.Context, nc namedComponent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("component %s: terminate panicked: %v", nc.name, r)
		}
	}()
	if err := nc.component.Terminate(ctx); err != nil {
		return fmt.Errorf("component %s: %w", nc.name, err)
	}
	return nil
}

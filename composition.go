package bootstrap

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// ServiceFactory builds a service. It may resolve the services it depends
// on from f.
type ServiceFactory func(f *Factory) (any, error)

type registration struct {
	instance any
	factory  ServiceFactory
}

type collectionItem struct {
	name string
	reg  registration
}

// Composition accumulates service and collection registrations while
// booting. Composers receive it in order and may override what earlier
// composers registered. Freeze turns it into the Factory; afterwards every
// mutation fails with ErrCompositionFrozen.
type Composition struct {
	logger Logger

	mu              sync.Mutex
	services        map[string]registration
	serviceOrder    []string
	collections     map[string]*CollectionBuilder
	collectionOrder []string
	frozen          bool
}

// NewComposition creates an empty composition. logger may be nil.
func NewComposition(logger Logger) *Composition {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Composition{
		logger:      logger,
		services:    make(map[string]registration),
		collections: make(map[string]*CollectionBuilder),
	}
}

// Register registers a ready-made service under name.
func (c *Composition) Register(name string, service any) error {
	if isNil(service) {
		return fmt.Errorf("%w: service %q is nil", ErrInvalidRegistration, name)
	}
	return c.register(name, registration{instance: service})
}

// RegisterFactory registers a service built when the composition is frozen.
func (c *Composition) RegisterFactory(name string, fn ServiceFactory) error {
	if fn == nil {
		return fmt.Errorf("%w: factory for %q is nil", ErrInvalidRegistration, name)
	}
	return c.register(name, registration{factory: fn})
}

func (c *Composition) register(name string, reg registration) error {
	if name == "" {
		return fmt.Errorf("%w: empty service name", ErrInvalidRegistration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("%w: cannot register %s", ErrCompositionFrozen, name)
	}
	if _, exists := c.services[name]; exists {
		c.logger.Debug("Overriding service registration", "name", name)
	} else {
		c.serviceOrder = append(c.serviceOrder, name)
	}
	c.services[name] = reg
	if reg.instance != nil {
		c.logger.Debug("Registered service", "name", name, "type", reflect.TypeOf(reg.instance))
	} else {
		c.logger.Debug("Registered service factory", "name", name)
	}
	return nil
}

// Registered reports whether name has a registration.
func (c *Composition) Registered(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.services[name]
	return ok
}

// Names returns registered service names in first-registration order.
func (c *Composition) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.serviceOrder)
}

// Collection returns the builder for the named ordered collection,
// creating it on first use.
func (c *Composition) Collection(name string) *CollectionBuilder {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.collections[name]; ok {
		return b
	}
	b := &CollectionBuilder{composition: c, name: name}
	c.collections[name] = b
	c.collectionOrder = append(c.collectionOrder, name)
	return b
}

// Components returns the builder for the component collection.
func (c *Composition) Components() *CollectionBuilder {
	return c.Collection(ComponentsCollection)
}

// Frozen reports whether Freeze was called.
func (c *Composition) Frozen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frozen
}

// Freeze seals the composition and builds the Factory. Every registration
// and collection item is constructed now, in registration order. When some
// fail to build the Factory is still returned, holding everything that
// did build, together with the joined errors.
func (c *Composition) Freeze() (*Factory, error) {
	c.mu.Lock()
	if c.frozen {
		c.mu.Unlock()
		return nil, ErrCompositionFrozen
	}
	c.frozen = true

	f := newFactory(c.logger)
	for _, name := range c.serviceOrder {
		f.defs[name] = c.services[name]
	}
	f.defOrder = slices.Clone(c.serviceOrder)
	for _, name := range c.collectionOrder {
		f.collectionDefs[name] = slices.Clone(c.collections[name].items)
	}
	f.collectionOrder = slices.Clone(c.collectionOrder)
	c.mu.Unlock()

	err := f.build()
	c.logger.Debug("Composition frozen", "services", len(f.defOrder), "collections", len(f.collectionOrder))
	return f, err
}

// CollectionBuilder edits one ordered collection of a Composition.
type CollectionBuilder struct {
	composition *Composition
	name        string
	items       []collectionItem
}

// Append adds item under itemName, or replaces an existing item of that
// name in place.
func (b *CollectionBuilder) Append(itemName string, item any) error {
	if isNil(item) {
		return fmt.Errorf("%w: %s item %q is nil", ErrInvalidRegistration, b.name, itemName)
	}
	return b.add(itemName, registration{instance: item})
}

// AppendFactory adds an item built when the composition is frozen.
func (b *CollectionBuilder) AppendFactory(itemName string, fn ServiceFactory) error {
	if fn == nil {
		return fmt.Errorf("%w: %s factory %q is nil", ErrInvalidRegistration, b.name, itemName)
	}
	return b.add(itemName, registration{factory: fn})
}

func (b *CollectionBuilder) add(itemName string, reg registration) error {
	if itemName == "" {
		return fmt.Errorf("%w: empty %s item name", ErrInvalidRegistration, b.name)
	}

	c := b.composition
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("%w: cannot append to %s", ErrCompositionFrozen, b.name)
	}
	for i, existing := range b.items {
		if existing.name == itemName {
			c.logger.Debug("Replacing collection item", "collection", b.name, "item", itemName)
			b.items[i].reg = reg
			return nil
		}
	}
	b.items = append(b.items, collectionItem{name: itemName, reg: reg})
	return nil
}

// Remove deletes the named item. Removing an absent item is not an error.
func (b *CollectionBuilder) Remove(itemName string) error {
	c := b.composition
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("%w: cannot remove from %s", ErrCompositionFrozen, b.name)
	}
	b.items = slices.DeleteFunc(b.items, func(i collectionItem) bool { return i.name == itemName })
	return nil
}

// Clear removes every item.
func (b *CollectionBuilder) Clear() error {
	c := b.composition
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen {
		return fmt.Errorf("%w: cannot clear %s", ErrCompositionFrozen, b.name)
	}
	b.items = nil
	return nil
}

// Names returns the item names in order.
func (b *CollectionBuilder) Names() []string {
	c := b.composition
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(b.items))
	for i, item := range b.items {
		names[i] = item.name
	}
	return names
}

package bootstrap

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
)

// Factory resolves the services and collections of a frozen Composition.
// Everything is constructed while freezing; afterwards the Factory is
// read-only and safe for concurrent use.
type Factory struct {
	logger Logger

	defs            map[string]registration
	defOrder        []string
	collectionDefs  map[string][]collectionItem
	collectionOrder []string

	services         map[string]any
	failures         map[string]error
	collections      map[string][]CollectionItem
	collectionErrors map[string]error
	resolving        []string
	sealed           bool
	degraded         atomic.Bool
}

// CollectionItem is one built item of a collection.
type CollectionItem struct {
	Name  string
	Value any
}

func newFactory(logger Logger) *Factory {
	return &Factory{
		logger:           logger,
		defs:             make(map[string]registration),
		collectionDefs:   make(map[string][]collectionItem),
		services:         make(map[string]any),
		failures:         make(map[string]error),
		collections:      make(map[string][]CollectionItem),
		collectionErrors: make(map[string]error),
	}
}

func (f *Factory) build() error {
	var errs []error
	for _, name := range f.defOrder {
		if _, err := f.resolve(name); err != nil {
			errs = append(errs, err)
		}
	}
	for _, name := range f.collectionOrder {
		if _, err := f.resolveCollection(name); err != nil {
			errs = append(errs, err)
		}
	}
	f.sealed = true
	f.resolving = nil
	return errors.Join(errs...)
}

func (f *Factory) resolve(name string) (any, error) {
	if svc, ok := f.services[name]; ok {
		return svc, nil
	}
	if err, ok := f.failures[name]; ok {
		return nil, err
	}
	def, ok := f.defs[name]
	if !ok || f.sealed {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	if slices.Contains(f.resolving, name) {
		path := append(slices.Clone(f.resolving), name)
		return nil, fmt.Errorf("%w: %s", ErrServiceCycle, strings.Join(path, " -> "))
	}

	f.resolving = append(f.resolving, name)
	svc, err := f.construct(name, def)
	f.resolving = f.resolving[:len(f.resolving)-1]

	if err != nil {
		f.failures[name] = err
		return nil, err
	}
	f.services[name] = svc
	return svc, nil
}

func (f *Factory) construct(name string, def registration) (svc any, err error) {
	if def.factory == nil {
		return def.instance, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrServiceBuildFailed, name, r)
		}
	}()
	svc, err = def.factory(f)
	if err != nil {
		if errors.Is(err, ErrServiceCycle) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrServiceBuildFailed, name, err)
	}
	if isNil(svc) {
		return nil, fmt.Errorf("%w: %s: factory returned nil", ErrServiceBuildFailed, name)
	}
	return svc, nil
}

func (f *Factory) buildCollection(name string, defs []collectionItem) ([]CollectionItem, error) {
	items := make([]CollectionItem, 0, len(defs))
	var errs []error
	for _, def := range defs {
		value, err := f.construct(name+"/"+def.name, def.reg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, CollectionItem{Name: def.name, Value: value})
	}
	return items, errors.Join(errs...)
}

// Resolve returns the service registered under name. While the Factory is
// being built, service factories use it to resolve their dependencies.
func (f *Factory) Resolve(name string) (any, error) {
	return f.resolve(name)
}

// GetService resolves name into target, which must be a non-nil pointer.
// The service is assigned when it implements the target interface, is
// assignable to the target type, or points to an assignable value; a struct
// target receives it in its first compatible interface field.
func (f *Factory) GetService(name string, target any) error {
	service, err := f.resolve(name)
	if err != nil {
		return err
	}

	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Ptr || targetValue.IsNil() {
		return ErrTargetNotPointer
	}
	if !targetValue.Elem().IsValid() {
		return ErrTargetValueInvalid
	}

	serviceType := reflect.TypeOf(service)
	targetType := targetValue.Elem().Type()

	switch {
	case targetType.Kind() == reflect.Interface && serviceType.Implements(targetType):
		targetValue.Elem().Set(reflect.ValueOf(service))
		return nil
	case serviceType.AssignableTo(targetType):
		targetValue.Elem().Set(reflect.ValueOf(service))
		return nil
	case serviceType.Kind() == reflect.Ptr && serviceType.Elem().AssignableTo(targetType):
		targetValue.Elem().Set(reflect.ValueOf(service).Elem())
		return nil
	}

	if targetType.Kind() == reflect.Struct {
		for i := 0; i < targetType.NumField(); i++ {
			field := targetType.Field(i)
			if field.Type.Kind() != reflect.Interface || !serviceType.Implements(field.Type) {
				continue
			}
			if fieldValue := targetValue.Elem().Field(i); fieldValue.CanSet() {
				fieldValue.Set(reflect.ValueOf(service))
				return nil
			}
		}
	}

	return fmt.Errorf("%w: service '%s' of type %s cannot be assigned to %s",
		ErrServiceIncompatible, name, serviceType, targetType)
}

// ResolveCollection returns the built items of the named collection in
// order. A collection nobody registered resolves to ErrCollectionNotFound.
// Items that failed to build are missing; Freeze reported them.
func (f *Factory) ResolveCollection(name string) ([]CollectionItem, error) {
	items, err := f.resolveCollection(name)
	if f.sealed && items != nil {
		return items, nil
	}
	return items, err
}

func (f *Factory) resolveCollection(name string) ([]CollectionItem, error) {
	if items, ok := f.collections[name]; ok {
		return slices.Clone(items), f.collectionErrors[name]
	}
	defs, ok := f.collectionDefs[name]
	if !ok || f.sealed {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	key := "collection:" + name
	if slices.Contains(f.resolving, key) {
		path := append(slices.Clone(f.resolving), key)
		return nil, fmt.Errorf("%w: %s", ErrServiceCycle, strings.Join(path, " -> "))
	}

	f.resolving = append(f.resolving, key)
	items, err := f.buildCollection(name, defs)
	f.resolving = f.resolving[:len(f.resolving)-1]

	f.collections[name] = items
	if err != nil {
		f.collectionErrors[name] = err
	}
	return slices.Clone(items), err
}

// Names returns the names of the services that were built.
func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.services))
	for _, name := range f.defOrder {
		if _, ok := f.services[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Degraded reports whether this Factory was installed after a boot failure
// and may lack services.
func (f *Factory) Degraded() bool {
	return f.degraded.Load()
}

func (f *Factory) markDegraded() {
	f.degraded.Store(true)
}

// ResolveAs resolves name and asserts it to T.
func ResolveAs[T any](f *Factory, name string) (T, error) {
	var zero T
	svc, err := f.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("%w: service '%s' of type %T is not %s",
			ErrServiceIncompatible, name, svc, reflect.TypeFor[T]())
	}
	return typed, nil
}

var currentFactory atomic.Pointer[Factory]

// CurrentFactory returns the Factory installed by the most recent boot, or
// nil before any boot. Prefer receiving the Factory from Boot or
// CoreRuntime.Factory; this accessor exists for code that cannot.
func CurrentFactory() *Factory {
	return currentFactory.Load()
}

func setCurrentFactory(f *Factory) {
	currentFactory.Store(f)
}

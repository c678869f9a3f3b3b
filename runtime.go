package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/GoCodeAlone/bootstrap/cache"
	"github.com/GoCodeAlone/bootstrap/config"
	"github.com/GoCodeAlone/bootstrap/lifecycle"
	"github.com/GoCodeAlone/bootstrap/maindom"
	"github.com/GoCodeAlone/bootstrap/profiling"
	"github.com/GoCodeAlone/bootstrap/typefinder"
)

// CoreRuntime boots and terminates the application.
type CoreRuntime struct {
	opts runtimeOptions

	// mu serializes Boot and Terminate. viewMu guards the fields read by
	// the accessors, so they do not wait for a boot in progress.
	mu          sync.Mutex
	viewMu      sync.RWMutex
	logger      Logger
	profiler    profiling.Profiler
	typeLoader  *typefinder.Registry
	typeFinder  *typefinder.TypeFinder
	settings    *config.Snapshot
	db          DatabaseFactory
	caches      *cache.AppCaches
	events      *lifecycle.Dispatcher
	state       *RuntimeState
	mainDom     *maindom.MainDom
	composition *Composition
	factory     *Factory
	components  *ComponentCollection
	booted      bool
	terminated  bool
}

// NewCoreRuntime creates a runtime. Nothing is constructed until Boot.
func NewCoreRuntime(opts ...Option) *CoreRuntime {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &CoreRuntime{opts: o}
}

// Boot composes and starts the application. target receives the
// registrations; nil uses a fresh Composition.
//
// Boot returns an error only when an essential service or one of the
// collaborators needed before the RuntimeState exists cannot be built;
// such errors wrap ErrPreconditionFailed. Every later failure is contained:
// the state moves to LevelBootFailed and Boot returns a degraded Factory,
// which is also installed as the current factory.
//
// Booting again terminates the previous attempt first.
func (r *CoreRuntime) Boot(ctx context.Context, target *Composition) (*Factory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.booted {
		r.logger.Info("Runtime already booted, terminating previous attempt")
		if err := r.terminate(ctx); err != nil {
			r.logger.Warn("Previous boot attempt did not terminate cleanly", "error", err)
		}
		r.reset()
	}

	logger := r.opts.newLogger()
	if isNil(logger) {
		return nil, missing(ServiceLogger)
	}
	profiler := r.opts.newProfiler(logger)
	if isNil(profiler) {
		return nil, missing(ServiceProfiler)
	}
	typeLoader := r.opts.newTypeLoader()
	if typeLoader == nil {
		return nil, missing(ServiceTypeLoader)
	}
	r.publish(func() { r.logger, r.profiler, r.typeLoader = logger, profiler, typeLoader })

	ctx, scope := r.begin(ctx, "boot")
	defer scope.End()

	ObserveUncaughtPanics(logger)

	if err := r.buildCollaborators(); err != nil {
		scope.Fail(err)
		return nil, err
	}

	state := NewRuntimeState(r.settings, logger)
	r.publish(func() { r.state = state })
	r.booted = true
	logger.Info("Booting runtime", "version", r.state.CodeVersion())
	r.events.Emit(ctx, lifecycle.EventTypeBootStarted, map[string]any{"version": r.state.CodeVersion()})

	if err := r.contain(func() error { return r.boot(ctx, target) }); err != nil {
		scope.Fail(err)
		r.state.fail(ReasonBootFailedOnException, err)
		logger.Error("Boot failed", "level", r.state.Level(), "reason", r.state.Reason(), "error", err)
		r.events.Emit(ctx, lifecycle.EventTypeBootFailed, map[string]any{
			"reason": r.state.Reason().String(),
			"error":  err.Error(),
		})
		return r.installDegradedFactory(), nil
	}

	logger.Info("Boot completed", "level", r.state.Level(), "reason", r.state.Reason(),
		"mainDom", r.mainDom.IsMainDom())
	r.events.Emit(ctx, lifecycle.EventTypeBootCompleted, map[string]any{
		"level":  r.state.Level().String(),
		"reason": r.state.Reason().String(),
	})
	return r.factory, nil
}

func missing(service string) error {
	return fmt.Errorf("%w: %w: %s", ErrPreconditionFailed, ErrEssentialServiceMissing, service)
}

// buildCollaborators constructs the settings, caches, database factory,
// type finder and event dispatcher.
func (r *CoreRuntime) buildCollaborators() error {
	settings, err := r.opts.loadSettings()
	if err != nil {
		return fmt.Errorf("%w: settings: %w", ErrPreconditionFailed, err)
	}
	if settings == nil {
		return missing(ServiceSettings)
	}
	caches, err := r.opts.newCaches(settings, r.logger)
	if err != nil {
		return fmt.Errorf("%w: app caches: %w", ErrPreconditionFailed, err)
	}
	if caches == nil {
		return missing(ServiceAppCaches)
	}
	db := r.opts.newDatabase(settings, r.logger)
	if isNil(db) {
		return missing(ServiceDatabaseFactory)
	}

	events := lifecycle.NewDispatcher(r.opts.eventSource, r.logger)
	for _, reg := range r.opts.observers {
		if err := events.Register(reg.observer, reg.eventTypes...); err != nil {
			return fmt.Errorf("%w: lifecycle observer: %w", ErrPreconditionFailed, err)
		}
	}

	r.settings, r.caches, r.db, r.events = settings, caches, db, events
	finder := typefinder.New(r.typeLoader, settings.Runtime().TempPath, r.logger)
	r.publish(func() { r.typeFinder = finder })
	return nil
}

// contain runs fn and converts a panic into an error. It is the single
// place boot failures are caught.
func (r *CoreRuntime) contain(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Boot panicked", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrBootPanic, p)
		}
	}()
	return fn()
}

func (r *CoreRuntime) boot(ctx context.Context, target *Composition) error {
	lock, err := r.opts.newLock(r.settings, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create maindom lock: %w", err)
	}
	registrar, err := r.serverRegistrar()
	if err != nil {
		return err
	}
	md := maindom.New(lock, registrar, r.logger)
	r.publish(func() { r.mainDom = md })

	if err := r.caches.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect app caches: %w", err)
	}

	composition := target
	if composition == nil {
		composition = NewComposition(r.logger)
	}
	r.composition = composition
	if err := r.registerEssentials(composition); err != nil {
		return err
	}

	if r.opts.composeHook != nil {
		if err := r.opts.composeHook(composition); err != nil {
			return fmt.Errorf("compose hook: %w", err)
		}
	}

	if err := r.step(ctx, "boot.maindom", r.acquireMainDom); err != nil {
		return err
	}

	if err := r.step(ctx, "boot.level", func(ctx context.Context) error {
		return r.state.DetermineLevel(ctx, r.db)
	}); err != nil {
		return err
	}
	r.events.Emit(ctx, lifecycle.EventTypeLevelDetermined, map[string]any{
		"level":  r.state.Level().String(),
		"reason": r.state.Reason().String(),
	})

	if err := r.step(ctx, "boot.composers", func(context.Context) error {
		composers, err := discoverComposers(r.typeFinder, r.state, r.logger)
		if err != nil {
			return err
		}
		ordered, err := orderComposers(composers, r.logger)
		if err != nil {
			return err
		}
		return runComposers(ordered, composition, r.logger)
	}); err != nil {
		return err
	}

	if err := r.step(ctx, "boot.freeze", func(context.Context) error {
		factory, err := composition.Freeze()
		if factory != nil {
			r.installFactory(factory)
		}
		return err
	}); err != nil {
		return err
	}

	return r.step(ctx, "boot.components", func(ctx context.Context) error {
		components, err := NewComponentCollection(r.factory, r.logger)
		if err != nil {
			return err
		}
		r.publish(func() { r.components = components })
		return components.Initialize(ctx)
	})
}

// step runs fn inside a profiling scope that is marked failed on error or
// panic. Panics continue to the outer containment.
func (r *CoreRuntime) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, scope := r.begin(ctx, name)
	defer scope.End()
	defer func() {
		if p := recover(); p != nil {
			scope.Fail(fmt.Errorf("%w: %v", ErrBootPanic, p))
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		scope.Fail(err)
		return err
	}
	return nil
}

func (r *CoreRuntime) serverRegistrar() (maindom.ServerRegistrar, error) {
	if r.opts.registrar != nil {
		return r.opts.registrar, nil
	}
	role, err := maindom.ParseRole(r.settings.Runtime().ServerRole)
	if err != nil {
		return nil, err
	}
	return maindom.StaticRegistrar(role), nil
}

func (r *CoreRuntime) registerEssentials(c *Composition) error {
	essentials := []struct {
		name    string
		service any
	}{
		{ServiceLogger, r.logger},
		{ServiceProfiler, r.profiler},
		{ServiceTypeLoader, r.typeLoader},
		{ServiceTypeFinder, r.typeFinder},
		{ServiceAppCaches, r.caches},
		{ServiceDatabaseFactory, r.db},
		{ServiceSettings, r.settings},
		{ServiceRuntimeState, r.state},
		{ServiceMainDom, r.mainDom},
		{ServiceLifecycleEvents, r.events},
	}
	for _, e := range essentials {
		if isNil(e.service) {
			r.logger.Debug("Essential service unavailable, not registered", "name", e.name)
			continue
		}
		if err := c.Register(e.name, e.service); err != nil {
			return err
		}
	}
	return nil
}

func (r *CoreRuntime) mainDomTimeout() time.Duration {
	if r.opts.mainDomTimeout > 0 {
		return r.opts.mainDomTimeout
	}
	if t := r.settings.MainDom().Timeout; t > 0 {
		return t
	}
	return maindom.DefaultTimeout
}

func (r *CoreRuntime) acquireMainDom(ctx context.Context) error {
	timeout := r.mainDomTimeout()
	acquired, err := r.mainDom.Acquire(ctx, timeout)
	if err != nil {
		return err
	}

	switch {
	case acquired:
		r.events.Emit(ctx, lifecycle.EventTypeMainDomAcquired, nil)
		events := r.events
		r.mainDom.OnHandoffRequested(func() {
			events.Emit(context.Background(), lifecycle.EventTypeMainDomReleased, nil)
		})
	case !r.mainDom.ExclusivityRequired():
		r.logger.Info("Booting as non-main instance, exclusivity not required")
	case r.opts.tolerateNonMain:
		r.logger.Warn("Booting as non-main instance, MainDom held elsewhere", "timeout", timeout)
	default:
		return fmt.Errorf("%w within %s", ErrMainDomNotAcquired, timeout)
	}
	return nil
}

func (r *CoreRuntime) installFactory(f *Factory) {
	r.publish(func() { r.factory = f })
	setCurrentFactory(f)
}

// installDegradedFactory makes sure a Factory is current after a boot
// failure. It reuses whatever the failed boot produced.
func (r *CoreRuntime) installDegradedFactory() (f *Factory) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Degraded factory construction panicked", "panic", p)
			f = r.essentialFactory()
		}
		f.markDegraded()
		r.installFactory(f)
		r.logger.Warn("Installed degraded factory", "services", f.Names())
	}()

	switch {
	case r.factory != nil:
		return r.factory
	case r.composition != nil && !r.composition.Frozen():
		factory, err := r.composition.Freeze()
		if err != nil {
			r.logger.Warn("Degraded factory is missing services", "error", err)
		}
		if factory != nil {
			return factory
		}
	}
	return r.essentialFactory()
}

// essentialFactory freezes a composition holding only the essential
// services.
func (r *CoreRuntime) essentialFactory() *Factory {
	c := NewComposition(r.logger)
	if err := r.registerEssentials(c); err != nil {
		r.logger.Debug("Essential services incomplete", "error", err)
	}
	f, _ := c.Freeze()
	return f
}

// Terminate terminates the components, releases MainDom and closes the
// collaborators. It is a no-op before Boot and after the first call.
func (r *CoreRuntime) Terminate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminate(ctx)
}

func (r *CoreRuntime) terminate(ctx context.Context) error {
	if !r.booted || r.terminated {
		return nil
	}
	r.terminated = true

	ctx, scope := r.begin(ctx, "terminate")
	defer scope.End()

	var errs []error
	if r.components != nil {
		if err := r.components.Terminate(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.mainDom != nil {
		if err := r.mainDom.Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.caches.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close app caches: %w", err))
	}
	if closer, ok := r.db.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		scope.Fail(err)
		r.logger.Error("Runtime terminated with errors", "error", err)
	} else {
		r.logger.Info("Runtime terminated")
	}
	r.events.Emit(ctx, lifecycle.EventTypeTerminated, nil)
	return err
}

// publish updates fields read by the accessors.
func (r *CoreRuntime) publish(fn func()) {
	r.viewMu.Lock()
	defer r.viewMu.Unlock()
	fn()
}

func (r *CoreRuntime) reset() {
	r.publish(func() {
		r.state, r.mainDom, r.composition, r.factory, r.components = nil, nil, nil, nil, nil
	})
	r.booted, r.terminated = false, false
}

// State returns the state of the current boot attempt, or nil before Boot
// created one.
func (r *CoreRuntime) State() *RuntimeState {
	r.viewMu.RLock()
	defer r.viewMu.RUnlock()
	return r.state
}

// Factory returns the Factory of the current boot attempt.
func (r *CoreRuntime) Factory() *Factory {
	r.viewMu.RLock()
	defer r.viewMu.RUnlock()
	return r.factory
}

// MainDom returns the main instance lock of the current boot attempt.
func (r *CoreRuntime) MainDom() *maindom.MainDom {
	r.viewMu.RLock()
	defer r.viewMu.RUnlock()
	return r.mainDom
}

// Components returns the initialized component collection, if boot got
// that far.
func (r *CoreRuntime) Components() *ComponentCollection {
	r.viewMu.RLock()
	defer r.viewMu.RUnlock()
	return r.components
}

// ComposerOrder returns the composers this runtime would run against the
// current state, in order.
func (r *CoreRuntime) ComposerOrder() ([]string, error) {
	r.viewMu.RLock()
	defer r.viewMu.RUnlock()
	if r.typeFinder == nil || r.state == nil {
		return nil, nil
	}
	return ComposerNames(r.typeFinder, r.state, r.logger)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

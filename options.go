package bootstrap

import (
	"time"

	"github.com/GoCodeAlone/bootstrap/cache"
	"github.com/GoCodeAlone/bootstrap/config"
	"github.com/GoCodeAlone/bootstrap/database"
	"github.com/GoCodeAlone/bootstrap/feeders"
	"github.com/GoCodeAlone/bootstrap/lifecycle"
	"github.com/GoCodeAlone/bootstrap/maindom"
	"github.com/GoCodeAlone/bootstrap/profiling"
	"github.com/GoCodeAlone/bootstrap/typefinder"
)

// EnvPrefix prefixes the environment variables read by the default
// settings loader, e.g. BOOT_MAINDOM_LOCK.
const EnvPrefix = "BOOT"

// Option configures a CoreRuntime.
type Option func(*runtimeOptions)

type observerRegistration struct {
	observer   lifecycle.Observer
	eventTypes []string
}

type runtimeOptions struct {
	newLogger       func() Logger
	newProfiler     func(Logger) profiling.Profiler
	newTypeLoader   func() *typefinder.Registry
	loadSettings    func() (*config.Snapshot, error)
	newDatabase     func(*config.Snapshot, Logger) DatabaseFactory
	newCaches       func(*config.Snapshot, Logger) (*cache.AppCaches, error)
	newLock         func(*config.Snapshot, Logger) (maindom.Lock, error)
	registrar       maindom.ServerRegistrar
	composeHook     func(*Composition) error
	mainDomTimeout  time.Duration
	tolerateNonMain bool
	observers       []observerRegistration
	eventSource     string
}

func defaultOptions() runtimeOptions {
	return runtimeOptions{
		newLogger: func() Logger { return NewLogrusLogger(nil) },
		newProfiler: func(logger Logger) profiling.Profiler {
			return profiling.NewOtelProfiler(logger)
		},
		newTypeLoader: func() *typefinder.Registry { return typefinder.Default },
		loadSettings: func() (*config.Snapshot, error) {
			return config.Load(feeders.NewEnvFeeder(EnvPrefix))
		},
		newDatabase: func(settings *config.Snapshot, logger Logger) DatabaseFactory {
			return database.NewFactory(settings.Database(), logger)
		},
		newCaches: func(settings *config.Snapshot, logger Logger) (*cache.AppCaches, error) {
			return cache.New(settings.Cache(), logger)
		},
		newLock: func(settings *config.Snapshot, logger Logger) (maindom.Lock, error) {
			md := settings.MainDom()
			return maindom.NewLock(maindom.BackendConfig{
				Kind:      md.Lock,
				Name:      md.Name,
				Directory: md.Directory,
				RedisURL:  md.RedisURL,
				LeaseTTL:  md.LeaseTTL,
			}, logger)
		},
		eventSource: "bootstrap/runtime",
	}
}

// WithLogger sets the logger constructor. A constructor returning nil makes
// Boot fail its precondition check.
func WithLogger(fn func() Logger) Option {
	return func(o *runtimeOptions) { o.newLogger = fn }
}

// WithProfiler sets the profiler constructor.
func WithProfiler(fn func(Logger) profiling.Profiler) Option {
	return func(o *runtimeOptions) { o.newProfiler = fn }
}

// WithTypeLoader sets the registry composers are discovered from.
func WithTypeLoader(fn func() *typefinder.Registry) Option {
	return func(o *runtimeOptions) { o.newTypeLoader = fn }
}

// WithSettings boots with a fixed configuration snapshot instead of
// loading one from the environment.
func WithSettings(settings *config.Snapshot) Option {
	return func(o *runtimeOptions) {
		o.loadSettings = func() (*config.Snapshot, error) { return settings, nil }
	}
}

// WithSettingsLoader loads the configuration snapshot with fn.
func WithSettingsLoader(fn func() (*config.Snapshot, error)) Option {
	return func(o *runtimeOptions) { o.loadSettings = fn }
}

// WithDatabaseFactory sets the database connectivity constructor.
func WithDatabaseFactory(fn func(*config.Snapshot, Logger) DatabaseFactory) Option {
	return func(o *runtimeOptions) { o.newDatabase = fn }
}

// WithAppCaches sets the application caches constructor.
func WithAppCaches(fn func(*config.Snapshot, Logger) (*cache.AppCaches, error)) Option {
	return func(o *runtimeOptions) { o.newCaches = fn }
}

// WithMainDomLock sets the MainDom lock backend constructor.
func WithMainDomLock(fn func(*config.Snapshot, Logger) (maindom.Lock, error)) Option {
	return func(o *runtimeOptions) { o.newLock = fn }
}

// WithServerRegistrar overrides the role read from runtime.serverRole.
func WithServerRegistrar(r maindom.ServerRegistrar) Option {
	return func(o *runtimeOptions) { o.registrar = r }
}

// WithComposeHook registers fn to run against the Composition after the
// essential services are registered and before MainDom is acquired.
func WithComposeHook(fn func(*Composition) error) Option {
	return func(o *runtimeOptions) { o.composeHook = fn }
}

// WithMainDomTimeout overrides maindom.timeout.
func WithMainDomTimeout(d time.Duration) Option {
	return func(o *runtimeOptions) { o.mainDomTimeout = d }
}

// WithNonMainTolerated lets boot continue as a non-main instance when
// another instance keeps MainDom. Acquisition errors still fail boot.
func WithNonMainTolerated() Option {
	return func(o *runtimeOptions) { o.tolerateNonMain = true }
}

// WithObserver registers a lifecycle observer for eventTypes, or for every
// event when none are given.
func WithObserver(observer lifecycle.Observer, eventTypes ...string) Option {
	return func(o *runtimeOptions) {
		o.observers = append(o.observers, observerRegistration{observer: observer, eventTypes: eventTypes})
	}
}

// WithEventSource sets the CloudEvents source of lifecycle events.
func WithEventSource(source string) Option {
	return func(o *runtimeOptions) { o.eventSource = source }
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoCodeAlone/bootstrap/config"
)

// AppCaches groups the caches available to composers and components.
type AppCaches struct {
	// Runtime is the process-wide cache, backed by the configured engine.
	Runtime Engine
	// Request holds entries scoped to one unit of work; it is always in
	// memory and is flushed by its owner.
	Request Engine

	settings config.CacheSettings
	logger   Logger

	mu       sync.Mutex
	isolated map[string]*MemoryCache
}

// New builds the caches described by settings. Engines are not connected
// until Connect.
func New(settings config.CacheSettings, logger Logger) (*AppCaches, error) {
	var runtime Engine
	switch settings.Engine {
	case "", "memory":
		runtime = NewMemoryCache(settings.MaxItems, settings.CleanupInterval)
	case "redis":
		rc, err := NewRedisCache(settings.RedisURL, "bootstrap", logger)
		if err != nil {
			return nil, err
		}
		runtime = rc
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, settings.Engine)
	}

	return &AppCaches{
		Runtime:  runtime,
		Request:  NewMemoryCache(0, 0),
		settings: settings,
		logger:   logger,
		isolated: make(map[string]*MemoryCache),
	}, nil
}

// Isolated returns the in-memory cache dedicated to name, creating it on
// first use.
func (a *AppCaches) Isolated(name string) Engine {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.isolated[name]; ok {
		return c
	}
	c := NewMemoryCache(a.settings.MaxItems, 0)
	a.isolated[name] = c
	return c
}

// Connect connects the runtime engine.
func (a *AppCaches) Connect(ctx context.Context) error {
	if err := a.Runtime.Connect(ctx); err != nil {
		return err
	}
	a.logger.Debug("Application caches connected", "engine", a.settings.Engine)
	return nil
}

// Close closes every engine.
func (a *AppCaches) Close(ctx context.Context) error {
	errs := []error{a.Runtime.Close(ctx), a.Request.Close(ctx)}
	a.mu.Lock()
	for _, c := range a.isolated {
		errs = append(errs, c.Close(ctx))
	}
	a.mu.Unlock()
	return errors.Join(errs...)
}

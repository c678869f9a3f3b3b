// Package cache provides the application caches created before level
// determination: a runtime cache shared across the process, a request
// cache that never expires entries on its own, and isolated caches keyed
// by name.
package cache

import (
	"context"
	"errors"
	"time"
)

// Static errors for cache package
var (
	ErrCacheFull       = errors.New("cache is full")
	ErrNotConnected    = errors.New("cache engine not connected")
	ErrUnknownEngine   = errors.New("unknown cache engine")
	ErrInvalidRedisURL = errors.New("invalid cache redis url")
	ErrEncodeValue     = errors.New("failed to encode cache value")
)

// Logger is the subset of the runtime logger used by caches.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Engine is a key-value cache backend.
type Engine interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Get(ctx context.Context, key string) (any, bool)
	// Set stores value. A ttl of zero keeps the entry until deleted.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}

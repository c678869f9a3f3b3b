package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Engine.
type MemoryCache struct {
	maxItems        int
	cleanupInterval time.Duration

	mu     sync.RWMutex
	items  map[string]memoryEntry
	cancel context.CancelFunc
}

type memoryEntry struct {
	value     any
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache creates a memory engine. maxItems of zero is unbounded;
// a cleanupInterval of zero disables background expiry.
func NewMemoryCache(maxItems int, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		maxItems:        maxItems,
		cleanupInterval: cleanupInterval,
		items:           make(map[string]memoryEntry),
	}
}

// Connect starts background expiry.
func (c *MemoryCache) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil || c.cleanupInterval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.expireLoop(ctx)
	return nil
}

// Close stops background expiry.
func (c *MemoryCache) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return nil
}

// Get implements Engine.
func (c *MemoryCache) Get(_ context.Context, key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.items[key]
	if !ok || entry.expired(time.Now()) {
		return nil, false
	}
	return entry.value, true
}

// Set implements Engine. A full cache first drops expired entries and
// rejects the write only if that frees nothing.
func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.removeExpiredLocked(time.Now())
		if len(c.items) >= c.maxItems {
			return ErrCacheFull
		}
	}

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.items[key] = entry
	return nil
}

// Delete implements Engine.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// Flush implements Engine.
func (c *MemoryCache) Flush(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]memoryEntry)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) expireLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			c.removeExpiredLocked(now)
			c.mu.Unlock()
		}
	}
}

func (c *MemoryCache) removeExpiredLocked(now time.Time) {
	for key, entry := range c.items {
		if entry.expired(now) {
			delete(c.items, key)
		}
	}
}

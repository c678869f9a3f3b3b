package maindom

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BackendConfig selects and configures a Lock backend.
type BackendConfig struct {
	Kind      string
	Name      string
	Directory string
	RedisURL  string
	LeaseTTL  time.Duration
}

// NewLock builds the configured backend: local, file or redis.
func NewLock(cfg BackendConfig, logger Logger) (Lock, error) {
	switch cfg.Kind {
	case "local":
		return NewLocalLock(cfg.Name), nil
	case "", "file":
		return NewFileLock(cfg.Directory, cfg.Name, logger), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid maindom redis url: %w", err)
		}
		return NewRedisLock(redis.NewClient(opts), cfg.Name, cfg.LeaseTTL, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Kind)
	}
}

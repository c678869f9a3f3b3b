package maindom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLeaseTTL is the lifetime of a redis lease between refreshes.
const DefaultLeaseTTL = 30 * time.Second

var (
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RedisLock is a lease held in redis, shared by instances on different
// hosts. The holder refreshes the lease every third of its TTL, so a
// crashed holder loses the lock once the lease expires. A holder whose
// lease was taken over, or could not be refreshed for a whole TTL, reports
// the loss through Lost. Handoff requests travel over a pub/sub channel.
type RedisLock struct {
	client       redis.UniversalClient
	key          string
	channel      string
	owner        string
	ttl          time.Duration
	pollInterval time.Duration
	logger       Logger

	mu            sync.Mutex
	held          bool
	lost          chan struct{}
	stopRefresh   context.CancelFunc
	refreshFinish chan struct{}
}

// NewRedisLock creates a lease named name. A ttl of zero uses DefaultLeaseTTL.
func NewRedisLock(client redis.UniversalClient, name string, ttl time.Duration, logger Logger) *RedisLock {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisLock{
		client:       client,
		key:          "maindom:" + name,
		channel:      "maindom:" + name + ":release",
		owner:        uuid.NewString(),
		ttl:          ttl,
		pollInterval: defaultPollInterval,
		logger:       logger,
	}
}

// Owner returns the value stored in the lease key while this lock holds it.
func (l *RedisLock) Owner() string { return l.owner }

// Acquire implements Lock.
func (l *RedisLock) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	l.mu.Lock()
	if l.held {
		l.mu.Unlock()
		return false, ErrAlreadyHeld
	}
	l.mu.Unlock()

	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("failed to set lease %s: %w", l.key, err)
		}
		if ok {
			l.startRefresh()
			return true, nil
		}

		// Published on every poll: the holder may not be subscribed yet.
		if err := l.client.Publish(ctx, l.channel, l.owner).Err(); err != nil {
			l.logger.Warn("Failed to request MainDom handoff", "channel", l.channel, "error", err)
		}

		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := wait(ctx, l.pollInterval); err != nil {
			return false, err
		}
	}
}

func (l *RedisLock) startRefresh() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lost := make(chan struct{})

	l.mu.Lock()
	l.held = true
	l.lost = lost
	l.stopRefresh = cancel
	l.refreshFinish = done
	l.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		refreshed := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				extended, err := extendScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int()
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					if time.Since(refreshed) < l.ttl {
						l.logger.Warn("Failed to refresh MainDom lease", "key", l.key, "error", err)
						continue
					}
					l.logger.Error("MainDom lease expired, refresh kept failing", "key", l.key, "error", err)
					close(lost)
					return
				}
				if extended == 0 {
					l.logger.Error("MainDom lease lost", "key", l.key)
					close(lost)
					return
				}
				refreshed = time.Now()
			}
		}
	}()
}

// Lost implements LossReporter. The channel belongs to the current
// acquisition and is nil before the first one.
func (l *RedisLock) Lost() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lost
}

// ListenForRelease implements Lock.
func (l *RedisLock) ListenForRelease(ctx context.Context) (<-chan struct{}, error) {
	pubsub := l.client.Subscribe(ctx, l.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", l.channel, err)
	}

	requests := make(chan struct{}, 1)
	messages := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if msg.Payload != l.owner {
					signal(requests)
				}
			}
		}
	}()
	return requests, nil
}

// Release implements Lock. Only the owner's lease is deleted.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.mu.Unlock()
		return ErrNotHeld
	}
	l.held = false
	stop, done := l.stopRefresh, l.refreshFinish
	l.mu.Unlock()

	stop()
	<-done

	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}
	return nil
}

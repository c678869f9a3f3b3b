// Package maindom implements the main instance lock. At most one process
// sharing a lock scope holds MainDom at a time; it alone performs singleton
// duties such as scheduled jobs. A newly started instance asks the current
// holder to hand off, and the holder runs its release callbacks before
// letting go of the lock.
package maindom

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTimeout bounds how long Acquire waits for a handoff.
const DefaultTimeout = 5 * time.Second

// Static errors for maindom package
var (
	ErrLockNil        = errors.New("maindom lock is nil")
	ErrAcquireFailed  = errors.New("maindom lock acquisition failed")
	ErrAlreadyHeld    = errors.New("maindom lock already held by this instance")
	ErrNotHeld        = errors.New("maindom lock not held")
	ErrReleaseFailed  = errors.New("maindom lock release failed")
	ErrUnknownRole    = errors.New("unknown server role")
	ErrUnknownBackend = errors.New("unknown maindom lock backend")
)

// Logger is the subset of the runtime logger used by maindom.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Lock is a process-exclusive lock backend.
type Lock interface {
	// Acquire tries to take the lock, asking a current holder to hand off,
	// and waits at most timeout. It returns false with a nil error when the
	// holder did not let go in time.
	Acquire(ctx context.Context, timeout time.Duration) (bool, error)

	// ListenForRelease returns a channel that receives whenever another
	// instance asks for the lock. Listening stops when ctx is cancelled.
	ListenForRelease(ctx context.Context) (<-chan struct{}, error)

	// Release gives up the lock.
	Release(ctx context.Context) error
}

// LossReporter is implemented by backends that can lose the lock without
// releasing it, such as an expired lease. The channel is closed on loss.
type LossReporter interface {
	Lost() <-chan struct{}
}

// MainDom is the leader lock for one process.
type MainDom struct {
	lock      Lock
	registrar ServerRegistrar
	logger    Logger

	mu          sync.Mutex
	acquired    bool
	exclusive   bool
	callbacks   []func()
	stopListen  context.CancelFunc
	handedOff   chan struct{}
	handoffOnce sync.Once
}

// New creates a MainDom over lock. registrar may be nil, in which case
// exclusivity is always required.
func New(lock Lock, registrar ServerRegistrar, logger Logger) *MainDom {
	return &MainDom{
		lock:      lock,
		registrar: registrar,
		logger:    logger,
		exclusive: true,
		handedOff: make(chan struct{}),
	}
}

// Acquire takes the lock within timeout. A false result with a nil error
// means another instance kept it, or that this server's role does not take
// part in main instance election; ExclusivityRequired tells them apart.
func (m *MainDom) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	if m.registrar != nil && m.registrar.Role() == RoleSubscriber {
		m.mu.Lock()
		m.exclusive = false
		m.mu.Unlock()
		m.logger.Info("Server role does not require MainDom, skipping lock", "role", RoleSubscriber)
		return false, nil
	}
	if m.lock == nil {
		return false, ErrLockNil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	m.mu.Lock()
	if m.acquired {
		m.mu.Unlock()
		return false, ErrAlreadyHeld
	}
	m.mu.Unlock()

	m.logger.Debug("Acquiring MainDom", "timeout", timeout)
	ok, err := m.lock.Acquire(ctx, timeout)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrAcquireFailed, err)
	}
	if !ok {
		m.logger.Warn("MainDom not acquired, another instance holds the lock", "timeout", timeout)
		return false, nil
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.acquired = true
	m.stopListen = cancel
	m.mu.Unlock()

	var lost <-chan struct{}
	if reporter, ok := m.lock.(LossReporter); ok {
		lost = reporter.Lost()
	}
	requests, err := m.lock.ListenForRelease(listenCtx)
	if err != nil {
		m.logger.Warn("MainDom cannot listen for handoff requests", "error", err)
		requests = nil
	}
	if requests != nil || lost != nil {
		go m.awaitHandoff(listenCtx, requests, lost)
	}

	m.logger.Info("MainDom acquired")
	return true, nil
}

// awaitHandoff releases the lock once another instance asks for it or the
// backend reports it lost. Either way this process stops being MainDom.
func (m *MainDom) awaitHandoff(ctx context.Context, requests, lost <-chan struct{}) {
	for waiting := true; waiting; {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-requests:
			if !ok {
				requests = nil
				if lost == nil {
					return
				}
				continue
			}
			m.logger.Info("MainDom handoff requested by another instance")
			waiting = false
		case <-lost:
			m.logger.Error("MainDom lock lost, releasing")
			waiting = false
		}
	}

	if err := m.Release(context.Background()); err != nil {
		m.logger.Error("MainDom handoff release failed", "error", err)
	}
	m.handoffOnce.Do(func() { close(m.handedOff) })
}

// OnHandoffRequested registers fn to run before the lock is released,
// either because another instance asked for it or because the runtime is
// terminating. Callbacks run once, in registration order.
func (m *MainDom) OnHandoffRequested(fn func()) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// HandedOff is closed once the lock was given up to another instance, or
// lost by the backend.
func (m *MainDom) HandedOff() <-chan struct{} {
	return m.handedOff
}

// IsMainDom reports whether this process currently holds the lock.
func (m *MainDom) IsMainDom() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired
}

// ExclusivityRequired reports whether this server takes part in main
// instance election.
func (m *MainDom) ExclusivityRequired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exclusive
}

// Release runs the registered callbacks and gives up the lock. It is a
// no-op when the lock is not held, so it is safe to call more than once.
func (m *MainDom) Release(ctx context.Context) error {
	m.mu.Lock()
	if !m.acquired {
		m.mu.Unlock()
		return nil
	}
	m.acquired = false
	callbacks := m.callbacks
	m.callbacks = nil
	if m.stopListen != nil {
		m.stopListen()
	}
	m.mu.Unlock()

	for _, fn := range callbacks {
		m.runCallback(fn)
	}

	if err := m.lock.Release(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrReleaseFailed, err)
	}
	m.logger.Info("MainDom released")
	return nil
}

func (m *MainDom) runCallback(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("MainDom release callback panicked", "panic", r)
		}
	}()
	fn()
}

// signal performs a non-blocking send so repeated requests coalesce.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// wait sleeps for d, returning early with the context error.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package maindom

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultPollInterval = 100 * time.Millisecond

type localHolder struct {
	owner   string
	release chan struct{}
}

// localScopes holds the in-process lock table shared by LocalLocks.
var localScopes = struct {
	mu      sync.Mutex
	holders map[string]*localHolder
}{holders: make(map[string]*localHolder)}

// LocalLock is an in-process lock keyed by name. It coordinates runtimes
// hosted in the same process, mostly in tests.
type LocalLock struct {
	name         string
	owner        string
	pollInterval time.Duration
}

// NewLocalLock creates a lock for the named scope.
func NewLocalLock(name string) *LocalLock {
	return &LocalLock{
		name:         name,
		owner:        uuid.NewString(),
		pollInterval: defaultPollInterval / 10,
	}
}

// Acquire implements Lock.
func (l *LocalLock) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		localScopes.mu.Lock()
		holder, held := localScopes.holders[l.name]
		switch {
		case !held:
			localScopes.holders[l.name] = &localHolder{owner: l.owner, release: make(chan struct{}, 1)}
			localScopes.mu.Unlock()
			return true, nil
		case holder.owner == l.owner:
			localScopes.mu.Unlock()
			return false, ErrAlreadyHeld
		default:
			signal(holder.release)
		}
		localScopes.mu.Unlock()

		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := wait(ctx, l.pollInterval); err != nil {
			return false, err
		}
	}
}

// ListenForRelease implements Lock.
func (l *LocalLock) ListenForRelease(_ context.Context) (<-chan struct{}, error) {
	localScopes.mu.Lock()
	defer localScopes.mu.Unlock()
	holder, held := localScopes.holders[l.name]
	if !held || holder.owner != l.owner {
		return nil, ErrNotHeld
	}
	return holder.release, nil
}

// Release implements Lock.
func (l *LocalLock) Release(_ context.Context) error {
	localScopes.mu.Lock()
	defer localScopes.mu.Unlock()
	holder, held := localScopes.holders[l.name]
	if !held || holder.owner != l.owner {
		return ErrNotHeld
	}
	delete(localScopes.holders, l.name)
	return nil
}

package maindom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// FileLock holds an OS file lock on <dir>/<name>.lock. Another instance
// requests a handoff by writing <dir>/<name>.release, which the holder
// watches for.
type FileLock struct {
	dir          string
	lockPath     string
	releasePath  string
	owner        string
	pollInterval time.Duration
	logger       Logger
	flock        *flock.Flock
}

// NewFileLock creates a file lock in dir.
func NewFileLock(dir, name string, logger Logger) *FileLock {
	lockPath := filepath.Join(dir, name+".lock")
	return &FileLock{
		dir:          dir,
		lockPath:     lockPath,
		releasePath:  filepath.Join(dir, name+".release"),
		owner:        uuid.NewString(),
		pollInterval: defaultPollInterval,
		logger:       logger,
		flock:        flock.New(lockPath),
	}
}

// Acquire implements Lock.
func (l *FileLock) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	if l.flock.Locked() {
		return false, ErrAlreadyHeld
	}
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return false, fmt.Errorf("failed to create lock directory %s: %w", l.dir, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.flock.TryLock()
		if err != nil {
			return false, fmt.Errorf("failed to lock %s: %w", l.lockPath, err)
		}
		if ok {
			l.clearRequest()
			return true, nil
		}

		// Rewritten on every poll: the holder may not be watching yet.
		if err := os.WriteFile(l.releasePath, []byte(l.owner), 0o600); err != nil {
			l.logger.Warn("Failed to request MainDom handoff", "path", l.releasePath, "error", err)
		}

		if !time.Now().Before(deadline) {
			l.clearRequest()
			return false, nil
		}
		if err := wait(ctx, l.pollInterval); err != nil {
			l.clearRequest()
			return false, err
		}
	}
}

func (l *FileLock) clearRequest() {
	if err := os.Remove(l.releasePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to remove MainDom release request", "path", l.releasePath, "error", err)
	}
}

// ListenForRelease implements Lock by watching the lock directory for the
// release request file.
func (l *FileLock) ListenForRelease(ctx context.Context) (<-chan struct{}, error) {
	if !l.flock.Locked() {
		return nil, ErrNotHeld
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}

	requests := make(chan struct{}, 1)
	if _, err := os.Stat(l.releasePath); err == nil {
		signal(requests)
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(l.releasePath) {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					signal(requests)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("MainDom release watcher error", "error", err)
			}
		}
	}()
	return requests, nil
}

// Release implements Lock.
func (l *FileLock) Release(_ context.Context) error {
	if !l.flock.Locked() {
		return ErrNotHeld
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.lockPath, err)
	}
	return nil
}

package maindom

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (l *testLogger) Debug(msg string, args ...any) {}
func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Warn(msg string, args ...any)  {}
func (l *testLogger) Error(msg string, args ...any) {}

type countingLock struct {
	acquires atomic.Int32
	result   bool
	err      error
}

func (c *countingLock) Acquire(context.Context, time.Duration) (bool, error) {
	c.acquires.Add(1)
	return c.result, c.err
}

func (c *countingLock) ListenForRelease(context.Context) (<-chan struct{}, error) {
	return make(chan struct{}), nil
}

func (c *countingLock) Release(context.Context) error { return nil }

func TestMainDomAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	md := New(NewLocalLock(t.Name()), StaticRegistrar(RoleSingle), &testLogger{})

	ok, err := md.Acquire(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, md.IsMainDom())
	assert.True(t, md.ExclusivityRequired())

	_, err = md.Acquire(ctx, time.Second)
	assert.ErrorIs(t, err, ErrAlreadyHeld)

	var calls []string
	md.OnHandoffRequested(func() { calls = append(calls, "first") })
	md.OnHandoffRequested(func() { panic("callback bug") })
	md.OnHandoffRequested(func() { calls = append(calls, "third") })

	require.NoError(t, md.Release(ctx))
	require.NoError(t, md.Release(ctx))
	assert.False(t, md.IsMainDom())
	assert.Equal(t, []string{"first", "third"}, calls)
}

func TestMainDomHandoffToNewInstance(t *testing.T) {
	ctx := context.Background()
	first := New(NewLocalLock(t.Name()), nil, &testLogger{})
	ok, err := first.Acquire(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	handedOff := make(chan struct{})
	first.OnHandoffRequested(func() { close(handedOff) })

	second := New(NewLocalLock(t.Name()), nil, &testLogger{})
	ok, err = second.Acquire(ctx, 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	select {
	case <-handedOff:
	case <-time.After(time.Second):
		t.Fatal("release callback did not run")
	}
	select {
	case <-first.HandedOff():
	case <-time.After(time.Second):
		t.Fatal("first instance did not report handoff")
	}
	assert.False(t, first.IsMainDom())
	assert.True(t, second.IsMainDom())
	require.NoError(t, second.Release(ctx))
}

func TestMainDomSubscriberSkipsLock(t *testing.T) {
	lock := &countingLock{result: true}
	md := New(lock, StaticRegistrar(RoleSubscriber), &testLogger{})

	ok, err := md.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, md.ExclusivityRequired())
	assert.Zero(t, lock.acquires.Load())
	assert.NoError(t, md.Release(context.Background()))
}

func TestMainDomAcquireOutcomes(t *testing.T) {
	boom := errors.New("lock store down")
	tests := []struct {
		name    string
		lock    Lock
		want    bool
		wantErr error
	}{
		{name: "lost race", lock: &countingLock{result: false}, want: false},
		{name: "acquisition error", lock: &countingLock{err: boom}, wantErr: boom},
		{name: "nil lock", lock: nil, wantErr: ErrLockNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := New(tt.lock, StaticRegistrar(RoleSchedulingPublisher), &testLogger{})
			ok, err := md.Acquire(context.Background(), 10*time.Millisecond)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.True(t, md.ExclusivityRequired())
		})
	}
}

func TestParseRole(t *testing.T) {
	for name, want := range map[string]ServerRole{
		"":           RoleSingle,
		"single":     RoleSingle,
		"Publisher":  RoleSchedulingPublisher,
		"subscriber": RoleSubscriber,
		"unknown":    RoleUnknown,
	} {
		got, err := ParseRole(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseRole("leader")
	assert.ErrorIs(t, err, ErrUnknownRole)
	assert.Equal(t, "subscriber", RoleSubscriber.String())
}

func TestNewLockBackends(t *testing.T) {
	lock, err := NewLock(BackendConfig{Kind: "local", Name: "x"}, &testLogger{})
	require.NoError(t, err)
	assert.IsType(t, &LocalLock{}, lock)

	lock, err = NewLock(BackendConfig{Kind: "file", Name: "x", Directory: t.TempDir()}, &testLogger{})
	require.NoError(t, err)
	assert.IsType(t, &FileLock{}, lock)

	lock, err = NewLock(BackendConfig{Kind: "redis", Name: "x", RedisURL: "redis://localhost:6379/0"}, &testLogger{})
	require.NoError(t, err)
	assert.IsType(t, &RedisLock{}, lock)

	_, err = NewLock(BackendConfig{Kind: "zookeeper"}, &testLogger{})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

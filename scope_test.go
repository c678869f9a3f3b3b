package bootstrap

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/GoCodeAlone/bootstrap/profiling"
	"github.com/GoCodeAlone/bootstrap/typefinder"
)

// recordingProfiler is a profiler implemented outside the profiling
// package.
type recordingProfiler struct {
	nilScope   bool
	panicOnEnd bool

	mu     sync.Mutex
	begun  []string
	ended  []string
	failed []string
}

func (p *recordingProfiler) Begin(ctx context.Context, name string, _ ...attribute.KeyValue) (context.Context, profiling.Scope) {
	p.mu.Lock()
	p.begun = append(p.begun, name)
	p.mu.Unlock()
	if p.nilScope {
		return ctx, nil
	}
	return ctx, &recordingScope{name: name, profiler: p}
}

func (p *recordingProfiler) record(list *[]string, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*list = append(*list, name)
}

type recordingScope struct {
	name     string
	profiler *recordingProfiler
	failed   bool
}

func (s *recordingScope) Name() string { return s.name }
func (s *recordingScope) Failed() bool { return s.failed }

func (s *recordingScope) Fail(error) {
	s.failed = true
	s.profiler.record(&s.profiler.failed, s.name)
}

func (s *recordingScope) End() time.Duration {
	if s.profiler.panicOnEnd {
		panic("scope end exploded")
	}
	s.profiler.record(&s.profiler.ended, s.name)
	return time.Millisecond
}

func TestBootWithCustomProfiler(t *testing.T) {
	tests := []struct {
		name     string
		profiler *recordingProfiler
	}{
		{name: "recording", profiler: &recordingProfiler{}},
		{name: "nil scope", profiler: &recordingProfiler{nilScope: true}},
		{name: "panicking scope", profiler: &recordingProfiler{panicOnEnd: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := testRuntime(t, typefinder.NewRegistry(), &fakeDatabase{version: "1.0.0"},
				WithProfiler(func(Logger) profiling.Profiler { return tt.profiler }))

			var f *Factory
			require.NotPanics(t, func() {
				var err error
				f, err = rt.Boot(context.Background(), nil)
				require.NoError(t, err)
			})
			require.NotNil(t, f)
			assert.Equal(t, LevelRun, rt.State().Level())
			require.NotPanics(t, func() { _ = rt.Terminate(context.Background()) })

			steps := []string{"boot", "boot.maindom", "boot.level", "boot.composers", "boot.freeze", "boot.components", "terminate"}
			for _, step := range steps {
				assert.True(t, slices.Contains(tt.profiler.begun, step), step)
			}
		})
	}
}

func TestCustomProfilerSeesEveryScopeEnd(t *testing.T) {
	profiler := &recordingProfiler{}
	rt := testRuntime(t, typefinder.NewRegistry(), &fakeDatabase{version: "1.0.0"},
		WithProfiler(func(Logger) profiling.Profiler { return profiler }),
		WithComposeHook(func(*Composition) error { return errors.New("hook failed") }))

	_, err := rt.Boot(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, LevelBootFailed, rt.State().Level())

	assert.ElementsMatch(t, profiler.begun, profiler.ended)
	assert.Contains(t, profiler.failed, "boot")
}

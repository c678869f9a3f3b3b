package bootstrap

import (
	"context"
	"sync"
	"testing"
	"time"

	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/bootstrap/config"
	"github.com/GoCodeAlone/bootstrap/maindom"
	"github.com/GoCodeAlone/bootstrap/profiling"
	"github.com/GoCodeAlone/bootstrap/typefinder"
)

type testLogger struct{}

func (l *testLogger) Debug(msg string, args ...any) {}
func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Warn(msg string, args ...any)  {}
func (l *testLogger) Error(msg string, args ...any) {}

// fakeDatabase is a scripted DatabaseFactory.
type fakeDatabase struct {
	notConfigured bool
	unreachable   bool
	version       string
	versionErr    error
	panicOnProbe  bool
	upgradeErr    error

	mu           sync.Mutex
	upgradeCalls int
}

func (d *fakeDatabase) Configured() bool { return !d.notConfigured }

func (d *fakeDatabase) CanConnect(context.Context) bool {
	if d.panicOnProbe {
		panic("driver exploded")
	}
	return !d.unreachable
}

func (d *fakeDatabase) SchemaVersion(context.Context) (string, bool, error) {
	if d.versionErr != nil {
		return "", false, d.versionErr
	}
	return d.version, d.version != "", nil
}

func (d *fakeDatabase) ConfigureForUpgrade(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upgradeCalls++
	return d.upgradeErr
}

func (d *fakeDatabase) UpgradeCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.upgradeCalls
}

// testComposer records its run into a shared log.
type testComposer struct {
	name    string
	before  []string
	after   []string
	enabled func(*RuntimeState) bool
	compose func(*Composition) error
	log     *[]string
}

func (c *testComposer) Compose(comp *Composition) error {
	if c.log != nil {
		*c.log = append(*c.log, c.name)
	}
	if c.compose != nil {
		return c.compose(comp)
	}
	return nil
}

func (c *testComposer) ComposeBefore() []string { return c.before }
func (c *testComposer) ComposeAfter() []string  { return c.after }

func (c *testComposer) Enabled(state *RuntimeState) bool {
	if c.enabled == nil {
		return true
	}
	return c.enabled(state)
}

func addComposers(t *testing.T, registry *typefinder.Registry, composers ...*testComposer) {
	t.Helper()
	for _, c := range composers {
		require.NoError(t, registry.Add(ComposerCapability, c.name, func() any { return c }))
	}
}

// testComponent records lifecycle calls into a shared log.
type testComponent struct {
	name    string
	initErr error
	termErr error
	log     *[]string
}

func (c *testComponent) Initialize(context.Context) error {
	*c.log = append(*c.log, "init:"+c.name)
	return c.initErr
}

func (c *testComponent) Terminate(context.Context) error {
	*c.log = append(*c.log, "term:"+c.name)
	return c.termErr
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	var s config.Settings
	require.NoError(t, config.ProcessDefaults(&s))
	s.Runtime.TempPath = t.TempDir()
	s.MainDom.Lock = "local"
	s.MainDom.Name = t.Name()
	s.MainDom.Timeout = 200 * time.Millisecond
	s.Database.DSN = "unused"
	return s
}

func testProfiler(logger Logger) profiling.Profiler {
	return profiling.NewOtelProfiler(logger,
		profiling.WithTracerProvider(tracenoop.NewTracerProvider()),
		profiling.WithMeterProvider(metricnoop.NewMeterProvider()),
	)
}

// testRuntime builds a runtime over an isolated registry, a local lock
// scoped to the test and db.
func testRuntime(t *testing.T, registry *typefinder.Registry, db DatabaseFactory, opts ...Option) *CoreRuntime {
	t.Helper()
	settings := testSettings(t)
	base := []Option{
		WithLogger(func() Logger { return &testLogger{} }),
		WithProfiler(testProfiler),
		WithTypeLoader(func() *typefinder.Registry { return registry }),
		WithSettings(config.NewSnapshot(settings)),
		WithDatabaseFactory(func(*config.Snapshot, Logger) DatabaseFactory { return db }),
		WithMainDomLock(func(*config.Snapshot, Logger) (maindom.Lock, error) {
			return maindom.NewLocalLock(settings.MainDom.Name), nil
		}),
	}
	rt := NewCoreRuntime(append(base, opts...)...)
	t.Cleanup(func() { _ = rt.Terminate(context.Background()) })
	return rt
}

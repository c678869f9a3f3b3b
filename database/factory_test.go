package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/GoCodeAlone/bootstrap/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (l *testLogger) Debug(msg string, args ...any) {}
func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Warn(msg string, args ...any)  {}
func (l *testLogger) Error(msg string, args ...any) {}

func newTestFactory(t *testing.T) *Factory {
	t.Helper()
	f := NewFactory(config.DatabaseSettings{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "runtime.db"),
	}, &testLogger{})
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFactoryNotConfigured(t *testing.T) {
	f := NewFactory(config.DatabaseSettings{Driver: "sqlite"}, &testLogger{})
	assert.False(t, f.Configured())
	assert.False(t, f.CanConnect(context.Background()))

	_, _, err := f.SchemaVersion(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, f.Close())
}

func TestFactorySchemaLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newTestFactory(t)
	require.True(t, f.Configured())
	require.True(t, f.CanConnect(ctx))

	version, installed, err := f.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.False(t, installed)
	assert.Empty(t, version)

	require.NoError(t, f.InstallSchema(ctx, "1.2.0"))
	version, installed, err = f.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.True(t, installed)
	assert.Equal(t, "1.2.0", version)

	require.NoError(t, f.SetSchemaVersion(ctx, "1.3.0"))
	version, _, err = f.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", version)

	assert.ErrorIs(t, f.SetSchemaVersion(ctx, ""), ErrInvalidVersion)
}

func TestFactoryConfigureForUpgrade(t *testing.T) {
	ctx := context.Background()
	f := newTestFactory(t)
	assert.False(t, f.Upgrading())

	require.NoError(t, f.ConfigureForUpgrade(ctx))
	assert.True(t, f.Upgrading())

	db, err := f.DB()
	require.NoError(t, err)
	exists, err := f.tableExists(ctx, db, migrationsTable)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFactoryRejectsInvalidTableName(t *testing.T) {
	f := NewFactory(config.DatabaseSettings{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "runtime.db"),
		SchemaTable: "schema; DROP TABLE users",
	}, &testLogger{})
	defer f.Close()

	_, _, err := f.SchemaVersion(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTableName)
}

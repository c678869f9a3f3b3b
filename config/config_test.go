package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feederFunc func(target any) error

func (f feederFunc) Feed(target any) error { return f(target) }

func TestLoadAppliesDefaults(t *testing.T) {
	snapshot, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", snapshot.Runtime().Version)
	assert.Equal(t, "single", snapshot.Runtime().ServerRole)
	assert.Equal(t, "sqlite", snapshot.Database().Driver)
	assert.Equal(t, "runtime_schema", snapshot.Database().SchemaTable)
	assert.Equal(t, "file", snapshot.MainDom().Lock)
	assert.Equal(t, 5*time.Second, snapshot.MainDom().Timeout)
	assert.Equal(t, 30*time.Second, snapshot.MainDom().LeaseTTL)
	assert.Equal(t, "memory", snapshot.Cache().Engine)
	assert.Equal(t, 10000, snapshot.Cache().MaxItems)
	assert.True(t, snapshot.Scheduler().Enabled)
	assert.Equal(t, ":8085", snapshot.Hosting().Listen)

	assert.Equal(t, filepath.Join(os.TempDir(), "bootstrap"), snapshot.Runtime().TempPath)
	assert.Equal(t, filepath.Join(snapshot.Runtime().TempPath, "maindom"), snapshot.MainDom().Directory)
}

func TestLoadFeedersInOrder(t *testing.T) {
	first := feederFunc(func(target any) error {
		s := target.(*Settings)
		s.Runtime.Version = "2.0.0"
		s.Database.DSN = "first.db"
		return nil
	})
	second := feederFunc(func(target any) error {
		target.(*Settings).Database.DSN = "second.db"
		return nil
	})

	snapshot, err := Load(first, nil, second)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", snapshot.Runtime().Version)
	assert.Equal(t, "second.db", snapshot.Database().DSN)
	assert.Len(t, snapshot.Sources(), 2)
}

func TestLoadFeederError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Load(feederFunc(func(any) error { return boom }))
	assert.ErrorIs(t, err, ErrConfigFeederError)
	assert.ErrorIs(t, err, boom)
}

func TestLoadRequiredVersion(t *testing.T) {
	blank := feederFunc(func(target any) error {
		target.(*Settings).Runtime.Version = ""
		return nil
	})
	_, err := Load(blank)
	assert.ErrorIs(t, err, ErrConfigRequiredFieldMissing)
	assert.Contains(t, err.Error(), "Runtime.Version")
}

func TestSnapshotIsACopy(t *testing.T) {
	snapshot := NewSnapshot(Settings{Runtime: RuntimeSettings{Version: "1.2.3"}})
	s := snapshot.Settings()
	s.Runtime.Version = "9.9.9"
	assert.Equal(t, "1.2.3", snapshot.Runtime().Version)
}

func TestProcessDefaultsRejectsInvalidTargets(t *testing.T) {
	assert.ErrorIs(t, ProcessDefaults(nil), ErrConfigNil)
	assert.ErrorIs(t, ProcessDefaults(Settings{}), ErrConfigNotPointer)
	n := 3
	assert.ErrorIs(t, ProcessDefaults(&n), ErrConfigNotStruct)
}

func TestProcessDefaultsKeepsExistingValues(t *testing.T) {
	cfg := struct {
		Name  string        `default:"x"`
		Wait  time.Duration `default:"2s"`
		Items []string      `default:"[\"a\",\"b\"]"`
	}{Name: "set"}
	require.NoError(t, ProcessDefaults(&cfg))
	assert.Equal(t, "set", cfg.Name)
	assert.Equal(t, 2*time.Second, cfg.Wait)
	assert.Equal(t, []string{"a", "b"}, cfg.Items)
}

package feeders

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockSection struct {
	Kind    string        `yaml:"kind" toml:"kind" env:"KIND"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`
}

type testSettings struct {
	Version string      `yaml:"version" toml:"version" env:"VERSION"`
	Port    int         `yaml:"port" toml:"port" env:"PORT"`
	Debug   bool        `yaml:"debug" toml:"debug" env:"DEBUG"`
	Tags    []string    `yaml:"tags" toml:"tags" env:"TAGS"`
	Lock    lockSection `yaml:"lock" toml:"lock" env:"LOCK"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestYamlFeeder(t *testing.T) {
	path := writeFile(t, "config.yaml", `
version: 2.1.0
port: 8080
lock:
  kind: file
  timeout: 3s
`)
	var cfg testSettings
	require.NoError(t, NewYamlFeeder(path).Feed(&cfg))
	assert.Equal(t, "2.1.0", cfg.Version)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "file", cfg.Lock.Kind)
	assert.Equal(t, 3*time.Second, cfg.Lock.Timeout)

	var lock lockSection
	require.NoError(t, NewYamlFeeder(path).FeedKey("lock", &lock))
	assert.Equal(t, "file", lock.Kind)
}

func TestYamlFeederMissingFile(t *testing.T) {
	var cfg testSettings
	err := NewYamlFeeder(filepath.Join(t.TempDir(), "missing.yaml")).Feed(&cfg)
	assert.ErrorIs(t, err, ErrFileNotFound)

	optional := YamlFeeder{Path: filepath.Join(t.TempDir(), "missing.yaml"), Optional: true}
	assert.NoError(t, optional.Feed(&cfg))
}

func TestYamlFeederRejectsNonPointer(t *testing.T) {
	path := writeFile(t, "config.yaml", "version: 1.0.0\n")
	assert.ErrorIs(t, NewYamlFeeder(path).Feed(testSettings{}), ErrInvalidTargetType)
}

func TestTomlFeeder(t *testing.T) {
	path := writeFile(t, "config.toml", `
version = "3.0.0"
port = 9090
tags = ["a", "b"]

[lock]
kind = "redis"
`)
	var cfg testSettings
	require.NoError(t, NewTomlFeeder(path).Feed(&cfg))
	assert.Equal(t, "3.0.0", cfg.Version)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
	assert.Equal(t, "redis", cfg.Lock.Kind)

	var lock lockSection
	require.NoError(t, NewTomlFeeder(path).FeedKey("lock", &lock))
	assert.Equal(t, "redis", lock.Kind)

	assert.ErrorIs(t, NewTomlFeeder(path).FeedKey("version", &lock), ErrFeedKeyNotSupported)
}

func TestEnvFeeder(t *testing.T) {
	t.Setenv("BOOT_VERSION", "4.2.0")
	t.Setenv("BOOT_PORT", "7070")
	t.Setenv("BOOT_DEBUG", "true")
	t.Setenv("BOOT_TAGS", "x, y")
	t.Setenv("BOOT_LOCK_KIND", "local")
	t.Setenv("BOOT_LOCK_TIMEOUT", "250ms")

	cfg := testSettings{Version: "1.0.0"}
	require.NoError(t, NewEnvFeeder("boot").Feed(&cfg))
	assert.Equal(t, "4.2.0", cfg.Version)
	assert.Equal(t, 7070, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"x", "y"}, cfg.Tags)
	assert.Equal(t, "local", cfg.Lock.Kind)
	assert.Equal(t, 250*time.Millisecond, cfg.Lock.Timeout)
}

func TestEnvFeederLeavesUnsetFields(t *testing.T) {
	cfg := testSettings{Version: "1.0.0", Port: 1}
	require.NoError(t, NewEnvFeeder("UNSET_PREFIX_FOR_TEST").Feed(&cfg))
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, 1, cfg.Port)
}

func TestEnvFeederInvalidValue(t *testing.T) {
	t.Setenv("BAD_PORT", "not-a-number")
	var cfg testSettings
	assert.Error(t, NewEnvFeeder("BAD").Feed(&cfg))
	assert.ErrorIs(t, NewEnvFeeder("BAD").Feed(cfg), ErrEnvInvalidStructure)
}

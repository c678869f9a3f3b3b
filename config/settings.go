package config

import "time"

// Settings is the global configuration consumed while booting.
type Settings struct {
	Runtime   RuntimeSettings   `yaml:"runtime" toml:"runtime" env:"RUNTIME"`
	Database  DatabaseSettings  `yaml:"database" toml:"database" env:"DATABASE"`
	MainDom   MainDomSettings   `yaml:"maindom" toml:"maindom" env:"MAINDOM"`
	Cache     CacheSettings     `yaml:"cache" toml:"cache" env:"CACHE"`
	Scheduler SchedulerSettings `yaml:"scheduler" toml:"scheduler" env:"SCHEDULER"`
	Hosting   HostingSettings   `yaml:"hosting" toml:"hosting" env:"HOSTING"`
}

// RuntimeSettings describes the running code.
type RuntimeSettings struct {
	// Version is the code version compared against the installed schema version.
	Version string `yaml:"version" toml:"version" env:"VERSION" default:"1.0.0" required:"true"`
	// TempPath is the local temp storage; type discovery caches live below it.
	TempPath string `yaml:"tempPath" toml:"tempPath" env:"TEMP_PATH"`
	// ServerRole is one of single, publisher or subscriber.
	ServerRole string `yaml:"serverRole" toml:"serverRole" env:"SERVER_ROLE" default:"single"`
}

// DatabaseSettings configures the database connectivity collaborator.
type DatabaseSettings struct {
	Driver      string `yaml:"driver" toml:"driver" env:"DRIVER" default:"sqlite"`
	DSN         string `yaml:"dsn" toml:"dsn" env:"DSN"`
	SchemaTable string `yaml:"schemaTable" toml:"schemaTable" env:"SCHEMA_TABLE" default:"runtime_schema"`
}

// MainDomSettings configures the main instance lock.
type MainDomSettings struct {
	// Lock selects the backend: local, file or redis.
	Lock      string        `yaml:"lock" toml:"lock" env:"LOCK" default:"file"`
	Name      string        `yaml:"name" toml:"name" env:"NAME" default:"bootstrap"`
	Directory string        `yaml:"directory" toml:"directory" env:"DIRECTORY"`
	RedisURL  string        `yaml:"redisUrl" toml:"redisUrl" env:"REDIS_URL"`
	Timeout   time.Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT" default:"5s"`
	LeaseTTL  time.Duration `yaml:"leaseTtl" toml:"leaseTtl" env:"LEASE_TTL" default:"30s"`
}

// CacheSettings configures the application caches.
type CacheSettings struct {
	Engine          string        `yaml:"engine" toml:"engine" env:"ENGINE" default:"memory"`
	RedisURL        string        `yaml:"redisUrl" toml:"redisUrl" env:"REDIS_URL"`
	DefaultTTL      time.Duration `yaml:"defaultTtl" toml:"defaultTtl" env:"DEFAULT_TTL" default:"5m"`
	MaxItems        int           `yaml:"maxItems" toml:"maxItems" env:"MAX_ITEMS" default:"10000"`
	CleanupInterval time.Duration `yaml:"cleanupInterval" toml:"cleanupInterval" env:"CLEANUP_INTERVAL" default:"1m"`
}

// SchedulerSettings toggles the main-instance job scheduler.
type SchedulerSettings struct {
	Enabled bool `yaml:"enabled" toml:"enabled" env:"ENABLED" default:"true"`
}

// HostingSettings is only read by hosts such as cmd/bootd.
type HostingSettings struct {
	Listen string `yaml:"listen" toml:"listen" env:"LISTEN" default:":8085"`
}

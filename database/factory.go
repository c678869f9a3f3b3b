// Package database is the database connectivity collaborator consulted
// while determining the runtime level. It answers whether a connection is
// configured, whether it can be reached, and which schema version is
// installed.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/GoCodeAlone/bootstrap/config"

	_ "modernc.org/sqlite" // pure Go sqlite driver registered as "sqlite"
)

const (
	defaultSchemaTable = "runtime_schema"
	migrationsTable    = "schema_migrations"
	pingTimeout        = 5 * time.Second
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Logger is the subset of the runtime logger used by the database package.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Factory opens the configured connection lazily and answers the
// questions asked during level determination.
type Factory struct {
	driver string
	dsn    string
	table  string
	logger Logger

	mu        sync.Mutex
	db        *sql.DB
	upgrading bool
}

// NewFactory creates a factory from the database settings.
func NewFactory(settings config.DatabaseSettings, logger Logger) *Factory {
	table := settings.SchemaTable
	if table == "" {
		table = defaultSchemaTable
	}
	return &Factory{
		driver: settings.Driver,
		dsn:    settings.DSN,
		table:  table,
		logger: logger,
	}
}

// Configured reports whether a connection string is present.
func (f *Factory) Configured() bool {
	return f.driver != "" && f.dsn != ""
}

// DB returns the shared connection pool, opening it on first use.
func (f *Factory) DB() (*sql.DB, error) {
	if !f.Configured() {
		return nil, ErrNotConfigured
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.db != nil {
		return f.db, nil
	}
	db, err := sql.Open(f.driver, f.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", f.driver, err)
	}
	f.db = db
	return db, nil
}

// CanConnect pings the database.
func (f *Factory) CanConnect(ctx context.Context) bool {
	db, err := f.DB()
	if err != nil {
		f.logger.Debug("Database connection unavailable", "error", err)
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		f.logger.Debug("Database ping failed", "driver", f.driver, "error", err)
		return false
	}
	return true
}

// SchemaVersion returns the most recently installed schema version. The
// boolean is false when no schema has been installed yet.
func (f *Factory) SchemaVersion(ctx context.Context) (string, bool, error) {
	db, err := f.DB()
	if err != nil {
		return "", false, err
	}
	if err := validateTableName(f.table); err != nil {
		return "", false, err
	}

	exists, err := f.tableExists(ctx, db, f.table)
	if err != nil {
		return "", false, err
	}
	if !exists {
		return "", false, nil
	}

	// #nosec G201 - table name is validated above
	query := fmt.Sprintf("SELECT version FROM %s ORDER BY id DESC LIMIT 1", f.table)
	var version string
	err = db.QueryRowContext(ctx, query).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, true, nil
}

func (f *Factory) tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	query := "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?"
	if f.driver == "sqlite" || f.driver == "sqlite3" {
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	}
	var count int
	if err := db.QueryRowContext(ctx, query, table).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// ConfigureForUpgrade prepares the connection for an upgrade run by
// creating the migrations tracking table and flagging the factory.
func (f *Factory) ConfigureForUpgrade(ctx context.Context) error {
	db, err := f.DB()
	if err != nil {
		return err
	}
	// #nosec G201 - constant table name
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, migrationsTable)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	f.mu.Lock()
	f.upgrading = true
	f.mu.Unlock()
	f.logger.Info("Database configured for upgrade", "driver", f.driver)
	return nil
}

// Upgrading reports whether ConfigureForUpgrade ran.
func (f *Factory) Upgrading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upgrading
}

// InstallSchema creates the schema table and records version.
func (f *Factory) InstallSchema(ctx context.Context, version string) error {
	db, err := f.DB()
	if err != nil {
		return err
	}
	if err := validateTableName(f.table); err != nil {
		return err
	}
	// #nosec G201 - table name is validated above
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version TEXT NOT NULL,
			installed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, f.table)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema table: %w", err)
	}
	return f.SetSchemaVersion(ctx, version)
}

// SetSchemaVersion records version as the installed schema version.
func (f *Factory) SetSchemaVersion(ctx context.Context, version string) error {
	if version == "" {
		return ErrInvalidVersion
	}
	db, err := f.DB()
	if err != nil {
		return err
	}
	if err := validateTableName(f.table); err != nil {
		return err
	}
	// #nosec G201 - table name is validated above
	query := fmt.Sprintf("INSERT INTO %s (version) VALUES (?)", f.table)
	if _, err := db.ExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	f.logger.Info("Schema version recorded", "version", version)
	return nil
}

// Close closes the connection pool if it was opened.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}

func validateTableName(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return nil
}

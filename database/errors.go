package database

import "errors"

// Static errors for database package
var (
	ErrNotConfigured    = errors.New("database connection not configured")
	ErrInvalidTableName = errors.New("invalid table name")
	ErrInvalidVersion   = errors.New("schema version cannot be empty")
)

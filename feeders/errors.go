package feeders

import "errors"

// Static error definitions for feeders

// File feeder errors
var (
	ErrFileNotFound        = errors.New("config file not found")
	ErrInvalidTargetType   = errors.New("expected pointer to struct")
	ErrFeedKeyNotSupported = errors.New("key is not a section")
)

// Env feeder errors
var (
	ErrEnvInvalidStructure = errors.New("env: invalid structure")
	ErrEnvFieldCannotBeSet = errors.New("env: field cannot be set")
)

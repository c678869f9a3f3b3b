package bootstrap

import (
	"errors"
	"fmt"
)

// Boot errors
var (
	// Precondition errors, the only errors Boot returns
	ErrPreconditionFailed      = errors.New("boot precondition failed")
	ErrEssentialServiceMissing = errors.New("essential service missing")

	// Runtime level errors
	ErrInvalidLevelTransition = errors.New("invalid runtime level transition")
	ErrInvalidVersion         = errors.New("invalid version")
	ErrSchemaAheadOfCode      = errors.New("installed schema version is newer than code version")

	// MainDom errors
	ErrMainDomNotAcquired = errors.New("maindom not acquired")

	// Composer errors
	ErrComposerCycle = errors.New("composer dependency cycle detected")
	ErrNotAComposer  = errors.New("type does not implement Composer")

	// Composition and factory errors
	ErrCompositionFrozen   = errors.New("composition is frozen")
	ErrInvalidRegistration = errors.New("invalid registration")
	ErrServiceNotFound     = errors.New("service not found")
	ErrCollectionNotFound  = errors.New("collection not found")
	ErrServiceCycle        = errors.New("service construction cycle detected")
	ErrServiceBuildFailed  = errors.New("service construction failed")

	// Service injection errors
	ErrTargetNotPointer    = errors.New("target must be a non-nil pointer")
	ErrTargetValueInvalid  = errors.New("target value is invalid")
	ErrServiceIncompatible = errors.New("service cannot be assigned to target")

	// Component errors
	ErrNotAComponent = errors.New("collection item does not implement Component")

	// Containment errors
	ErrBootPanic = errors.New("boot panicked")
)

// BootFailedError pairs the terminal BootFailed level with the cause that
// produced it.
type BootFailedError struct {
	Level  RuntimeLevel
	Reason RuntimeLevelReason
	Cause  error
}

func (e *BootFailedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("boot failed: %s", e.Reason)
	}
	return fmt.Sprintf("boot failed: %s: %v", e.Reason, e.Cause)
}

func (e *BootFailedError) Unwrap() error {
	return e.Cause
}

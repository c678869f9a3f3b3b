package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/GoCodeAlone/bootstrap/config"
)

// DatabaseFactory is the database connectivity collaborator consulted while
// determining the runtime level.
type DatabaseFactory interface {
	// Configured reports whether a connection string is present.
	Configured() bool
	// CanConnect probes connectivity.
	CanConnect(ctx context.Context) bool
	// SchemaVersion returns the installed schema version, and false when no
	// schema is installed.
	SchemaVersion(ctx context.Context) (string, bool, error)
	// ConfigureForUpgrade prepares the connection for an upgrade run.
	ConfigureForUpgrade(ctx context.Context) error
}

// RuntimeState records the readiness level of the process and why it was
// chosen. The runtime writes it while booting; everything else only reads.
type RuntimeState struct {
	settings *config.Snapshot
	logger   Logger

	mu               sync.RWMutex
	level            RuntimeLevel
	reason           RuntimeLevelReason
	failure          *BootFailedError
	installedVersion string
}

// NewRuntimeState creates a state at LevelBooting.
func NewRuntimeState(settings *config.Snapshot, logger Logger) *RuntimeState {
	s := &RuntimeState{settings: settings, logger: logger}
	_ = s.setLevel(LevelBooting, ReasonUnknown)
	return s
}

// Level returns the current level.
func (s *RuntimeState) Level() RuntimeLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

// Reason returns why the current level was chosen.
func (s *RuntimeState) Reason() RuntimeLevelReason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// BootFailure returns the failure record, or nil unless the level is
// LevelBootFailed.
func (s *RuntimeState) BootFailure() *BootFailedError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}

// Settings returns the configuration snapshot the runtime booted with.
func (s *RuntimeState) Settings() *config.Snapshot { return s.settings }

// CodeVersion returns the configured version of the running code.
func (s *RuntimeState) CodeVersion() string {
	return s.settings.Runtime().Version
}

// InstalledVersion returns the schema version found during determination.
func (s *RuntimeState) InstalledVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installedVersion
}

func (s *RuntimeState) setLevel(level RuntimeLevel, reason RuntimeLevelReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.level, level) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidLevelTransition, s.level, level)
	}
	s.level = level
	s.reason = reason
	return nil
}

// fail moves the state to LevelBootFailed. A state that already failed
// keeps its reason and only gains a cause if it had none.
func (s *RuntimeState) fail(reason RuntimeLevelReason, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level == LevelBootFailed {
		if s.failure.Cause == nil {
			s.failure.Cause = cause
		}
		return
	}
	s.level = LevelBootFailed
	s.reason = reason
	s.failure = &BootFailedError{Level: LevelBootFailed, Reason: reason, Cause: cause}
}

// DetermineLevel sets the terminal level from what the database reports.
// Any error, or panic, leaves the state at LevelBootFailed with
// ReasonBootFailedOnDetermination and is returned to the caller.
func (s *RuntimeState) DetermineLevel(ctx context.Context, db DatabaseFactory) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: level determination: %v", ErrBootPanic, r)
		}
		if err != nil {
			s.fail(ReasonBootFailedOnDetermination, err)
		}
	}()

	level, reason, err := s.determine(ctx, db)
	if err != nil {
		return err
	}
	if err := s.setLevel(level, reason); err != nil {
		return err
	}
	s.logger.Info("Runtime level determined", "level", level, "reason", reason,
		"codeVersion", s.CodeVersion(), "installedVersion", s.InstalledVersion())
	return nil
}

func (s *RuntimeState) determine(ctx context.Context, db DatabaseFactory) (RuntimeLevel, RuntimeLevelReason, error) {
	code, err := semver.NewVersion(s.CodeVersion())
	if err != nil {
		return LevelUnknown, ReasonUnknown, fmt.Errorf("%w: code version %q: %w", ErrInvalidVersion, s.CodeVersion(), err)
	}

	if !db.Configured() {
		return LevelInstall, ReasonInstallNotConfigured, nil
	}
	if !db.CanConnect(ctx) {
		return LevelInstall, ReasonInstallNoConnectivity, nil
	}

	raw, installed, err := db.SchemaVersion(ctx)
	if err != nil {
		return LevelUnknown, ReasonUnknown, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !installed {
		return LevelInstall, ReasonInstallNoSchema, nil
	}

	s.mu.Lock()
	s.installedVersion = raw
	s.mu.Unlock()

	current, err := semver.NewVersion(raw)
	if err != nil {
		return LevelUnknown, ReasonUnknown, fmt.Errorf("%w: installed version %q: %w", ErrInvalidVersion, raw, err)
	}

	switch current.Compare(code) {
	case 0:
		return LevelRun, ReasonRunUpToDate, nil
	case -1:
		if err := db.ConfigureForUpgrade(ctx); err != nil {
			return LevelUnknown, ReasonUnknown, fmt.Errorf("failed to configure database for upgrade: %w", err)
		}
		return LevelUpgrade, ReasonUpgradeVersionMismatch, nil
	default:
		return LevelUnknown, ReasonUnknown, fmt.Errorf("%w: installed %s, code %s", ErrSchemaAheadOfCode, current, code)
	}
}

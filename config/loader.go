// Package config provides the read-only configuration snapshot consumed
// while booting, and the loader that builds it from feeders.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Static errors for configuration package
var (
	ErrConfigNil                  = errors.New("config is nil")
	ErrConfigNotPointer           = errors.New("config must be a pointer")
	ErrConfigNotStruct            = errors.New("config must be a struct")
	ErrConfigRequiredFieldMissing = errors.New("required field is missing")
	ErrUnsupportedTypeForDefault  = errors.New("unsupported type for default value")
	ErrDefaultValueOverflows      = errors.New("default value overflows field")
	ErrConfigFeederError          = errors.New("config feeder error")
)

// Feeder populates a settings structure from one source.
type Feeder interface {
	Feed(target any) error
}

// Snapshot is an immutable view of Settings. It is shared by every
// collaborator after boot and never mutated.
type Snapshot struct {
	settings Settings
	sources  []string
}

// NewSnapshot freezes a copy of settings.
func NewSnapshot(settings Settings) *Snapshot {
	return &Snapshot{settings: settings}
}

// Settings returns a copy of the global settings.
func (s *Snapshot) Settings() Settings {
	return s.settings
}

// Runtime returns the runtime section.
func (s *Snapshot) Runtime() RuntimeSettings { return s.settings.Runtime }

// Database returns the database section.
func (s *Snapshot) Database() DatabaseSettings { return s.settings.Database }

// MainDom returns the main instance lock section.
func (s *Snapshot) MainDom() MainDomSettings { return s.settings.MainDom }

// Cache returns the cache section.
func (s *Snapshot) Cache() CacheSettings { return s.settings.Cache }

// Scheduler returns the scheduler section.
func (s *Snapshot) Scheduler() SchedulerSettings { return s.settings.Scheduler }

// Hosting returns the hosting section.
func (s *Snapshot) Hosting() HostingSettings { return s.settings.Hosting }

// Sources lists the feeders that built this snapshot, in feed order.
func (s *Snapshot) Sources() []string {
	return append([]string(nil), s.sources...)
}

// Load applies defaults, runs every feeder in order (later feeders win),
// fills derived paths and validates required fields.
func Load(feeders ...Feeder) (*Snapshot, error) {
	var settings Settings
	if err := ProcessDefaults(&settings); err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(feeders))
	for _, f := range feeders {
		if f == nil {
			continue
		}
		if err := f.Feed(&settings); err != nil {
			return nil, fmt.Errorf("%w: %T: %w", ErrConfigFeederError, f, err)
		}
		sources = append(sources, fmt.Sprintf("%T", f))
	}

	applyDerived(&settings)

	if err := ValidateRequired(&settings); err != nil {
		return nil, err
	}

	return &Snapshot{settings: settings, sources: sources}, nil
}

// applyDerived fills paths that default relative to other settings.
func applyDerived(s *Settings) {
	if s.Runtime.TempPath == "" {
		s.Runtime.TempPath = filepath.Join(os.TempDir(), "bootstrap")
	}
	if s.MainDom.Directory == "" {
		s.MainDom.Directory = filepath.Join(s.Runtime.TempPath, "maindom")
	}
}

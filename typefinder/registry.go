// Package typefinder is the type discovery facility. Implementations are
// declared explicitly against a capability marker, usually from an init
// function, and are enumerated at boot in declaration order:
//
//	func init() {
//	    typefinder.Register(bootstrap.ComposerCapability, "scheduler", func() any {
//	        return &Composer{}
//	    })
//	}
package typefinder

import (
	"errors"
	"fmt"
	"sync"
)

// Static errors for typefinder package
var (
	ErrDuplicateType    = errors.New("type already registered for capability")
	ErrInvalidType      = errors.New("type registration requires a name and constructor")
	ErrCacheUnavailable = errors.New("type cache unavailable")
)

// Capability marks a family of implementations, e.g. composers.
type Capability string

// Descriptor describes one implementation of a capability.
type Descriptor struct {
	Capability Capability
	Name       string
	New        func() any
}

// Registry holds every declared implementation. It is the type loader the
// TypeFinder scans.
type Registry struct {
	mu      sync.RWMutex
	entries map[Capability][]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Capability][]Descriptor)}
}

// Default is the process registry populated by init-time Register calls.
var Default = NewRegistry()

// Register declares an implementation on the Default registry. It panics on
// invalid or duplicate declarations since those are programming errors
// detected at init time.
func Register(capability Capability, name string, newFn func() any) {
	if err := Default.Add(capability, name, newFn); err != nil {
		panic(err)
	}
}

// Add declares an implementation of capability.
func (r *Registry) Add(capability Capability, name string, newFn func() any) error {
	if name == "" || newFn == nil {
		return fmt.Errorf("%w: %q", ErrInvalidType, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.entries[capability] {
		if d.Name == name {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateType, capability, name)
		}
	}
	r.entries[capability] = append(r.entries[capability], Descriptor{
		Capability: capability,
		Name:       name,
		New:        newFn,
	})
	return nil
}

// Remove drops a declaration; it reports whether one was found.
func (r *Registry) Remove(capability Capability, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.entries[capability]
	for i, d := range entries {
		if d.Name == name {
			r.entries[capability] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// Scan returns the declarations of capability in declaration order.
func (r *Registry) Scan(capability Capability) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Descriptor(nil), r.entries[capability]...)
}

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Static errors for lifecycle package
var (
	ErrObserverNil          = errors.New("observer cannot be nil")
	ErrObserverIDEmpty      = errors.New("observer id cannot be empty")
	ErrObserverRegistered   = errors.New("observer already registered")
	ErrInvalidEvent         = errors.New("invalid lifecycle event")
	ErrObserverNotification = errors.New("observer failed to handle event")
)

type registration struct {
	observer   Observer
	eventTypes []string
}

// Dispatcher delivers events synchronously to registered observers in
// registration order. Boot is single threaded, so events arrive in the
// order the runtime emitted them.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []registration
	logger    Logger
	source    string
}

// NewDispatcher creates a dispatcher stamping events with source.
func NewDispatcher(source string, logger Logger) *Dispatcher {
	return &Dispatcher{source: source, logger: logger}
}

// Register adds an observer. With no eventTypes it receives every event.
func (d *Dispatcher) Register(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrObserverNil
	}
	if observer.ObserverID() == "" {
		return ErrObserverIDEmpty
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.observers {
		if r.observer.ObserverID() == observer.ObserverID() {
			return fmt.Errorf("%w: %s", ErrObserverRegistered, observer.ObserverID())
		}
	}
	d.observers = append(d.observers, registration{observer: observer, eventTypes: eventTypes})
	return nil
}

// Unregister removes an observer. Unknown observers are ignored.
func (d *Dispatcher) Unregister(observer Observer) {
	if observer == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = slices.DeleteFunc(d.observers, func(r registration) bool {
		return r.observer.ObserverID() == observer.ObserverID()
	})
}

// Observers returns the ids of registered observers.
func (d *Dispatcher) Observers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, len(d.observers))
	for i, r := range d.observers {
		ids[i] = r.observer.ObserverID()
	}
	return ids
}

// Emit builds an event from eventType and data and dispatches it. Failures
// are logged; Emit never fails the caller.
func (d *Dispatcher) Emit(ctx context.Context, eventType string, data map[string]any) {
	event := NewEvent(eventType, d.source, data)
	if err := d.Dispatch(ctx, event); err != nil {
		d.logger.Warn("Lifecycle event delivery failed", "eventType", eventType, "error", err)
	}
}

// Dispatch delivers event to every interested observer. Every observer is
// called even if earlier ones fail; the failures are joined.
func (d *Dispatcher) Dispatch(ctx context.Context, event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	d.mu.RLock()
	targets := slices.Clone(d.observers)
	d.mu.RUnlock()

	var errs []error
	for _, r := range targets {
		if len(r.eventTypes) > 0 && !slices.Contains(r.eventTypes, event.Type()) {
			continue
		}
		if err := notify(ctx, r.observer, event); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrObserverNotification, r.observer.ObserverID(), err))
		}
	}
	return errors.Join(errs...)
}

// notify shields the dispatcher from observer panics.
func notify(ctx context.Context, observer Observer, event cloudevents.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return observer.OnEvent(ctx, event)
}

// NewEvent creates a CloudEvent with a time-ordered id.
func NewEvent(eventType, source string, data map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// generateEventID generates a unique identifier using UUIDv7, which embeds
// a timestamp and so sorts in emission order.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

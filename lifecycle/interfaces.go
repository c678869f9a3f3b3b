// Package lifecycle dispatches boot lifecycle events to observers. Events use
// the CloudEvents specification so observers can forward them to external
// systems unchanged.
package lifecycle

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Event type constants emitted by the runtime while booting and terminating.
const (
	EventTypeBootStarted     = "runtime.boot.started"
	EventTypeMainDomAcquired = "runtime.maindom.acquired"
	EventTypeLevelDetermined = "runtime.level.determined"
	EventTypeBootCompleted   = "runtime.boot.completed"
	EventTypeBootFailed      = "runtime.boot.failed"
	EventTypeMainDomReleased = "runtime.maindom.released"
	EventTypeTerminated      = "runtime.terminated"
)

// Logger is the subset of the runtime logger used by the dispatcher.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Observer receives lifecycle events.
type Observer interface {
	// OnEvent handles one event. Returned errors are logged by the
	// dispatcher and never interrupt the lifecycle that emitted the event.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc struct {
	ID string
	Fn func(ctx context.Context, event cloudevents.Event) error
}

// OnEvent calls Fn.
func (o ObserverFunc) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return o.Fn(ctx, event)
}

// ObserverID returns ID.
func (o ObserverFunc) ObserverID() string { return o.ID }

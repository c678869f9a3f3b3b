// Package bootstrap brings a process from nothing initialized to fully
// composed and running, or to a well defined failed state, without ever
// crashing the host.
//
// A CoreRuntime boots in a fixed order: it builds the essential services
// (logger, profiler, type loader), the application caches, the database
// connectivity factory and the configuration snapshot, then creates the
// RuntimeState at LevelBooting. From that point every failure is contained:
// the runtime acquires the MainDom lock, determines the runtime level, runs
// the discovered composers in dependency order against the Composition,
// freezes it into the Factory and initializes the components.
//
// Basic usage:
//
//	rt := bootstrap.NewCoreRuntime(
//	    bootstrap.WithLogger(func() bootstrap.Logger { return bootstrap.NewLogrusLogger(nil) }),
//	)
//	factory, err := rt.Boot(ctx, nil)
//	if err != nil {
//	    log.Fatal(err) // essential service missing
//	}
//	if rt.State().Level() == bootstrap.LevelBootFailed {
//	    // degraded factory, limited functionality
//	}
//	defer rt.Terminate(ctx)
//
// Composers are declared against ComposerCapability with the typefinder
// registry, usually from an init function, and may order themselves with
// ComposeBefore and ComposeAfter.
package bootstrap

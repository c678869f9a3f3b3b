package bootstrap

import (
	"runtime/debug"
	"sync/atomic"
)

type loggerBox struct{ Logger }

var fallbackLogger atomic.Pointer[loggerBox]

// ObserveUncaughtPanics installs logger as the process-wide fallback used by
// LogPanic.
func ObserveUncaughtPanics(logger Logger) {
	if logger == nil {
		fallbackLogger.Store(nil)
		return
	}
	fallbackLogger.Store(&loggerBox{logger})
}

// LogPanic logs a panic in flight and panics again with the same value, so
// the process crashes exactly as it would have. Defer it at the top of
// goroutines the runtime does not otherwise contain:
//
//	go func() {
//	    defer bootstrap.LogPanic()
//	    ...
//	}()
func LogPanic() {
	r := recover()
	if r == nil {
		return
	}
	if box := fallbackLogger.Load(); box != nil {
		box.Error("Uncaught panic", "panic", r, "stack", string(debug.Stack()))
	}
	panic(r)
}

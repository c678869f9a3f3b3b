package bootstrap

// Logger is the structured logger used throughout the runtime. Arguments
// after the message are key-value pairs:
//
//	logger.Info("Runtime level determined", "level", level, "reason", reason)
//
// The logger is the first service built during boot, so implementations
// must not depend on any other part of the runtime.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

package bootstrap

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus logger to Logger.
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger wraps l. A nil l uses a new text logger on stderr.
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.New()
	}
	return &LogrusLogger{logger: l}
}

func (l *LogrusLogger) Info(msg string, args ...any) {
	l.logger.WithFields(fields(args)).Info(msg)
}

func (l *LogrusLogger) Error(msg string, args ...any) {
	l.logger.WithFields(fields(args)).Error(msg)
}

func (l *LogrusLogger) Warn(msg string, args ...any) {
	l.logger.WithFields(fields(args)).Warn(msg)
}

func (l *LogrusLogger) Debug(msg string, args ...any) {
	l.logger.WithFields(fields(args)).Debug(msg)
}

// fields converts key-value pairs. A trailing key without value is kept
// under "!BADKEY".
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			f["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		f[key] = args[i+1]
	}
	return f
}

package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type capturingLogger struct {
	testLogger
	errors []string
}

func (l *capturingLogger) Error(msg string, args ...any) { l.errors = append(l.errors, msg) }

func TestLogPanicLogsAndRepanics(t *testing.T) {
	logger := &capturingLogger{}
	ObserveUncaughtPanics(logger)
	defer ObserveUncaughtPanics(nil)

	assert.PanicsWithValue(t, "worker crashed", func() {
		defer LogPanic()
		panic("worker crashed")
	})
	assert.Equal(t, []string{"Uncaught panic"}, logger.errors)
}

func TestLogPanicWithoutPanic(t *testing.T) {
	logger := &capturingLogger{}
	ObserveUncaughtPanics(logger)
	defer ObserveUncaughtPanics(nil)

	assert.NotPanics(t, func() {
		defer LogPanic()
	})
	assert.Empty(t, logger.errors)
}

package logging

import "testing"

// TestLogger is a Logger for tests. It is silent unless built with
// NewTestLoggerVerbose, in which case lines go to t.Logf.
type TestLogger struct {
	module string
	t      *testing.T
}

// NewTestLogger creates a silent test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{module: "test"}
}

// NewTestLoggerVerbose creates a test logger that outputs to testing.T
func NewTestLoggerVerbose(t *testing.T) *TestLogger {
	return &TestLogger{module: "test", t: t}
}

func (l *TestLogger) logf(level Level, msg string, args []interface{}) {
	if l.t != nil {
		l.t.Helper()
		l.t.Logf("[%s] %s: %s %v", l.module, level, msg, args)
	}
}

// Debug logs a debug message
func (l *TestLogger) Debug(msg string, args ...interface{}) { l.logf(LevelDebug, msg, args) }

// Info logs an informational message
func (l *TestLogger) Info(msg string, args ...interface{}) { l.logf(LevelInfo, msg, args) }

// Warn logs a warning message
func (l *TestLogger) Warn(msg string, args ...interface{}) { l.logf(LevelWarn, msg, args) }

// Error logs an error message
func (l *TestLogger) Error(msg string, args ...interface{}) { l.logf(LevelError, msg, args) }

// Fatal fails the test when verbose; it never exits the process.
func (l *TestLogger) Fatal(msg string, args ...interface{}) {
	if l.t != nil {
		l.t.Helper()
		l.t.Fatalf("[%s] FATAL: %s %v", l.module, msg, args)
	}
}

// WithModule appends module to the component hierarchy ("test/session").
func (l *TestLogger) WithModule(module string) Logger {
	newModule := module
	if l.module != "" {
		newModule = l.module + "/" + module
	}
	return &TestLogger{module: newModule, t: l.t}
}

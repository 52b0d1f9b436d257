package logger

import (
	"testing"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug level", "debug", "console"},
		{"info level", "info", "console"},
		{"warn level", "warn", "console"},
		{"error level", "error", "console"},
		{"json format", "info", "json"},
		{"uppercase level", "DEBUG", "console"},
		{"unknown level falls back to info", "verbose", "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Setup(tt.level, tt.format)
			if Log == nil {
				t.Error("expected Log to be initialized")
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	if Log == nil {
		Setup("info", "console")
	}

	Log.Info("test info message", "key", "value")
	Log.Debug("test debug message", "key", "value")
	Log.Warn("test warn message", "key", "value")
	Log.Error("test error message", "key", "value")

	// odd trailing argument is dropped, not a panic
	Log.Info("odd args", "key")

	// non-string keys are stringified
	Log.Info("non-string key", 42, "value")
}

func TestComponent(t *testing.T) {
	Setup("debug", "console")
	sub := Log.Component("device")
	if sub == nil || sub == Log {
		t.Error("expected a distinct child logger")
	}
	sub.Info("component message", "device", 0)
}

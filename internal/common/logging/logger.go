package logging

import (
	"context"
	"fmt"
	"io"
	"os"
)

// NewDefaultLogger creates a stdout logger with the LOG_LEVEL level
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger installs the process-wide logger. When logFile is empty
// entries go to stdout, otherwise they are appended to the file.
func InitGlobalLogger(level, logFile string) error {
	var out io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		out = file
	}

	logger, err := NewZapLogger(LogConfig{Level: ParseLevel(level), Output: out})
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		String("level", ParseLevel(level).String()),
		String("log_file", logFile),
	)
	return nil
}

// NewNopLogger returns a logger that discards everything, for tests
func NewNopLogger() Logger {
	logger, _ := NewZapLogger(LogConfig{Level: ErrorLevel, Output: io.Discard})
	return logger
}

// MustSync flushes any buffered log entries for zap loggers
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// WithContext is a convenience function to add context to the global logger
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields is a convenience function to add fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

// ForComponent returns the global logger tagged with a component name
func ForComponent(name string) Logger {
	return GetGlobalLogger().WithFields(String("component", name))
}

// Strings creates a string slice field
func Strings(key string, values []string) Field {
	return Field{Key: key, Value: values}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

package logger

import (
	"log"
	"os"
	"strings"
)

// Level is a log severity threshold
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger provides a simple leveled logging interface
type Logger struct {
	logger *log.Logger
	level  Level
}

// NewLogger creates a new logger instance. The threshold comes from
// LOG_LEVEL (debug|info|warn|error), defaulting to info.
func NewLogger() *Logger {
	return &Logger{
		logger: log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile),
		level:  parseLevel(os.Getenv("LOG_LEVEL")),
	}
}

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if l.level <= LevelDebug {
		l.logger.Printf("[DEBUG] %s %v", msg, keysAndValues)
	}
}

// Info logs an informational message
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	if l.level <= LevelInfo {
		l.logger.Printf("[INFO] %s %v", msg, keysAndValues)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	if l.level <= LevelWarn {
		l.logger.Printf("[WARN] %s %v", msg, keysAndValues)
	}
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Printf("[ERROR] %s %v", msg, keysAndValues)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.logger.Fatalf("[FATAL] %s %v", msg, keysAndValues)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return nil
}

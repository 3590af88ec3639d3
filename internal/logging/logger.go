// Package logging wraps log/slog for the console, the web server and the
// dev backend. Every record also lands in a RingBuffer, which is what the
// TUI and /diagnostics show.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"grimm.is/rulegate/internal/brand"
	"grimm.is/rulegate/internal/clock"
)

// Level represents log severity levels.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
)

// Logger wraps slog with console-specific helpers.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  Level
	Output io.Writer
	JSON   bool

	// Name is printed before the pid on console lines. Defaults to the
	// binary name.
	Name string

	// Diagnostics receives a copy of every record. Nil means the
	// process-wide buffer returned by Diagnostics().
	Diagnostics *RingBuffer
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New creates a new Logger with the given configuration.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.Diagnostics == nil {
		cfg.Diagnostics = Diagnostics()
	}
	if cfg.Name == "" {
		cfg.Name = brand.BinaryName
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var out slog.Handler
	if cfg.JSON {
		out = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		out = NewConsoleHandler(cfg.Output, cfg.Name, opts)
	}
	return &Logger{Logger: slog.New(newTeeHandler(out, cfg.Diagnostics))}
}

// Default returns the process logger. Until SetDefault is called it logs
// info and above to stderr.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(Config{Level: LevelInfo})
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// WithComponent returns a logger with a component field.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// Audit logs a rule mutation made through the console.
func (l *Logger) Audit(action, resource string, details map[string]any) {
	args := make([]any, 0, 8+2*len(details))
	args = append(args,
		"audit", true,
		"action", action,
		"resource", resource,
		"timestamp", clock.Now().UTC().Format(time.RFC3339),
	)
	for k, v := range details {
		args = append(args, k, v)
	}
	l.Info("AUDIT", args...)
}

// WithComponent returns a component-scoped child of the default logger.
func WithComponent(name string) *Logger {
	return Default().WithComponent(name)
}

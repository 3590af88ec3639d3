package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"grimm.is/rulegate/internal/clock"
)

// ConsoleHandler is a slog.Handler that writes one human-readable line
// per record:
//
//	2026-01-02T15:04:05Z rulegate[4242]: [warn] sync: delete failed id=7
type ConsoleHandler struct {
	level  slog.Leveler
	out    io.Writer
	prefix string
	mu     *sync.Mutex
	attrs  []slog.Attr
}

// NewConsoleHandler creates a ConsoleHandler writing to out. name is the
// process name printed before the pid.
func NewConsoleHandler(out io.Writer, name string, opts *slog.HandlerOptions) *ConsoleHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &ConsoleHandler{
		level:  level,
		out:    out,
		prefix: strings.ToLower(name) + "[" + strconv.Itoa(os.Getpid()) + "]: ",
		mu:     &sync.Mutex{},
	}
}

// Enabled reports whether the handler is enabled for this level.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats the record onto a single line.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	t := r.Time
	if t.IsZero() {
		t = clock.Now()
	}

	var b strings.Builder
	b.WriteString(t.Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(h.prefix)
	b.WriteString("[" + LevelFromSlog(r.Level) + "] ")
	if component := componentOf(h.attrs, r); component != "" {
		b.WriteString(component + ": ")
	}
	b.WriteString(r.Message)

	write := func(a slog.Attr) bool {
		if a.Key != "component" {
			b.WriteByte(' ')
			writeAttr(&b, a)
		}
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

// writeAttr writes key=value, quoting values that would split the line
// into ambiguous fields.
func writeAttr(b *strings.Builder, a slog.Attr) {
	val := a.Value.String()
	if strings.ContainsAny(val, " \t\n\"") {
		val = strconv.Quote(val)
	}
	fmt.Fprintf(b, "%s=%s", a.Key, val)
}

// componentOf returns the lowercased "component" attribute, record
// attributes winning over pre-bound ones.
func componentOf(bound []slog.Attr, r slog.Record) string {
	component := ""
	for _, a := range bound {
		if a.Key == "component" {
			component = a.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			component = a.Value.String()
			return false
		}
		return true
	})
	return strings.ToLower(component)
}

// WithAttrs returns a new handler with the given attributes.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup is a no-op; console output is flat.
func (h *ConsoleHandler) WithGroup(string) slog.Handler {
	return h
}

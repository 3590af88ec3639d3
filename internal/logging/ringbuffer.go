package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is one record kept in the diagnostic buffer.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`  // "debug", "info", "warn", "error"
	Source    string            `json:"source"` // component name, "system" if unset
	Message   string            `json:"message"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// RingBuffer is a thread-safe circular buffer of log entries. It backs the
// console's diagnostic channel.
type RingBuffer struct {
	entries []Entry
	size    int
	head    int
	count   int
	mu      sync.RWMutex
}

// NewRingBuffer creates a new ring buffer with the given capacity
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Add adds an entry to the ring buffer
func (rb *RingBuffer) Add(entry Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
}

// GetLast returns the last n entries in chronological order
func (rb *RingBuffer) GetLast(n int) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.count {
		n = rb.count
	}
	if n <= 0 {
		return []Entry{}
	}

	result := make([]Entry, n)
	start := (rb.head - n + rb.size) % rb.size
	for i := 0; i < n; i++ {
		result[i] = rb.entries[(start+i)%rb.size]
	}
	return result
}

// GetAll returns all entries in chronological order
func (rb *RingBuffer) GetAll() []Entry {
	return rb.GetLast(rb.Count())
}

// Count returns the number of entries in the buffer
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Clear removes all entries from the buffer
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head = 0
	rb.count = 0
}

var (
	diagnostics     *RingBuffer
	diagnosticsOnce sync.Once
)

// Diagnostics returns the process-wide diagnostic buffer.
func Diagnostics() *RingBuffer {
	diagnosticsOnce.Do(func() {
		diagnostics = NewRingBuffer(1000)
	})
	return diagnostics
}

// LevelFromSlog converts slog.Level to string
func LevelFromSlog(level slog.Level) string {
	switch {
	case level <= slog.LevelDebug:
		return "debug"
	case level <= slog.LevelInfo:
		return "info"
	case level <= slog.LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// teeHandler forwards records to the output handler and copies every
// enabled record into a RingBuffer.
type teeHandler struct {
	next  slog.Handler
	buf   *RingBuffer
	attrs []slog.Attr
}

func newTeeHandler(next slog.Handler, buf *RingBuffer) *teeHandler {
	return &teeHandler{next: next, buf: buf}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	extra := make(map[string]string)
	for _, a := range h.attrs {
		if a.Key != "component" {
			extra[a.Key] = a.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "component" {
			extra[a.Key] = a.Value.String()
		}
		return true
	})
	if len(extra) == 0 {
		extra = nil
	}

	source := componentOf(h.attrs, r)
	if source == "" {
		source = "system"
	}

	h.buf.Add(Entry{
		Timestamp: r.Time,
		Level:     LevelFromSlog(r.Level),
		Source:    source,
		Message:   r.Message,
		Extra:     extra,
	})
	return h.next.Handle(ctx, r)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &teeHandler{next: h.next.WithAttrs(attrs), buf: h.buf, attrs: merged}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{next: h.next.WithGroup(name), buf: h.buf, attrs: h.attrs}
}

package testutils

import (
	"context"
	"log/slog"
	"sync"
)

// RecordHandler is a slog.Handler that keeps every record it handles.
// It is safe for concurrent use.
type RecordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func NewRecordHandler() *RecordHandler {
	return &RecordHandler{}
}

// Logger returns a logger writing to h.
func (h *RecordHandler) Logger() *slog.Logger {
	return slog.New(h)
}

func (h *RecordHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *RecordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

// WithAttrs and WithGroup return h itself; attributes added through them are dropped.
func (h *RecordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *RecordHandler) WithGroup(string) slog.Handler      { return h }

// Records returns a copy of the handled records.
func (h *RecordHandler) Records() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Record(nil), h.records...)
}

// Find returns the first record with the given level and message.
func (h *RecordHandler) Find(level slog.Level, msg string) (slog.Record, bool) {
	for _, r := range h.Records() {
		if r.Level == level && r.Message == msg {
			return r, true
		}
	}
	return slog.Record{}, false
}

// Count returns the number of records with the given level and message.
func (h *RecordHandler) Count(level slog.Level, msg string) int {
	n := 0
	for _, r := range h.Records() {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

// Reset drops all handled records.
func (h *RecordHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}

// Attr returns the value of the attribute key of r.
func Attr(r slog.Record, key string) (slog.Value, bool) {
	var v slog.Value
	var found bool
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			v, found = a.Value, true
			return false
		}
		return true
	})
	return v, found
}

package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Record is one line of json output. The "component" and "channel"
// attributes are promoted out of Fields so chat logs can be filtered per
// channel without parsing the field map.
type Record struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Source    string         `json:"source,omitempty"`
}

// recordHandler flattens groups: nothing in chatat logs through one, and
// keys stay as written.
type recordHandler struct {
	level     slog.Level
	addSource bool
	out       io.Writer
	mu        *sync.Mutex
	preset    []slog.Attr
}

func newRecordHandler(out io.Writer, level slog.Level, addSource bool) *recordHandler {
	return &recordHandler{level: level, addSource: addSource, out: out, mu: &sync.Mutex{}}
}

func (h *recordHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	at := r.Time
	if at.IsZero() {
		at = time.Now()
	}
	rec := Record{
		Time:    at.UTC().Format(time.RFC3339Nano),
		Level:   strings.ToLower(r.Level.String()),
		Message: r.Message,
	}

	fields := make(map[string]any)
	add := func(attr slog.Attr) bool {
		rec.set(fields, attr)
		return true
	}
	for _, attr := range h.preset {
		add(attr)
	}
	r.Attrs(add)
	if len(fields) > 0 {
		rec.Fields = fields
	}

	if h.addSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			rec.Source = fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
		}
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(append(line, '\n'))
	return err
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = append(append([]slog.Attr{}, h.preset...), attrs...)
	return &next
}

func (h *recordHandler) WithGroup(string) slog.Handler {
	return h
}

func (rec *Record) set(fields map[string]any, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if attr.Value.Kind() == slog.KindString {
		switch attr.Key {
		case "component":
			rec.Component = attr.Value.String()
			return
		case "channel":
			rec.Channel = attr.Value.String()
			return
		}
	}

	fields[attr.Key] = plain(attr.Value)
}

// plain converts a resolved value into something encoding/json renders
// readably. Errors become their message and durations their string form.
func plain(v slog.Value) any {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindGroup:
		out := make(map[string]any)
		for _, item := range v.Group() {
			out[item.Key] = plain(item.Value.Resolve())
		}
		return out
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}

	return v.Any()
}

package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one line per record:
//
//	2024-01-02T03:04:05Z WARN acquisition [1-2/B4]: band download failed error=...
//
// The component, plot and band attributes move into the line prefix; the rest
// follow the message as key=value pairs.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	attrs     []slog.Attr
	groups    []string
}

func newConsoleHandler(w io.Writer, level *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: new(sync.Mutex), w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

type pair struct {
	key   string
	value slog.Value
}

// prefix holds the attributes promoted into the line header.
type prefix struct {
	component string
	plot      string
	band      string
}

func (p *prefix) take(kv pair) bool {
	var slot *string
	switch kv.key {
	case FieldComponent:
		slot = &p.component
	case FieldPlot:
		slot = &p.plot
	case FieldBand:
		slot = &p.band
	default:
		return false
	}
	if *slot == "" {
		*slot = plainValue(kv.value)
	}
	return true
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	pairs := make([]pair, 0, len(h.attrs)+record.NumAttrs())
	for _, attr := range h.attrs {
		pairs = appendPairs(pairs, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		pairs = appendPairs(pairs, h.groups, attr)
		return true
	})

	var head prefix
	rest := pairs[:0]
	for _, kv := range pairs {
		if !head.take(kv) {
			rest = append(rest, kv)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteString(" " + levelLabel(record.Level) + " ")

	switch {
	case head.component != "":
		b.WriteString(head.component)
		if head.plot != "" {
			b.WriteString(" [" + head.plot)
			if head.band != "" {
				b.WriteString("/" + head.band)
			}
			b.WriteString("]")
		}
		b.WriteString(": ")
	case head.plot != "":
		rest = append(rest, pair{key: FieldPlot, value: slog.StringValue(head.plot)})
		if head.band != "" {
			rest = append(rest, pair{key: FieldBand, value: slog.StringValue(head.band)})
		}
	}

	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)

	if src := record.Source(); h.addSource && src != nil {
		b.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
	}
	for _, kv := range rest {
		b.WriteString(" " + kv.key + "=" + renderValue(kv.value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.derive()
	next.attrs = append(next.attrs, attrs...)
	return next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.derive()
	next.groups = append(next.groups, name)
	return next
}

func (h *consoleHandler) derive() *consoleHandler {
	next := *h
	next.attrs = slices.Clone(h.attrs)
	next.groups = slices.Clone(h.groups)
	return &next
}

// appendPairs flattens attr into dotted keys under groups.
func appendPairs(dst []pair, groups []string, attr slog.Attr) []pair {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		inner := groups
		if attr.Key != "" {
			inner = append(slices.Clone(groups), attr.Key)
		}
		for _, child := range value.Group() {
			dst = appendPairs(dst, inner, child)
		}
		return dst
	}
	if attr.Key == "" {
		return dst
	}
	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return append(dst, pair{key: key, value: value})
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

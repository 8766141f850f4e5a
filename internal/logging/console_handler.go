package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	logTimestampLayout = "2006-01-02 15:04:05"

	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiGray   = "\x1b[90m"
)

type kv struct {
	key   string
	value slog.Value
}

// consoleHandler renders one header line per record followed by indented
// fields. The component, item, and track attributes are lifted into the
// header.
type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []kv
	groups    []string
	addSource bool
	colorize  bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{
		mu:        &sync.Mutex{},
		writer:    w,
		level:     lvl,
		addSource: addSource,
		colorize:  shouldColorize(w),
	}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]kv{}, h.attrs...), flatten(h.groups, attrs)...)
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	fields := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	fields = append(fields, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = append(fields, flatten(h.groups, []slog.Attr{attr})...)
		return true
	})
	fields = dedupeByKey(fields)

	var component, itemID, track string
	rest := make([]kv, 0, len(fields))
	for _, field := range fields {
		switch field.key {
		case FieldComponent:
			component = field.value.String()
		case FieldItemID:
			itemID = field.value.String()
		case FieldTrack:
			track = field.value.String()
		default:
			rest = append(rest, field)
		}
	}

	var buf bytes.Buffer
	buf.Grow(128 + len(rest)*32)
	buf.WriteString(timestamp.In(time.Local).Format(logTimestampLayout))
	buf.WriteByte(' ')
	buf.WriteString(h.levelLabel(record.Level))
	if component != "" {
		buf.WriteString(" [")
		buf.WriteString(component)
		buf.WriteByte(']')
	}
	if subject := composeSubject(itemID, track); subject != "" {
		buf.WriteByte(' ')
		buf.WriteString(subject)
	}
	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}
	buf.WriteString(" - ")
	buf.WriteString(message)
	if h.addSource && record.PC != 0 {
		if src := record.Source(); src != nil && src.File != "" {
			buf.WriteString(" [")
			buf.WriteString(filepath.Base(src.File))
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(src.Line))
			buf.WriteByte(']')
		}
	}
	buf.WriteByte('\n')
	for _, field := range rest {
		buf.WriteString("    - ")
		buf.WriteString(field.key)
		buf.WriteString(": ")
		buf.WriteString(formatValue(field.value))
		buf.WriteByte('\n')
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) levelLabel(level slog.Level) string {
	label := levelLabel(level)
	if !h.colorize {
		return label
	}
	switch {
	case level >= slog.LevelError:
		return ansiRed + label + ansiReset
	case level >= slog.LevelWarn:
		return ansiYellow + label + ansiReset
	case level >= slog.LevelInfo:
		return ansiBlue + label + ansiReset
	default:
		return ansiGray + label + ansiReset
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func composeSubject(itemID, track string) string {
	parts := make([]string, 0, 2)
	if itemID = strings.TrimSpace(itemID); itemID != "" {
		parts = append(parts, "Item #"+itemID)
	}
	if track = strings.TrimSpace(track); track != "" {
		parts = append(parts, "("+track+")")
	}
	return strings.Join(parts, " ")
}

func flatten(groups []string, attrs []slog.Attr) []kv {
	out := make([]kv, 0, len(attrs))
	prefix := strings.Join(groups, ".")
	for _, attr := range attrs {
		attr.Value = attr.Value.Resolve()
		if attr.Equal(slog.Attr{}) {
			continue
		}
		key := attr.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		if attr.Value.Kind() == slog.KindGroup {
			var nested []string
			if prefix != "" {
				nested = append(nested, prefix)
			}
			if attr.Key != "" {
				nested = append(nested, attr.Key)
			}
			out = append(out, flatten(nested, attr.Value.Group())...)
			continue
		}
		out = append(out, kv{key: key, value: attr.Value})
	}
	return out
}

func dedupeByKey(fields []kv) []kv {
	if len(fields) < 2 {
		return fields
	}
	last := make(map[string]int, len(fields))
	for i, field := range fields {
		last[field.key] = i
	}
	out := fields[:0:0]
	for i, field := range fields {
		if last[field.key] == i {
			out = append(out, field)
		}
	}
	return out
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().In(time.Local).Format(logTimestampLayout)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

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
	"unicode"

	"golang.org/x/term"
)

// systemKey is rendered as the bracketed prefix instead of key=value
const systemKey = "system"

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
)

// output is shared by a handler and every handler derived from it
type output struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

func (o *output) write(line []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := o.w.Write(line)
	return err
}

// MavenHandler is a slog.Handler that writes one line per record:
//
//	[LEVEL] [system] [HH:MM:SS] message key=value key=value
//
// Groups become dotted key prefixes. Colors are used only when the
// destination is a terminal.
type MavenHandler struct {
	out    *output
	level  slog.Leveler
	system string
	prefix string // dotted group path for attrs added from now on
	fields []byte // attrs bound with WithAttrs, already rendered
}

// NewMavenHandler creates a handler writing to w. A nil opts logs at info.
func NewMavenHandler(w io.Writer, opts *slog.HandlerOptions) *MavenHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &MavenHandler{
		out:   &output{w: w, color: isTerminal(w)},
		level: level,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Enabled reports whether records at level are written.
func (h *MavenHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle renders r as a single line.
func (h *MavenHandler) Handle(_ context.Context, r slog.Record) error {
	label, color := levelStyle(r.Level)

	line := make([]byte, 0, 128+len(h.fields))
	line = h.bracket(line, label, color)
	if h.system != "" {
		line = append(line, ' ')
		line = h.bracket(line, h.system, "")
	}
	if !r.Time.IsZero() {
		line = append(line, ' ')
		line = h.bracket(line, r.Time.Format(time.TimeOnly), ansiGray)
	}
	line = append(line, ' ')
	line = append(line, r.Message...)
	line = append(line, h.fields...)

	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && a.Key == systemKey {
			return true
		}
		line = appendField(line, h.prefix, a)
		return true
	})

	return h.out.write(append(line, '\n'))
}

func (h *MavenHandler) bracket(line []byte, text, color string) []byte {
	if h.out.color && color != "" {
		line = append(line, color...)
		line = append(line, '[')
		line = append(line, text...)
		line = append(line, ']')
		return append(line, ansiReset...)
	}
	line = append(line, '[')
	line = append(line, text...)
	return append(line, ']')
}

// WithAttrs binds attrs to every record. A top-level system attr replaces
// the bracketed system name.
func (h *MavenHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.fields = append([]byte(nil), h.fields...)
	for _, a := range attrs {
		if h.prefix == "" && a.Key == systemKey {
			next.system = a.Value.Resolve().String()
			continue
		}
		next.fields = appendField(next.fields, h.prefix, a)
	}
	return &next
}

// WithGroup nests attrs added afterwards under name.
func (h *MavenHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// appendField renders " key=value", flattening groups into dotted keys
func appendField(line []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return line
	}

	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range a.Value.Group() {
			line = appendField(line, prefix, member)
		}
		return line
	}

	line = append(line, ' ')
	line = append(line, prefix...)
	line = append(line, a.Key...)
	line = append(line, '=')
	return append(line, quoteIfNeeded(formatValue(a.Value))...)
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().Format("2006-01-02T15:04:05")
	case slog.KindDuration:
		return v.Duration().String()
	default:
		return fmt.Sprint(v.Any())
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '"' || r == '='
	}) {
		return strconv.Quote(s)
	}
	return s
}

// levelStyle maps a level to its label and color. Custom levels take the
// label of the nearest standard level below them.
func levelStyle(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return "ERROR", ansiRed
	case level >= slog.LevelWarn:
		return "WARN", ansiYellow
	case level >= slog.LevelInfo:
		return "INFO", ansiCyan
	default:
		return "DEBUG", ansiGray
	}
}

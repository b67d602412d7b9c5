// Package slogutil provides the slog handlers and helpers used by gitpack logging.
package slogutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Scope attribute keys. A record carrying them is prefixed with the
// sandbox it works on and the program or target it builds, so a build log
// can be grepped per sandbox.
const (
	SandboxKey = "sandbox"
	TargetKey  = "target"
	ProgramKey = "program"
)

// LineHandler writes one record per line:
//
//	2024-03-01 14:02:11 WARN  [CY49.mary_dev.2y/masterodb] Target failed | error="exit status 2"
//
// The scope prefix is omitted when no scope attribute is set.
type LineHandler struct {
	w     io.Writer
	level slog.Leveler
	mu    *sync.Mutex

	// sandbox and target come from WithAttrs; a record may override them
	sandbox string
	target  string
	// prefix is the dotted group path of the following attrs
	prefix string
	// pre holds attrs already rendered by WithAttrs
	pre []byte
}

// NewLineHandler creates a line handler writing to w.
func NewLineHandler(w io.Writer, opts *slog.HandlerOptions) *LineHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &LineHandler{w: w, level: level, mu: &sync.Mutex{}}
}

func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	sandbox, target := h.sandbox, h.target
	var tail bytes.Buffer
	tail.Write(h.pre)
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix == "" && scope(a, &sandbox, &target) {
			return true
		}
		appendAttr(&tail, h.prefix, a)
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(r.Time.Format(time.DateTime))
	buf.WriteByte(' ')
	fmt.Fprintf(&buf, "%-5s ", levelName(r.Level))
	if sandbox != "" || target != "" {
		buf.WriteByte('[')
		buf.WriteString(sandbox)
		if target != "" {
			if sandbox != "" {
				buf.WriteByte('/')
			}
			buf.WriteString(target)
		}
		buf.WriteString("] ")
	}
	buf.WriteString(r.Message)
	if tail.Len() > 0 {
		buf.WriteString(" |")
		buf.Write(tail.Bytes())
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	var pre bytes.Buffer
	pre.Write(h.pre)
	for _, a := range attrs {
		if h.prefix == "" && scope(a, &clone.sandbox, &clone.target) {
			continue
		}
		appendAttr(&pre, h.prefix, a)
	}
	clone.pre = pre.Bytes()
	return &clone
}

func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

// scope moves a top-level scope attribute into sandbox or target and
// reports whether it did.
func scope(a slog.Attr, sandbox, target *string) bool {
	switch a.Key {
	case SandboxKey:
		*sandbox = a.Value.Resolve().String()
	case TargetKey, ProgramKey:
		*target = a.Value.Resolve().String()
	default:
		return false
	}
	return true
}

func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range v.Group() {
			appendAttr(buf, prefix, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(formatValue(v))
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

// formatValue renders v, quoting strings a reader could not split on
// blanks, such as git output and paths with spaces.
func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		return v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=|") {
		return strconv.Quote(s)
	}
	return s
}

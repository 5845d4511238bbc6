// Package eventlog routes log records through the listener system, so the
// network table's log channel carries the daemon's own logs.
package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/btouchard/tablecast/internal/event"
	"github.com/btouchard/tablecast/internal/handle"
	"github.com/btouchard/tablecast/internal/listener"
)

// Notifier is the part of listener.Storage the handler needs.
type Notifier interface {
	NotifyLog(flags event.Kind, level uint, filename string, line uint, message string)
}

// Subscribers reports whether anything listens to a category.
type Subscribers interface {
	HasSubscribers(kind event.Kind) bool
}

// Handler is a slog.Handler that publishes each record as a log-message
// event. Attributes are appended to the message as key=value pairs.
type Handler struct {
	notifier    Notifier
	level       slog.Leveler
	subscribers Subscribers
	attrs       []groupedAttr
	groups      []string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithSubscribers disables the handler while no log listener exists, so
// records are not formatted for nobody.
func WithSubscribers(s Subscribers) HandlerOption {
	return func(h *Handler) {
		h.subscribers = s
	}
}

type groupedAttr struct {
	prefix string
	attr   slog.Attr
}

// NewHandler creates a Handler publishing records at or above level.
func NewHandler(n Notifier, level slog.Leveler, opts ...HandlerOption) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	h := &Handler{notifier: n, level: level}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	if level < h.level.Level() {
		return false
	}
	return h.subscribers == nil || h.subscribers.HasSubscribers(event.LogMessage)
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	level := Level(r.Level)

	var file string
	var line uint
	if r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		file = filepath.Base(f.File)
		line = uint(f.Line)
	}

	var sb strings.Builder
	sb.WriteString(r.Message)
	for _, ga := range h.attrs {
		writeAttr(&sb, ga.prefix, ga.attr)
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, prefix, a)
		return true
	})

	h.notifier.NotifyLog(event.LogMessage|event.LevelFlag(level), level, file, line, sb.String())
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")
	c := *h
	c.attrs = append([]groupedAttr(nil), h.attrs...)
	for _, a := range attrs {
		c.attrs = append(c.attrs, groupedAttr{prefix: prefix, attr: a})
	}
	return &c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	return &c
}

func writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(sb, key, ga)
		}
		return
	}
	fmt.Fprintf(sb, " %s=%v", key, a.Value.Any())
}

// Level maps a slog level onto a network table log level.
func Level(l slog.Level) uint {
	switch {
	case l >= slog.LevelError+4:
		return event.LevelCritical
	case l >= slog.LevelError:
		return event.LevelError
	case l >= slog.LevelWarn:
		return event.LevelWarning
	case l >= slog.LevelInfo:
		return event.LevelInfo
	default:
		return event.LevelDebug
	}
}

// Registrar adds listeners to pollers. Both listener.Storage and
// service.Hub satisfy it.
type Registrar interface {
	AddPollerListener(poller handle.Handle) handle.Handle
	Activate(lh handle.Handle, mask event.Kind, finish listener.FinishFunc)
}

// AddLogger registers a listener on poller for log messages with a level
// in [minLevel, maxLevel]. Returns the zero handle if the poller is stale.
func AddLogger(s Registrar, poller handle.Handle, minLevel, maxLevel uint) handle.Handle {
	h := s.AddPollerListener(poller)
	if !h.IsValid() {
		return h
	}
	s.Activate(h, event.LevelMask(minLevel, maxLevel), nil)
	return h
}

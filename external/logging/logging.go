package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/comzer-gov/casbot/internal/webhook"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level    slog.Level
	FilePath string
	// Forwarder receives Warn and above when set.
	Forwarder *webhook.Forwarder
}

// NewLogger builds the process logger: JSON on stdout, plus a rotating file and
// the Discord forwarder when configured.
func NewLogger(stdout io.Writer, opt Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opt.Level}
	handlers := []slog.Handler{slog.NewJSONHandler(stdout, handlerOpts)}
	if opt.FilePath != "" {
		_ = os.MkdirAll(filepath.Dir(opt.FilePath), 0o755)
		handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   opt.FilePath,
			MaxSize:    25,
			MaxBackups: 5,
			MaxAge:     30,
		}, handlerOpts))
	}
	if opt.Forwarder != nil {
		handlers = append(handlers, &forwardHandler{forwarder: opt.Forwarder, level: slog.LevelWarn})
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(fanout{hs: handlers})
}

type fanout struct{ hs []slog.Handler }

func (f fanout) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f.hs {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f.hs {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := make([]slog.Handler, 0, len(f.hs))
	for _, h := range f.hs {
		nh = append(nh, h.WithAttrs(attrs))
	}
	return fanout{hs: nh}
}

func (f fanout) WithGroup(name string) slog.Handler {
	nh := make([]slog.Handler, 0, len(f.hs))
	for _, h := range f.hs {
		nh = append(nh, h.WithGroup(name))
	}
	return fanout{hs: nh}
}

// forwardHandler renders records as single lines for the Discord log channel.
type forwardHandler struct {
	forwarder *webhook.Forwarder
	level     slog.Level
	attrs     []slog.Attr
	group     string
}

func (h *forwardHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= h.level
}

func (h *forwardHandler) Handle(_ context.Context, r slog.Record) error {
	if strings.Contains(r.Message, webhook.FailureMessage) {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", r.Time.Format("2006-01-02 15:04:05"), r.Level, r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, h.group, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	h.forwarder.Push(b.String())
	return nil
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	fmt.Fprintf(b, " %s=%v", key, a.Value.Resolve())
}

func (h *forwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

func (h *forwardHandler) WithGroup(name string) slog.Handler {
	c := *h
	if c.group != "" {
		name = c.group + "." + name
	}
	c.group = name
	return &c
}

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// prettyHandler renders colourised console lines through tint and adds
// the request metadata stored in context.
type prettyHandler struct {
	next slog.Handler
}

func newPrettyHandler(w io.Writer, level slog.Leveler, noColor bool) *prettyHandler {
	return &prettyHandler{next: tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	})}
}

// stdoutIsTerminal reports whether stdout is attached to a character device.
func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (h *prettyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *prettyHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid := RIDFrom(ctx); rid != "" {
		r.AddAttrs(slog.String("rid", CompactRID(rid)))
	}
	if uid := UserIDFrom(ctx); uid != 0 {
		r.AddAttrs(slog.Int64("user_id", uid))
	}
	if hid := HandlerFrom(ctx); hid != "" {
		r.AddAttrs(slog.String("handler", hid))
	}
	return h.next.Handle(ctx, r)
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &prettyHandler{next: h.next.WithAttrs(attrs)}
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	return &prettyHandler{next: h.next.WithGroup(name)}
}

package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/travelwallet/core/logger"
	tghelpers "github.com/m3rciful/travelwallet/core/telegram/helpers"
	"github.com/m3rciful/travelwallet/core/telegram/middleware"
)

// summary emits one "handler.handled" line per routed update.
type summary struct {
	name   string
	start  time.Time
	extras []slog.Attr
}

func newSummary(name string, extras ...slog.Attr) summary {
	return summary{name: name, start: time.Now(), extras: extras}
}

// run executes fn under the summary's handler name and logs its result.
func (s summary) run(c tele.Context, fn func() error) error {
	tghelpers.WithHandler(c, s.name)
	err := fn()
	status := "ok"
	if err != nil {
		status = "fail"
	}
	s.log(c, status, err)
	return err
}

// skip logs an update that no handler claimed.
func (s summary) skip(c tele.Context) {
	s.log(c, "skip", nil)
}

func (s summary) log(c tele.Context, status string, err error) {
	ctx := tghelpers.WithHandler(c, s.name)
	msgs, kb := middleware.GetCounters(c)
	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.name),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.Took(s.start).Milliseconds()),
	}, s.extras...)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", attrs...)
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(kind, key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		key = "unknown"
	}
	return kind + "." + strings.ReplaceAll(key, " ", "_")
}

// errorCode prefers an explicit Code() anywhere in the chain, then the
// outermost error type name.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var c interface{ Code() string }
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}

package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func captureLine(t *testing.T, format logFormat, emit func(log *slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	var handler slog.Handler
	if format == formatPretty {
		handler = newPrettyHandler(aw, slog.LevelInfo, true)
	} else {
		handler = newStructuredHandler(handlerConfig{
			level:    slog.LevelInfo,
			writer:   aw,
			format:   format,
			keyOrder: append([]string(nil), defaultKeyOrder...),
		})
	}
	emit(slog.New(handler))
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", ComponentWallet), slog.LevelInfo, "expense.recorded",
			slog.String("status", "ok"),
			slog.Int64("trip_id", 3),
		)
	})
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=wallet", "event=expense.recorded", "status=ok", "rid=rid-123", "update_id=42", "user_id=7"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithRID(context.Background(), "rid-json")

	line := captureLine(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", ComponentLedger), slog.LevelError, "expense.record",
			slog.String("status", "fail"),
			Err(errors.New("boom")),
			slog.Int64("trip_id", 11),
		)
	})
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"ledger"`, `"event":"expense.record"`, `"status":"fail"`, `"rid":"rid-json"`, `"trip_id":11`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	rawRID := "123:456:789"
	ctx := WithRID(context.Background(), rawRID)

	t.Run("kv omits full rid", func(t *testing.T) {
		line := captureLine(t, formatKV, func(log *slog.Logger) {
			LogEvent(ctx, log, slog.LevelInfo, "rid.test")
		})
		if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
			t.Fatalf("expected compact rid, got %s", line)
		}
		if strings.Contains(line, "rid_full=") {
			t.Fatalf("rid_full should be omitted in KV output, got %s", line)
		}
	})

	t.Run("json keeps full rid", func(t *testing.T) {
		line := captureLine(t, formatJSON, func(log *slog.Logger) {
			LogEvent(ctx, log, slog.LevelInfo, "rid.test")
		})
		if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
			t.Fatalf("expected compact rid in JSON, got %s", line)
		}
		if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
			t.Fatalf("expected rid_full in JSON output, got %s", line)
		}
	})
}

func TestStructuredHandlerDurationKeys(t *testing.T) {
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(context.Background(), log, slog.LevelInfo, "quote.done",
			slog.Duration("duration", 1500*time.Millisecond),
			slog.Duration("backoff", 20*time.Millisecond),
		)
	})
	for _, want := range []string{"duration_ms=1500", "backoff_ms=20"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}

func TestStructuredHandlerDropsUnknownOutcome(t *testing.T) {
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(context.Background(), log, slog.LevelInfo, "x", slog.String("outcome", "sideways"))
	})
	if strings.Contains(line, "outcome=") {
		t.Fatalf("unexpected outcome in %s", line)
	}
}

func TestPrettyHandlerAddsContext(t *testing.T) {
	ctx := WithRID(context.Background(), "1:2:3")
	ctx = WithUpdateMeta(ctx, 1, 3, 2)

	line := captureLine(t, formatPretty, func(log *slog.Logger) {
		log.InfoContext(ctx, "trip.created", slog.Int64("trip_id", 5))
	})
	for _, want := range []string{"trip.created", "trip_id=5", "rid=" + CompactRID("1:2:3"), "user_id=3"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	got := SanitizeLimit("tok\x00yo\u200b trip", 6)
	if got != "tokyo " {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}

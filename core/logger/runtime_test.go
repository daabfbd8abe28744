package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestScopeAccumulates(t *testing.T) {
	ctx := WithRID(context.Background(), "7:8:9")
	ctx = WithUpdateMeta(ctx, 7, 9, 8)
	ctx = WithHandler(ctx, "cmd:/balance")
	ctx = WithHandler(ctx, "")

	if RIDFrom(ctx) != "7:8:9" || UpdateIDFrom(ctx) != 7 || UserIDFrom(ctx) != 9 || ChatIDFrom(ctx) != 8 {
		t.Fatalf("scope lost identifiers: %+v", scopeFrom(ctx))
	}
	if HandlerFrom(ctx) != "cmd:/balance" {
		t.Fatalf("handler = %q", HandlerFrom(ctx))
	}
	if FromContext(ctx) != L {
		t.Fatal("expected base logger without WithLogger")
	}

	fields := map[string]any{"user_id": int64(1)}
	addContextFields(ctx, fields)
	if fields["user_id"] != int64(1) || fields["chat_id"] != int64(8) || fields["handler"] != "cmd:/balance" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestSanitizeDropsFormatRunes(t *testing.T) {
	if got := Sanitize("Ja\x00pan\u200b\n"); got != "Japan\n" {
		t.Fatalf("Sanitize = %q", got)
	}
	if got := SanitizeLimit("Thailand", 4); got != "Thai" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("x", 0); got != "" {
		t.Fatalf("SanitizeLimit zero = %q", got)
	}
}

func TestCompactRID(t *testing.T) {
	if got := CompactRID(BuildRID(36, -100, 35)); got != "10.-2s.z" {
		t.Fatalf("CompactRID = %q", got)
	}
	if got := CompactRID("not-a-rid"); got != "not-a-rid" {
		t.Fatalf("CompactRID passthrough = %q", got)
	}
}

func TestStatusAndRounding(t *testing.T) {
	if Status(nil) != "ok" || Status(errors.New("x")) != "fail" || Status(fmt.Errorf("w: %w", context.Canceled)) != "cancelled" {
		t.Fatal("unexpected status mapping")
	}
	if RoundMS(-time.Second) != 0 || RoundMS(1499*time.Microsecond) != time.Millisecond {
		t.Fatal("unexpected rounding")
	}
	if s, cut := SummarizeStrings([]string{"a", "b", "c"}, 2); s != "a, b" || !cut {
		t.Fatalf("SummarizeStrings = %q, %v", s, cut)
	}
}

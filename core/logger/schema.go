package logger

import (
	"slices"
	"strings"
)

// Level names as they appear in output.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

func levelName(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "":
		return LevelInfo
	case "WARNING":
		return LevelWarn
	default:
		return l
	}
}

// enum restricts the values of one field. Values outside the list are
// dropped unless keep is set, in which case they pass through lower-cased.
type enum struct {
	values []string
	keep   bool
}

// Dialogue outcomes (advance, retry, done, aborted) share the outcome field with handler outcomes.
var enums = map[string]enum{
	"status":  {values: []string{"ok", "fail", "skip", "retry", "rate_limited", "cancelled"}, keep: true},
	"cache":   {values: []string{"hit", "miss", "refresh"}},
	"outcome": {values: []string{"ok", "fail", "cancelled", "rate_limited", "advance", "retry", "done", "aborted"}},
}

func (e enum) normalize(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", false
	}
	if slices.Contains(e.values, v) || e.keep {
		return v, true
	}
	return "", false
}

// defaultKeyOrder puts identity fields first, then wallet fields, then errors.
// Keys not listed follow in alphabetical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler", "op", "cb_key",
	"outcome", "duration_ms",
	"state", "next_state",
	"trip_id", "expense_id", "category_id",
	"from", "to", "amount", "rate", "country", "currency", "cache", "count",
	"mode", "listen", "driver", "db", "host", "port", "http_code",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms", "rate_limited",
}

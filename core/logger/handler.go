package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON   logFormat = "json"
	formatKV     logFormat = "kv"
	formatPretty logFormat = "pretty"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// field is a flattened attribute: group names are joined into the key with dots.
type field struct {
	key string
	val any
}

// structuredHandler writes one line per record with a stable key order,
// as JSON or as key=value pairs.
type structuredHandler struct {
	cfg    handlerConfig
	pre    []field
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.pre = slices.Clone(h.pre)
	for _, a := range attrs {
		clone.pre = appendFields(clone.pre, h.prefix, a)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	fields := make(map[string]any, 16)
	for _, f := range h.pre {
		fields[f.key] = f.val
	}
	r.Attrs(func(a slog.Attr) bool {
		for _, f := range appendFields(nil, h.prefix, a) {
			fields[f.key] = f.val
		}
		return true
	})
	addContextFields(ctx, fields)

	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = levelName(r.Level.String())
	asJSON := h.cfg.format == formatJSON
	if asJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}
	finish(fields, r.Message, asJSON)

	var buf bytes.Buffer
	if asJSON {
		if err := encodeJSON(&buf, fields, h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		encodeKV(&buf, fields, h.cfg.keyOrder)
	}
	buf.WriteByte('\n')
	_, err := h.cfg.writer.Write(buf.Bytes())
	return err
}

// finish fills event and component defaults, compacts the rid, applies the
// enum tables and removes empty values.
func finish(fields map[string]any, msg string, keepFullRID bool) {
	if rid := text(fields, "rid"); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if _, set := fields["rid_full"]; keepFullRID && !set {
				fields["rid_full"] = rid
			}
			fields["rid"] = compact
		}
	}
	if text(fields, "event") == "" {
		fields["event"] = orDefault(msg, "unknown")
	}
	if text(fields, "component") == "" {
		fields["component"] = ComponentApp
	}
	for key, e := range enums {
		if v, ok := fields[key]; ok {
			if norm, valid := e.normalize(fmt.Sprint(v)); valid {
				fields[key] = norm
			} else {
				delete(fields, key)
			}
		}
	}
	for k, v := range fields {
		if v == nil || v == "" {
			delete(fields, k)
		}
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func text(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// appendFields flattens a into dst, expanding groups and converting values to
// JSON-friendly scalars. Duration keys gain an _ms suffix.
func appendFields(dst []field, prefix string, a slog.Attr) []field {
	v := a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			dst = appendFields(dst, key, child)
		}
		return dst
	}
	if key == "" {
		return dst
	}
	if d, ok := asDuration(v); ok {
		return append(dst, field{key: durationKey(key), val: RoundMS(d).Milliseconds()})
	}
	if val, ok := scalar(v); ok {
		dst = append(dst, field{key: key, val: val})
	}
	return dst
}

func asDuration(v slog.Value) (time.Duration, bool) {
	if v.Kind() == slog.KindDuration {
		return v.Duration(), true
	}
	if v.Kind() == slog.KindAny {
		d, ok := v.Any().(time.Duration)
		return d, ok
	}
	return 0, false
}

func scalar(v slog.Value) (any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return v.Bool(), true
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return int64(u), true
		}
		return v.Uint64(), true
	case slog.KindFloat64:
		return v.Float64(), true
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return nil, false
	case error:
		return x.Error(), true
	case string:
		return strings.TrimSpace(x), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}

// durationKey makes the unit explicit: duration becomes duration_ms, backoff becomes backoff_ms.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

// orderedKeys lists the keys of order present in fields, then the rest sorted.
func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	for _, k := range order {
		if _, ok := fields[k]; ok && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range fields {
		if !slices.Contains(keys, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func encodeJSON(buf *bytes.Buffer, fields map[string]any, order []string) error {
	buf.WriteByte('{')
	for i, k := range orderedKeys(fields, order) {
		data, err := json.Marshal(fields[k])
		if err != nil {
			return fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return nil
}

func encodeKV(buf *bytes.Buffer, fields map[string]any, order []string) {
	for i, k := range orderedKeys(fields, order) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		s := fmt.Sprint(fields[k])
		if strings.IndexFunc(s, needsQuote) >= 0 {
			s = strconv.Quote(s)
		}
		buf.WriteString(s)
	}
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/m3rciful/travelwallet/core/buildinfo"
	coreconfig "github.com/m3rciful/travelwallet/core/config"
)

// Component names used across the application.
const (
	ComponentApp    = "app"
	ComponentDB     = "db"
	ComponentMig    = "db.migrate"
	ComponentSeed   = "db.seed"
	ComponentTG     = "tg"
	ComponentWire   = "tg.wire"
	ComponentLedger = "ledger"
	ComponentWallet = "wallet"
	ComponentRates  = "rates"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdowned bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	debug         = &debugSampler{gate: defaultDebugGate()}
	traceOverride bool

	// L is the base logger. It discards output until InitLogger runs.
	L = slog.New(slog.NewTextHandler(io.Discard, nil))

	// DB logs database connection events.
	DB = L
	// MIG logs schema migration events.
	MIG = L
	// SEED logs reference data seeding.
	SEED = L
	// TG logs Telegram transport events.
	TG = L
	// TWire logs Telegram wiring steps.
	TWire = L
)

// InitLogger configures the global structured logger. Calls after the first are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		st := resolve(cfg)
		levelVar.Set(st.level)

		debug.set(debugGate(cfg))
		traceOverride = detectTraceFlag()

		outputs, closers := buildOutputs(cfg)
		logClosers = closers
		logWriter = newAsyncWriter(outputs, 64*1024)

		var handler slog.Handler
		if st.format == formatPretty {
			handler = newPrettyHandler(logWriter, &levelVar, !stdoutIsTerminal())
		} else {
			handler = newStructuredHandler(handlerConfig{
				level:    &levelVar,
				writer:   logWriter,
				format:   st.format,
				keyOrder: st.order,
			})
		}

		L = slog.New(handler)
		slog.SetDefault(L)

		wireComponents()
		logStartup(st.profile)
	})
	return nil
}

func wireComponents() {
	DB = L.With("component", ComponentDB)
	MIG = L.With("component", ComponentMig)
	SEED = L.With("component", ComponentSeed)
	TG = L.With("component", ComponentTG)
	TWire = L.With("component", ComponentWire)
}

func logStartup(profile string) {
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
		slog.String("component", ComponentApp),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", profile),
	)
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdowned {
		return nil
	}
	shutdowned = true

	var errs []error
	if logWriter != nil {
		if err := logWriter.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := logWriter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range logClosers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// settings is the resolved logging section of the config.
type settings struct {
	format  logFormat
	level   slog.Level
	order   []string
	profile string
}

func resolve(cfg *coreconfig.Config) settings {
	st := settings{format: formatJSON, level: slog.LevelInfo, order: slices.Clone(defaultKeyOrder), profile: "prod"}
	if cfg == nil {
		return st
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		st.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text":
		st.format = formatKV
	case "pretty", "console":
		st.format = formatPretty
	case "json":
	default:
		if st.profile == "debug" || st.profile == "dev" {
			st.format = formatPretty
		}
	}
	// slog accepts DEBUG, INFO, WARN and ERROR in any case.
	level := strings.TrimSpace(lc.Level)
	if strings.EqualFold(level, "warning") {
		level = "warn"
	}
	if err := st.level.UnmarshalText([]byte(level)); err != nil {
		st.level = slog.LevelInfo
	}
	if raw := strings.TrimSpace(lc.KeysOrder); raw != "" && raw != "default" {
		var order []string
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
		if len(order) > 0 {
			st.order = order
		}
	}
	return st
}

func buildOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer) {
	writers := []io.Writer{os.Stdout}
	if cfg == nil {
		return writers, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	file := strings.TrimSpace(cfg.Logging.File)
	if dir == "" || file == "" {
		return writers, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: failed to create log dir %s: %v", dir, err)
		return writers, nil
	}
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: failed to open log file %s: %v", path, err)
		return writers, nil
	}
	return append(writers, f), []io.Closer{f}
}

// LogEvent logs an event through logg, falling back to the context logger.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component constructs a logger scoped to the provided component attribute.
func Component(name string) *slog.Logger {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return L
	}
	return L.With("component", trimmed)
}

// Event logs with component scope resolved automatically.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// Err renders err under the conventional "err" key.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("err", err.Error())
}

func defaultDebugGate() *rate.Sometimes { return &rate.Sometimes{Every: 50} }

func debugGate(cfg *coreconfig.Config) *rate.Sometimes {
	if cfg == nil || strings.TrimSpace(cfg.Logging.DebugSample) == "" {
		return defaultDebugGate()
	}
	gate, ok := parseSampleSpec(cfg.Logging.DebugSample)
	if !ok {
		return defaultDebugGate()
	}
	return gate
}

func detectTraceFlag() bool {
	return isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether debug-level details should be logged for high-volume events.
func ShouldSampleDebug() bool {
	if traceOverride {
		return true
	}
	return debug.Allow()
}

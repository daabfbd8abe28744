// Package metrics exposes Prometheus counters for the bot on a dedicated registry.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/travelwallet/core/logger"
	"github.com/m3rciful/travelwallet/core/telegram/state"
)

const namespace = "travelwallet"

// Config selects where metrics are served. An empty Listen disables the endpoint.
type Config struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
	Path   string `yaml:"path" envconfig:"METRICS_PATH"`
}

// Normalize applies defaults.
func (c *Config) Normalize() {
	c.Listen = strings.TrimSpace(c.Listen)
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// Metrics holds every counter the bot reports.
type Metrics struct {
	registry *prometheus.Registry

	updates      *prometheus.CounterVec
	dialogue     *prometheus.CounterVec
	expenses     prometheus.Counter
	quotes       *prometheus.CounterVec
	currency     *prometheus.CounterVec
	busyRetries  *prometheus.CounterVec
	sendFailures *prometheus.CounterVec
}

// New registers the counters plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry:     prometheus.NewRegistry(),
		updates:      counterVec("updates_total", "Telegram updates received, by kind.", "kind"),
		dialogue:     counterVec("dialogue_steps_total", "Dialogue steps, by state and outcome.", "state", "outcome"),
		quotes:       counterVec("rate_requests_total", "Exchange rate service calls, by operation and outcome.", "op", "outcome"),
		currency:     counterVec("currency_cache_lookups_total", "Country to currency cache lookups, by result.", "result"),
		busyRetries:  counterVec("storage_busy_retries_total", "Storage transactions replayed after lock contention, by operation.", "op"),
		sendFailures: counterVec("send_failures_total", "Outbound Telegram calls that failed for good, by action and error kind.", "action", "kind"),
		expenses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_recorded_total",
			Help:      "Expenses recorded against trips.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates, m.dialogue, m.expenses, m.quotes, m.currency, m.busyRetries, m.sendFailures,
	)
	return m
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
}

// Registry returns the registry the counters live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveUpdate(kind string) { m.updates.WithLabelValues(kind).Inc() }

func (m *Metrics) DialogueOutcome(st state.State, outcome string) {
	m.dialogue.WithLabelValues(string(st), outcome).Inc()
}

func (m *Metrics) ExpenseRecorded() { m.expenses.Inc() }

func (m *Metrics) RateRequest(op, outcome string) { m.quotes.WithLabelValues(op, outcome).Inc() }

func (m *Metrics) CurrencyCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.currency.WithLabelValues(result).Inc()
}

func (m *Metrics) BusyRetry(op string) { m.busyRetries.WithLabelValues(op).Inc() }

func (m *Metrics) SendFailed(action, kind string) { m.sendFailures.WithLabelValues(action, kind).Inc() }

// Serve exposes the handler on cfg.Listen until ctx is done. It returns at once when Listen is empty.
func Serve(ctx context.Context, cfg Config, h http.Handler) error {
	if cfg.Listen == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, h)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, logger.ComponentApp, "metrics.listen", slog.String("listen", cfg.Listen), slog.String("path", cfg.Path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

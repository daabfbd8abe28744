// Package rates talks to the exchangerate.host API and maps country names to currency codes.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/m3rciful/travelwallet/core/logger"
	"github.com/m3rciful/travelwallet/core/telegram/netutil"
)

// ErrUnavailable is returned when the rate service cannot produce a usable answer.
var ErrUnavailable = errors.New("rates: service unavailable")

const currenciesKey = "currencies"

// Config describes the exchange-rate API.
type Config struct {
	BaseURL           string  `yaml:"base_url" envconfig:"RATES_BASE_URL"`
	AccessKey         string  `yaml:"access_key" envconfig:"CURRENCY_ACCESS_KEY"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" envconfig:"RATES_TIMEOUT_SECONDS"`
	RequestsPerSecond float64 `yaml:"requests_per_second" envconfig:"RATES_RPS"`
	// CurrencyListTTLMinutes bounds how long the supported-currency list is reused.
	CurrencyListTTLMinutes int `yaml:"currency_list_ttl_minutes" envconfig:"RATES_CURRENCY_LIST_TTL_MINUTES"`
}

// Normalize applies defaults.
func (c *Config) Normalize() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = "https://api.exchangerate.host"
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid rates.base_url: %w", err)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.CurrencyListTTLMinutes <= 0 {
		c.CurrencyListTTLMinutes = 360
	}
	return nil
}

// Quote is the conversion of Amount from one currency into another.
type Quote struct {
	Amount    float64
	Converted float64
	// Rate is the number of target units per one source unit.
	Rate float64
	At   time.Time
}

// Client calls the exchangerate.host API. It is safe for concurrent use.
type Client struct {
	http       *http.Client
	baseURL    string
	accessKey  string
	limiter    *rate.Limiter
	currencies *cache.Cache
	listTTL    time.Duration

	// Observe, when set, receives the outcome of every outbound call.
	Observe func(op, outcome string)
}

// NewClient builds a client from cfg. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = netutil.NewClient(netutil.ClientOptions{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
			Retries: 1,
			Backoff: 300 * time.Millisecond,
		})
	}
	ttl := time.Duration(cfg.CurrencyListTTLMinutes) * time.Minute
	return &Client{
		http:       httpClient,
		baseURL:    cfg.BaseURL,
		accessKey:  cfg.AccessKey,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		currencies: cache.New(ttl, 2*ttl),
		listTTL:    ttl,
	}, nil
}

type apiError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

type convertResponse struct {
	Success bool `json:"success"`
	Info    struct {
		Timestamp int64   `json:"timestamp"`
		Quote     float64 `json:"quote"`
	} `json:"info"`
	Result float64   `json:"result"`
	Error  *apiError `json:"error"`
}

type listResponse struct {
	Success    bool              `json:"success"`
	Currencies map[string]string `json:"currencies"`
	Error      *apiError         `json:"error"`
}

// Quote converts amount from one currency to another. Any failure is reported as ErrUnavailable.
func (c *Client) Quote(ctx context.Context, amount float64, from, to string) (Quote, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if amount <= 0 {
		return Quote{}, fmt.Errorf("%w: amount must be positive", ErrUnavailable)
	}
	params := url.Values{}
	params.Set("from", from)
	params.Set("to", to)
	params.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))

	var resp convertResponse
	if err := c.call(ctx, "convert", params, &resp); err != nil {
		return Quote{}, err
	}
	if !resp.Success {
		return Quote{}, c.fail(ctx, "convert", apiErrorText(resp.Error))
	}
	q := Quote{Amount: amount, Converted: resp.Result, Rate: resp.Info.Quote, At: time.Now()}
	if resp.Info.Timestamp > 0 {
		q.At = time.Unix(resp.Info.Timestamp, 0)
	}
	if q.Rate <= 0 && q.Converted > 0 {
		q.Rate = q.Converted / amount
	}
	if q.Converted <= 0 && q.Rate > 0 {
		q.Converted = amount * q.Rate
	}
	if q.Rate <= 0 {
		return Quote{}, c.fail(ctx, "convert", "non-positive quote")
	}
	c.observe("convert", "ok")
	logger.Debug(ctx, logger.ComponentRates, "quote.ok",
		slog.String("from", from),
		slog.String("to", to),
		slog.Float64("amount", amount),
		slog.Float64("rate", q.Rate),
	)
	return q, nil
}

// Currencies returns the supported currency codes. The list is cached for the configured TTL.
func (c *Client) Currencies(ctx context.Context) (map[string]string, error) {
	if v, ok := c.currencies.Get(currenciesKey); ok {
		return v.(map[string]string), nil
	}
	var resp listResponse
	if err := c.call(ctx, "list", url.Values{}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Currencies) == 0 {
		return nil, c.fail(ctx, "list", apiErrorText(resp.Error))
	}
	c.observe("list", "ok")
	c.currencies.Set(currenciesKey, resp.Currencies, c.listTTL)
	return resp.Currencies, nil
}

func (c *Client) call(ctx context.Context, op string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.fail(ctx, op, err.Error())
	}
	if c.accessKey != "" {
		params.Set("access_key", c.accessKey)
	}
	endpoint := c.baseURL + "/" + op + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return c.fail(ctx, op, err.Error())
	}
	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return c.fail(ctx, op, redact(err.Error(), c.accessKey))
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return c.fail(ctx, op, "http "+strconv.Itoa(res.StatusCode))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return c.fail(ctx, op, "decode: "+err.Error())
	}
	logger.Debug(ctx, logger.ComponentRates, "api.call",
		slog.String("op", op),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func (c *Client) fail(ctx context.Context, op, reason string) error {
	c.observe(op, "error")
	logger.Warn(ctx, logger.ComponentRates, "api.fail",
		slog.String("op", op),
		slog.String("cause", reason),
	)
	return fmt.Errorf("%w: %s: %s", ErrUnavailable, op, reason)
}

func (c *Client) observe(op, outcome string) {
	if c.Observe != nil {
		c.Observe(op, outcome)
	}
}

func apiErrorText(e *apiError) string {
	if e == nil {
		return "unsuccessful response"
	}
	if e.Info != "" {
		return e.Info
	}
	return fmt.Sprintf("api error %d %s", e.Code, e.Type)
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "<redacted>")
}

package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, AccessKey: "secret", RequestsPerSecond: 1000}, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/convert" || q.Get("from") != "JPY" || q.Get("to") != "THB" || q.Get("amount") != "1000" || q.Get("access_key") != "secret" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"success":true,"info":{"timestamp":1700000000,"quote":4.5},"result":4500}`))
	})
	var outcomes []string
	c.Observe = func(op, outcome string) { outcomes = append(outcomes, op+":"+outcome) }

	q, err := c.Quote(context.Background(), 1000, "jpy", "thb")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Rate != 4.5 || q.Converted != 4500 || q.Amount != 1000 || !q.At.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("quote = %+v", q)
	}
	if len(outcomes) != 1 || outcomes[0] != "convert:ok" {
		t.Fatalf("outcomes = %v", outcomes)
	}
}

func TestQuoteDerivesRateFromResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"result":90}`))
	})
	q, err := c.Quote(context.Background(), 20, "EUR", "TRY")
	if err != nil || q.Rate != 4.5 {
		t.Fatalf("quote = %+v, %v", q, err)
	}
}

func TestQuoteFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"api error": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":101,"info":"invalid access key"}}`))
		},
		"zero quote": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success":true,"info":{"quote":0},"result":0}`))
		},
		"http 500": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			if _, err := c.Quote(context.Background(), 1, "USD", "EUR"); !errors.Is(err, ErrUnavailable) {
				t.Fatalf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestQuoteTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Quote(ctx, 1, "USD", "EUR"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestCurrenciesAreCached(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"success":true,"currencies":{"JPY":"Japanese Yen","THB":"Thai Baht"}}`))
	})
	for i := 0; i < 3; i++ {
		list, err := c.Currencies(context.Background())
		if err != nil || len(list) != 2 {
			t.Fatalf("currencies = %v, %v", list, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("list endpoint called %d times", calls.Load())
	}
}

func TestConfigNormalize(t *testing.T) {
	var cfg Config
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.BaseURL != "https://api.exchangerate.host" || cfg.TimeoutSeconds != 10 || cfg.RequestsPerSecond != 5 {
		t.Fatalf("defaults = %+v", cfg)
	}
}

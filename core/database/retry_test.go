package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
)

func TestIsBusy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"wrapped lock timeout", errorsJoin(&pq.Error{Code: "55P03"}), true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsBusy(tc.err); got != tc.want {
				t.Fatalf("IsBusy(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func errorsJoin(err error) error {
	return errors.Join(errors.New("commit"), err)
}

func TestRetryReplaysBusyErrors(t *testing.T) {
	calls := 0
	retries := 0
	p := RetryPolicy{Attempts: 3, Backoff: time.Millisecond, OnRetry: func(int, error) { retries++ }}
	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 3 || retries != 2 {
		t.Fatalf("calls=%d retries=%d, want 3 and 2", calls, retries)
	}
}

func TestRetryExhaustionReportsBusy(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 2, Backoff: time.Millisecond}, func(context.Context) error {
		calls++
		return &pq.Error{Code: "40P01"}
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("constraint")
	calls := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 5}, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestConfigNormalize(t *testing.T) {
	t.Run("sqlite defaults", func(t *testing.T) {
		cfg := Config{}
		if err := cfg.Normalize(); err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if cfg.Driver != DriverSQLite || cfg.Path == "" || cfg.BusyRetries == 0 {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
	})
	t.Run("postgres needs host", func(t *testing.T) {
		cfg := Config{Driver: "postgres"}
		if err := cfg.Normalize(); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("unknown driver", func(t *testing.T) {
		cfg := Config{Driver: "oracle"}
		if err := cfg.Normalize(); err == nil {
			t.Fatal("expected error")
		}
	})
}

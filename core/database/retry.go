package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrBusy reports that a transaction kept losing lock contention after all retries.
var ErrBusy = errors.New("database busy")

// IsBusy reports whether err is a transient contention failure that is safe to replay:
// SQLITE_BUSY / SQLITE_LOCKED, or a Postgres serialization failure, deadlock or lock timeout.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}

// RetryPolicy bounds replays of a transaction that failed with a busy error.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	// OnRetry is invoked before each replay.
	OnRetry func(attempt int, err error)
}

// PolicyFor builds the retry policy configured for cfg.
func PolicyFor(cfg Config) RetryPolicy {
	return RetryPolicy{Attempts: cfg.BusyRetries + 1, Backoff: cfg.BusyBackoff()}
}

// Retry runs fn until it succeeds, fails with a non-busy error, or attempts run out.
// Exhaustion is reported as ErrBusy wrapping the last failure.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn(ctx)
		if err == nil || !IsBusy(err) {
			return err
		}
		if i == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(i, err)
		}
		wait := p.Backoff * time.Duration(i)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%w: %v", ErrBusy, err)
}

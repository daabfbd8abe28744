// Package storage implements the ledger, conversation state and currency cache
// on top of sqlx, for both SQLite and PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/travelwallet/core/database"
	"github.com/m3rciful/travelwallet/core/logger"
	"github.com/m3rciful/travelwallet/core/telegram/state"
	"github.com/m3rciful/travelwallet/internal/ledger"
)

var (
	_ ledger.Store         = (*Store)(nil)
	_ ledger.CurrencyCache = (*Store)(nil)
	_ state.Store          = (*Store)(nil)
)

// Options tune a Store.
type Options struct {
	// OnBusyRetry is called each time a transaction is replayed after lock contention.
	OnBusyRetry func(op string)
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}

// Store is the durable ledger. Write transactions are serialised by one process-wide lock
// and replayed on transient contention; reads may run concurrently with each other.
type Store struct {
	db     *sqlx.DB
	driver string
	sb     squirrel.StatementBuilderType
	retry  database.RetryPolicy
	opts   Options

	mu sync.RWMutex
}

// New wraps an open connection. cfg selects the SQL dialect and the retry budget.
func New(db *sqlx.DB, cfg database.Config, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	var placeholder squirrel.PlaceholderFormat = squirrel.Question
	if cfg.Driver == database.DriverPostgres {
		placeholder = squirrel.Dollar
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		db:     db,
		driver: cfg.Driver,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(placeholder),
		retry:  database.PolicyFor(cfg),
		opts:   opts,
	}, nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) now() int64 { return s.opts.Now().Unix() }

func (s *Store) policy(op string) database.RetryPolicy {
	p := s.retry
	p.OnRetry = func(attempt int, err error) {
		logger.LogEvent(context.Background(), logger.DB, slog.LevelDebug, "tx.retry",
			slog.String("op", op),
			slog.Int("attempts", attempt),
			logger.Err(err),
		)
		if s.opts.OnBusyRetry != nil {
			s.opts.OnBusyRetry(op)
		}
	}
	return p
}

func (s *Store) txOptions() *sql.TxOptions {
	if s.driver == database.DriverPostgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	// SQLite write transactions start IMMEDIATE through the DSN.
	return nil
}

// write runs fn in one transaction under the write lock, replaying it on contention.
// fn must not call other Store methods.
func (s *Store) write(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	start := time.Now()
	err := database.Retry(ctx, s.policy(op), func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		tx, err := s.db.BeginTxx(ctx, s.txOptions())
		if err != nil {
			return fmt.Errorf("%s: begin: %w", op, err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%s: commit: %w", op, err)
		}
		return nil
	})
	logger.Debug(ctx, logger.ComponentLedger, "tx.write",
		slog.String("op", op),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	)
	return err
}

// read runs fn under the shared lock so it never observes a half-applied write.
func (s *Store) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return database.Retry(ctx, s.policy(op), func(ctx context.Context) error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return fn(ctx)
	})
}

func (s *Store) get(ctx context.Context, op string, dest any, query string, args ...any) error {
	return s.read(ctx, op, func(ctx context.Context) error {
		return notFound(s.db.GetContext(ctx, dest, s.db.Rebind(query), args...))
	})
}

func (s *Store) selectBuilt(ctx context.Context, op string, dest any, b squirrel.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("%s: build query: %w", op, err)
	}
	return s.read(ctx, op, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, dest, query, args...)
	})
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ErrNotFound
	}
	return err
}

func expectRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

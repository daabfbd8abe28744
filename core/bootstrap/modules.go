package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/travelwallet/core/logger"
)

// Seeder loads reference data after migrations have been applied.
type Seeder interface {
	Name() string
	Seed(ctx context.Context, db *sqlx.DB) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc struct {
	Label string
	Fn    func(ctx context.Context, db *sqlx.DB) error
}

// Name returns the seeder label used in logs.
func (f SeederFunc) Name() string { return f.Label }

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, db *sqlx.DB) error {
	return f.Fn(ctx, db)
}

// Modules groups optional bootstrapping hooks.
type Modules struct {
	Seeders []Seeder
}

// Seed runs every seeder in order and stops at the first failure.
func (m Modules) Seed(ctx context.Context, db *sqlx.DB) error {
	for _, s := range m.Seeders {
		start := time.Now()
		if err := s.Seed(ctx, db); err != nil {
			logger.SEED.Error("seed failed",
				slog.String("event", "db.seed"),
				slog.String("op", s.Name()),
				logger.Err(err),
			)
			return fmt.Errorf("seed %s: %w", s.Name(), err)
		}
		logger.SEED.Info("seeded",
			slog.String("event", "db.seed"),
			slog.String("op", s.Name()),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/travelwallet/core/logger"
	"github.com/m3rciful/travelwallet/internal/ledger"
)

var tripColumns = []string{
	"t.id", "t.user_id", "t.trip_name", "t.from_country", "t.to_country",
	"t.from_currency", "t.to_currency", "t.exchange_rate", "t.is_custom_rate",
	"t.initial_amount_home", "t.initial_amount_foreign",
	"t.current_balance_home", "t.current_balance_foreign",
	"t.status", "t.created_at", "t.closed_at",
}

// CreateTrip stores a new trip and activates it when it is the user's first one or when asked to.
func (s *Store) CreateTrip(ctx context.Context, n ledger.NewTrip) (int64, error) {
	if err := n.Validate(); err != nil {
		return 0, err
	}
	var (
		id        int64
		activated bool
	)
	err := s.write(ctx, "trip.create", func(tx *sqlx.Tx) error {
		if err := consume(ctx, tx, n.Claim); err != nil {
			return err
		}
		now := s.now()
		if err := ensureUser(ctx, tx, n.UserID, now); err != nil {
			return err
		}
		err := tx.QueryRowxContext(ctx, tx.Rebind(`
			INSERT INTO trips (
				user_id, trip_name, from_country, to_country, from_currency, to_currency,
				exchange_rate, is_custom_rate, initial_amount_home, initial_amount_foreign,
				current_balance_home, current_balance_foreign, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`),
			n.UserID, n.Name(), n.FromCountry, n.ToCountry, n.FromCurrency, n.ToCurrency,
			n.ExchangeRate, n.IsCustomRate, n.InitialAmountHome, n.InitialAmountForeign,
			n.InitialAmountHome, n.InitialAmountForeign, ledger.TripActive, now,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert trip: %w", err)
		}

		activated = n.Activate
		if !activated {
			var count int
			if err := tx.GetContext(ctx, &count, tx.Rebind(`SELECT COUNT(*) FROM trips WHERE user_id = ?`), n.UserID); err != nil {
				return fmt.Errorf("count trips: %w", err)
			}
			activated = count == 1
		}
		if activated {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET active_trip_id = ? WHERE id = ?`), id, n.UserID); err != nil {
				return fmt.Errorf("activate trip: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Info(ctx, logger.ComponentLedger, "trip.created",
		slog.Int64("trip_id", id),
		slog.Int64("user_id", n.UserID),
		slog.String("from", n.FromCurrency),
		slog.String("to", n.ToCurrency),
		slog.Float64("rate", n.ExchangeRate),
		slog.Bool("activated", activated),
	)
	return id, nil
}

// GetTrip loads a trip by id.
func (s *Store) GetTrip(ctx context.Context, tripID int64) (ledger.Trip, error) {
	q := s.sb.Select(tripColumns...).From("trips t").Where(squirrel.Eq{"t.id": tripID})
	var trips []ledger.Trip
	if err := s.selectBuilt(ctx, "trip.get", &trips, q); err != nil {
		return ledger.Trip{}, err
	}
	if len(trips) == 0 {
		return ledger.Trip{}, ledger.ErrNotFound
	}
	return trips[0], nil
}

// ListTrips returns the user's trips, newest first, optionally filtered by status.
func (s *Store) ListTrips(ctx context.Context, userID int64, status *ledger.TripStatus) ([]ledger.Trip, error) {
	q := s.sb.Select(tripColumns...).From("trips t").
		Where(squirrel.Eq{"t.user_id": userID}).
		OrderBy("t.created_at DESC", "t.id DESC")
	if status != nil {
		q = q.Where(squirrel.Eq{"t.status": *status})
	}
	var trips []ledger.Trip
	if err := s.selectBuilt(ctx, "trip.list", &trips, q); err != nil {
		return nil, err
	}
	return trips, nil
}

// GetActiveTrip resolves the user's active trip through users.active_trip_id.
func (s *Store) GetActiveTrip(ctx context.Context, userID int64) (ledger.Trip, error) {
	q := s.sb.Select(tripColumns...).From("users u").
		Join("trips t ON t.id = u.active_trip_id AND t.user_id = u.id").
		Where(squirrel.Eq{"u.id": userID})
	var trips []ledger.Trip
	if err := s.selectBuilt(ctx, "trip.get_active", &trips, q); err != nil {
		return ledger.Trip{}, err
	}
	if len(trips) == 0 {
		return ledger.Trip{}, ledger.ErrNotFound
	}
	return trips[0], nil
}

// UpdateBalance overwrites both balances of a trip.
func (s *Store) UpdateBalance(ctx context.Context, tripID int64, home, foreign float64) error {
	return s.write(ctx, "trip.update_balance", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE trips SET current_balance_home = ?, current_balance_foreign = ? WHERE id = ?`),
			home, foreign, tripID)
		return expectRow(res, err)
	})
}

// SetRate changes the exchange rate of a trip without touching balances.
func (s *Store) SetRate(ctx context.Context, tripID int64, rate float64, isCustom bool) error {
	if rate <= 0 {
		return fmt.Errorf("%w: rate must be positive", ledger.ErrInvalidArgument)
	}
	return s.write(ctx, "trip.set_rate", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE trips SET exchange_rate = ?, is_custom_rate = ? WHERE id = ?`),
			rate, isCustom, tripID)
		return expectRow(res, err)
	})
}

// CloseTrip marks the trip closed.
func (s *Store) CloseTrip(ctx context.Context, tripID int64) error {
	return s.write(ctx, "trip.close", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE trips SET status = ?, closed_at = ? WHERE id = ?`),
			ledger.TripClosed, s.now(), tripID)
		return expectRow(res, err)
	})
}

// ReopenTrip marks the trip active again.
func (s *Store) ReopenTrip(ctx context.Context, tripID int64) error {
	return s.write(ctx, "trip.reopen", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE trips SET status = ?, closed_at = NULL WHERE id = ?`),
			ledger.TripActive, tripID)
		return expectRow(res, err)
	})
}

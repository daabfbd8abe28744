package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/travelwallet/internal/ledger"
)

// UpsertUser inserts the user or refreshes its profile fields.
func (s *Store) UpsertUser(ctx context.Context, u ledger.User) error {
	if u.ID == 0 {
		return fmt.Errorf("%w: user id is required", ledger.ErrInvalidArgument)
	}
	return s.write(ctx, "user.upsert", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO users (id, username, first_name, last_name, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				username = excluded.username,
				first_name = excluded.first_name,
				last_name = excluded.last_name`),
			u.ID, u.Username, u.FirstName, u.LastName, s.now(),
		)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
		return nil
	})
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, userID int64) (ledger.User, error) {
	var u ledger.User
	err := s.get(ctx, "user.get", &u, `
		SELECT id, username, first_name, last_name, active_trip_id, created_at
		FROM users WHERE id = ?`, userID)
	return u, err
}

// SetActiveTrip points the user at one of their own trips.
func (s *Store) SetActiveTrip(ctx context.Context, userID, tripID int64) error {
	return s.write(ctx, "user.set_active_trip", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE users SET active_trip_id = ?
			WHERE id = ? AND EXISTS (SELECT 1 FROM trips WHERE id = ? AND user_id = ?)`),
			tripID, userID, tripID, userID,
		)
		return expectRow(res, err)
	})
}

func ensureUser(ctx context.Context, tx *sqlx.Tx, userID, now int64) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO users (id, created_at) VALUES (?, ?)
		ON CONFLICT (id) DO NOTHING`), userID, now)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

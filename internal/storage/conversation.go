package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/travelwallet/core/telegram/state"
	"github.com/m3rciful/travelwallet/internal/ledger"
)

type stateRow struct {
	UserID    int64  `db:"user_id"`
	Tag       string `db:"state_tag"`
	Payload   string `db:"payload_json"`
	UpdatedAt int64  `db:"updated_at"`
}

// Get returns the pending dialogue of a user. ok is false when the user is idle.
func (s *Store) Get(ctx context.Context, userID int64) (state.Record, bool, error) {
	var rows []stateRow
	err := s.read(ctx, "state.get", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &rows, s.db.Rebind(`
			SELECT user_id, state_tag, payload_json, updated_at
			FROM conversation_state WHERE user_id = ?`), userID)
	})
	if err != nil || len(rows) == 0 {
		return state.Record{}, false, err
	}
	r := rows[0]
	return state.Record{
		UserID:    r.UserID,
		State:     state.State(r.Tag),
		Payload:   []byte(r.Payload),
		UpdatedAt: time.Unix(r.UpdatedAt, 0),
	}, true, nil
}

// Set replaces the pending dialogue of a user. Setting StateIdle clears it.
func (s *Store) Set(ctx context.Context, userID int64, st state.State, payload []byte) error {
	if st == state.StateIdle {
		return s.Clear(ctx, userID)
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return s.write(ctx, "state.set", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO conversation_state (user_id, state_tag, payload_json, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				state_tag = excluded.state_tag,
				payload_json = excluded.payload_json,
				updated_at = excluded.updated_at`),
			userID, string(st), string(payload), s.now())
		if err != nil {
			return fmt.Errorf("set state: %w", err)
		}
		return nil
	})
}

// Clear drops the pending dialogue of a user.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	return s.write(ctx, "state.clear", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM conversation_state WHERE user_id = ?`), userID)
		return err
	})
}

// consume deletes the dialogue named by c inside tx. Zero matching rows means another
// write already took it.
func consume(ctx context.Context, tx *sqlx.Tx, c *ledger.Claim) error {
	if c == nil {
		return nil
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		DELETE FROM conversation_state
		WHERE user_id = ? AND state_tag = ? AND payload_json = ?`),
		c.UserID, c.State, string(c.Payload))
	if err := expectRow(res, err); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return ledger.ErrStale
		}
		return fmt.Errorf("consume state: %w", err)
	}
	return nil
}

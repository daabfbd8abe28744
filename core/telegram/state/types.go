package state

import (
	"context"
	"time"
)

// State identifies a dialogue step.
type State string

// StateIdle indicates there is no pending dialogue with the user.
const StateIdle State = ""

// Record is the persisted conversation state of one user.
type Record struct {
	UserID    int64
	State     State
	Payload   []byte
	UpdatedAt time.Time
}

// Store keeps at most one Record per user. Set overwrites, Clear is idempotent.
type Store interface {
	// Get returns the user's record; ok is false when the user is idle.
	Get(ctx context.Context, userID int64) (rec Record, ok bool, err error)
	Set(ctx context.Context, userID int64, st State, payload []byte) error
	Clear(ctx context.Context, userID int64) error
}

package ledger

import (
	"errors"
	"fmt"

	"github.com/m3rciful/travelwallet/core/database"
)

var (
	// ErrNotFound is returned when a user, trip or category does not exist or is not owned by the caller.
	ErrNotFound = errors.New("ledger: not found")
	// ErrInvalidArgument is returned for non-positive amounts or rates and other malformed input.
	ErrInvalidArgument = errors.New("ledger: invalid argument")
	// ErrTripClosed is returned when an expense targets a closed trip. It matches ErrInvalidArgument.
	ErrTripClosed = fmt.Errorf("%w: trip is closed", ErrInvalidArgument)
	// ErrBusy is returned when storage contention outlasted the retry budget.
	ErrBusy = database.ErrBusy
	// ErrStale is returned when the pending dialogue named by a Claim is no longer stored.
	ErrStale = errors.New("ledger: pending dialogue already consumed")
)

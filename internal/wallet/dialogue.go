package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/m3rciful/travelwallet/core/telegram/state"
)

// ErrCorruptedState is returned when a persisted dialogue cannot be decoded into a known variant.
var ErrCorruptedState = errors.New("wallet: corrupted dialogue state")

// Persisted dialogue tags. Idle has no row.
const (
	StateFromCountry         state.State = "awaiting_from_country"
	StateToCountry           state.State = "awaiting_to_country"
	StateInitialAmount       state.State = "awaiting_initial_amount"
	StateRateConfirmation    state.State = "awaiting_rate_confirmation"
	StateCustomRate          state.State = "awaiting_custom_rate"
	StateNewRate             state.State = "awaiting_new_rate"
	StateExpenseConfirmation state.State = "awaiting_expense_confirmation"
)

// Dialogue is a pending multi-step flow. Each variant owns its payload shape.
type Dialogue interface {
	State() state.State
	validate() error
}

// Route is the country and currency pair collected while creating a trip.
type Route struct {
	FromCountry  string `json:"from_country"`
	FromCurrency string `json:"from_currency"`
	ToCountry    string `json:"to_country,omitempty"`
	ToCurrency   string `json:"to_currency,omitempty"`
}

func (r Route) validateFrom() error {
	if r.FromCountry == "" || r.FromCurrency == "" {
		return errors.New("missing home country")
	}
	return nil
}

func (r Route) validate() error {
	if err := r.validateFrom(); err != nil {
		return err
	}
	if r.ToCountry == "" || r.ToCurrency == "" {
		return errors.New("missing destination country")
	}
	return nil
}

// AwaitingFromCountry waits for the home country.
type AwaitingFromCountry struct{}

// AwaitingToCountry waits for the destination country.
type AwaitingToCountry struct {
	Route
}

// AwaitingInitialAmount waits for the budget in home currency.
type AwaitingInitialAmount struct {
	Route
	UnitRate float64 `json:"unit_rate"`
}

// Budget is a quoted budget waiting to become a trip.
type Budget struct {
	Route
	AmountHome    float64 `json:"amount_home"`
	AmountForeign float64 `json:"amount_foreign"`
	Rate          float64 `json:"rate"`
}

func (b Budget) validate() error {
	if err := b.Route.validate(); err != nil {
		return err
	}
	if !positive(b.AmountHome) || !positive(b.AmountForeign) || !positive(b.Rate) {
		return errors.New("budget amounts must be positive")
	}
	return nil
}

// AwaitingRateConfirmation shows the quoted rate and waits for accept or customize.
type AwaitingRateConfirmation struct {
	Budget
}

// AwaitingCustomRate waits for a user supplied rate for the quoted budget.
type AwaitingCustomRate struct {
	Budget
}

// AwaitingNewRate waits for a new rate for an existing trip.
type AwaitingNewRate struct {
	TripID int64 `json:"trip_id"`
}

// AwaitingExpenseConfirmation holds an expense until the user confirms it with a category.
// Nonce is echoed in the buttons of the prompt that created it.
type AwaitingExpenseConfirmation struct {
	TripID        int64   `json:"trip_id"`
	AmountForeign float64 `json:"amount_foreign"`
	AmountHome    float64 `json:"amount_home"`
	Nonce         string  `json:"nonce"`
}

func (AwaitingFromCountry) State() state.State         { return StateFromCountry }
func (AwaitingToCountry) State() state.State           { return StateToCountry }
func (AwaitingInitialAmount) State() state.State       { return StateInitialAmount }
func (AwaitingRateConfirmation) State() state.State    { return StateRateConfirmation }
func (AwaitingCustomRate) State() state.State          { return StateCustomRate }
func (AwaitingNewRate) State() state.State             { return StateNewRate }
func (AwaitingExpenseConfirmation) State() state.State { return StateExpenseConfirmation }

func (AwaitingFromCountry) validate() error { return nil }

func (d AwaitingToCountry) validate() error { return d.Route.validateFrom() }

func (d AwaitingInitialAmount) validate() error {
	if err := d.Route.validate(); err != nil {
		return err
	}
	if !positive(d.UnitRate) {
		return errors.New("unit rate must be positive")
	}
	return nil
}

func (d AwaitingNewRate) validate() error {
	if d.TripID <= 0 {
		return errors.New("missing trip id")
	}
	return nil
}

func (d AwaitingExpenseConfirmation) validate() error {
	if d.TripID <= 0 || d.Nonce == "" {
		return errors.New("missing trip id or nonce")
	}
	if !positive(d.AmountForeign) || !positive(d.AmountHome) {
		return errors.New("expense amounts must be positive")
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func encodeDialogue(d Dialogue) (state.State, []byte, error) {
	if err := d.validate(); err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", d.State(), err)
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", d.State(), err)
	}
	return d.State(), payload, nil
}

func decodeDialogue(rec state.Record) (Dialogue, error) {
	var d Dialogue
	switch rec.State {
	case StateFromCountry:
		d = &AwaitingFromCountry{}
	case StateToCountry:
		d = &AwaitingToCountry{}
	case StateInitialAmount:
		d = &AwaitingInitialAmount{}
	case StateRateConfirmation:
		d = &AwaitingRateConfirmation{}
	case StateCustomRate:
		d = &AwaitingCustomRate{}
	case StateNewRate:
		d = &AwaitingNewRate{}
	case StateExpenseConfirmation:
		d = &AwaitingExpenseConfirmation{}
	default:
		return nil, fmt.Errorf("%w: unknown tag %q", ErrCorruptedState, rec.State)
	}
	payload := rec.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	if err := json.Unmarshal(payload, d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptedState, rec.State, err)
	}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptedState, rec.State, err)
	}
	return deref(d), nil
}

// deref returns the variant by value so callers can type-switch on value types.
func deref(d Dialogue) Dialogue {
	switch v := d.(type) {
	case *AwaitingFromCountry:
		return *v
	case *AwaitingToCountry:
		return *v
	case *AwaitingInitialAmount:
		return *v
	case *AwaitingRateConfirmation:
		return *v
	case *AwaitingCustomRate:
		return *v
	case *AwaitingNewRate:
		return *v
	case *AwaitingExpenseConfirmation:
		return *v
	}
	return d
}

package ledger

import (
	"fmt"
	"time"
)

// DefaultCategoryID is the seeded "Other" category used when none is chosen.
const DefaultCategoryID int64 = 8

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	TripActive TripStatus = "active"
	TripClosed TripStatus = "closed"
)

// User is a chat participant. ActiveTripID, when set, references a trip owned by the same user.
type User struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	ActiveTripID *int64 `db:"active_trip_id"`
	CreatedAt    int64  `db:"created_at"`
}

// Trip is a two-currency budget. ExchangeRate is foreign units per one home unit.
type Trip struct {
	ID                    int64      `db:"id"`
	UserID                int64      `db:"user_id"`
	Name                  string     `db:"trip_name"`
	FromCountry           string     `db:"from_country"`
	ToCountry             string     `db:"to_country"`
	FromCurrency          string     `db:"from_currency"`
	ToCurrency            string     `db:"to_currency"`
	ExchangeRate          float64    `db:"exchange_rate"`
	IsCustomRate          bool       `db:"is_custom_rate"`
	InitialAmountHome     float64    `db:"initial_amount_home"`
	InitialAmountForeign  float64    `db:"initial_amount_foreign"`
	CurrentBalanceHome    float64    `db:"current_balance_home"`
	CurrentBalanceForeign float64    `db:"current_balance_foreign"`
	Status                TripStatus `db:"status"`
	CreatedAt             int64      `db:"created_at"`
	ClosedAt              *int64     `db:"closed_at"`
}

// Closed reports whether the trip no longer accepts expenses.
func (t Trip) Closed() bool { return t.Status == TripClosed }

// Category is a seeded expense category.
type Category struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
	Icon string `db:"icon"`
}

// Label renders the category as "icon name".
func (c Category) Label() string {
	if c.Icon == "" {
		return c.Name
	}
	return c.Icon + " " + c.Name
}

// Expense is an immutable spend against a trip. CategoryName and CategoryIcon are filled by list queries.
type Expense struct {
	ID            int64   `db:"id"`
	TripID        int64   `db:"trip_id"`
	CategoryID    int64   `db:"category_id"`
	AmountForeign float64 `db:"amount_foreign"`
	AmountHome    float64 `db:"amount_home"`
	Description   *string `db:"description"`
	CreatedAt     int64   `db:"created_at"`
	CategoryName  string  `db:"category_name"`
	CategoryIcon  string  `db:"category_icon"`
}

// Time returns CreatedAt as a time.Time.
func (e Expense) Time() time.Time { return time.Unix(e.CreatedAt, 0) }

// NewTrip carries the fields needed to create a trip. Balances start at the initial amounts.
type NewTrip struct {
	UserID               int64
	FromCountry          string
	ToCountry            string
	FromCurrency         string
	ToCurrency           string
	ExchangeRate         float64
	IsCustomRate         bool
	InitialAmountHome    float64
	InitialAmountForeign float64
	// Activate makes the trip active even when the user already has other trips.
	Activate bool
	// Claim, when set, is consumed in the same transaction.
	Claim *Claim
}

// Name is the display name stored with the trip.
func (n NewTrip) Name() string {
	return fmt.Sprintf("%s → %s", n.FromCountry, n.ToCountry)
}

// Validate rejects trips the ledger cannot keep consistent.
func (n NewTrip) Validate() error {
	switch {
	case n.UserID == 0:
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	case n.FromCurrency == "" || n.ToCurrency == "":
		return fmt.Errorf("%w: both currencies are required", ErrInvalidArgument)
	case n.ExchangeRate <= 0:
		return fmt.Errorf("%w: exchange rate must be positive", ErrInvalidArgument)
	case n.InitialAmountHome <= 0 || n.InitialAmountForeign <= 0:
		return fmt.Errorf("%w: initial amounts must be positive", ErrInvalidArgument)
	}
	return nil
}

// Claim names the pending dialogue a write consumes. The write fails with ErrStale
// unless exactly that dialogue is still stored for the user, and removes it on commit.
type Claim struct {
	UserID  int64
	State   string
	Payload []byte
}

// NewExpense carries the fields needed to record an expense. CategoryID 0 means DefaultCategoryID.
type NewExpense struct {
	TripID        int64
	CategoryID    int64
	AmountForeign float64
	AmountHome    float64
	Description   string
	// Claim, when set, is consumed in the same transaction.
	Claim *Claim
}

// Validate rejects non-positive amounts.
func (n NewExpense) Validate() error {
	if n.TripID == 0 {
		return fmt.Errorf("%w: trip id is required", ErrInvalidArgument)
	}
	if n.AmountForeign <= 0 || n.AmountHome <= 0 {
		return fmt.Errorf("%w: expense amounts must be positive", ErrInvalidArgument)
	}
	return nil
}

// Totals sums expense amounts in both currencies.
type Totals struct {
	Foreign float64 `db:"total_foreign"`
	Home    float64 `db:"total_home"`
}

// CategoryTotal is the spend of one category within a trip.
type CategoryTotal struct {
	Category Category
	Count    int
	Totals   Totals
}

// Stats counts rows for the admin overview.
type Stats struct {
	Users    int `db:"users"`
	Trips    int `db:"trips"`
	Expenses int `db:"expenses"`
}

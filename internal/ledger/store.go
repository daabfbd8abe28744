package ledger

import "context"

// Store is the durable ledger. Every method is atomic with respect to concurrent callers.
type Store interface {
	// UpsertUser inserts the user or overwrites its profile fields. ActiveTripID is never changed.
	UpsertUser(ctx context.Context, u User) error
	// GetUser returns ErrNotFound for unknown users.
	GetUser(ctx context.Context, userID int64) (User, error)
	// SetActiveTrip returns ErrNotFound unless tripID is owned by userID.
	SetActiveTrip(ctx context.Context, userID, tripID int64) error

	// CreateTrip stores a trip with balances equal to the initial amounts. The first trip
	// of a user, or one with Activate set, becomes active in the same transaction.
	CreateTrip(ctx context.Context, t NewTrip) (int64, error)
	GetTrip(ctx context.Context, tripID int64) (Trip, error)
	// ListTrips returns the user's trips, newest first. A nil status lists all of them.
	ListTrips(ctx context.Context, userID int64, status *TripStatus) ([]Trip, error)
	// GetActiveTrip returns ErrNotFound when no active trip is set.
	GetActiveTrip(ctx context.Context, userID int64) (Trip, error)
	// UpdateBalance overwrites both balances.
	UpdateBalance(ctx context.Context, tripID int64, home, foreign float64) error
	// SetRate changes the rate only. Balances and expenses are untouched.
	SetRate(ctx context.Context, tripID int64, rate float64, isCustom bool) error
	CloseTrip(ctx context.Context, tripID int64) error
	ReopenTrip(ctx context.Context, tripID int64) error

	// RecordExpense inserts the expense and decrements both balances of the trip, read
	// inside the same transaction.
	RecordExpense(ctx context.Context, e NewExpense) (int64, error)
	// ListExpenses returns up to limit expenses, newest first. A nil categoryID lists all categories.
	ListExpenses(ctx context.Context, tripID int64, limit int, categoryID *int64) ([]Expense, error)
	ExpenseTotals(ctx context.Context, tripID int64) (Totals, error)
	// ExpenseTotalsByCategory returns non-empty categories, largest foreign total first.
	ExpenseTotalsByCategory(ctx context.Context, tripID int64) ([]CategoryTotal, error)

	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)

	Stats(ctx context.Context) (Stats, error)
}

// CurrencyCache memoises country to currency code lookups. Keys are compared case-insensitively.
type CurrencyCache interface {
	LookupCurrency(ctx context.Context, country string) (string, bool, error)
	StoreCurrency(ctx context.Context, country, code string) error
}

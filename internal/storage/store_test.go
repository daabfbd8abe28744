package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/travelwallet/core/database"
	"github.com/m3rciful/travelwallet/core/telegram/state"
	"github.com/m3rciful/travelwallet/internal/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "wallet.db")}
	db, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.RunMigrations(cfg, Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := SeedCategories(context.Background(), db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, err := New(db, cfg, Options{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func japanThailand(userID int64) ledger.NewTrip {
	return ledger.NewTrip{
		UserID: userID, FromCountry: "Japan", ToCountry: "Thailand",
		FromCurrency: "JPY", ToCurrency: "THB", ExchangeRate: 4.5,
		InitialAmountHome: 1000, InitialAmountForeign: 4500,
	}
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

// assertBalanceInvariant checks current = initial - sum(expenses) in both currencies.
func assertBalanceInvariant(t *testing.T, s *Store, tripID int64) {
	t.Helper()
	ctx := context.Background()
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	totals, err := s.ExpenseTotals(ctx, tripID)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if !almostEqual(trip.CurrentBalanceHome, trip.InitialAmountHome-totals.Home) ||
		!almostEqual(trip.CurrentBalanceForeign, trip.InitialAmountForeign-totals.Foreign) {
		t.Fatalf("balance invariant broken: trip=%+v totals=%+v", trip, totals)
	}
}

func TestCreateTripFirstBecomesActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateTrip(ctx, japanThailand(42))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	trip, err := s.GetTrip(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if trip.Name != "Japan → Thailand" || trip.Status != ledger.TripActive {
		t.Fatalf("unexpected trip %+v", trip)
	}
	if trip.CurrentBalanceForeign != 4500 || trip.CurrentBalanceHome != 1000 {
		t.Fatalf("balances must start at the initial amounts: %+v", trip)
	}
	active, err := s.GetActiveTrip(ctx, 42)
	if err != nil || active.ID != id {
		t.Fatalf("active trip = %+v, %v", active, err)
	}

	second, err := s.CreateTrip(ctx, japanThailand(42))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if active, _ := s.GetActiveTrip(ctx, 42); active.ID != id {
		t.Fatalf("second trip must not steal activation, active=%d", active.ID)
	}

	n := japanThailand(42)
	n.Activate = true
	third, err := s.CreateTrip(ctx, n)
	if err != nil {
		t.Fatalf("create third: %v", err)
	}
	if active, _ := s.GetActiveTrip(ctx, 42); active.ID != third {
		t.Fatalf("activated trip = %d, want %d (second=%d)", active.ID, third, second)
	}
}

func TestConcurrentFirstTripsActivateExactlyOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 8
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.CreateTrip(ctx, japanThailand(7))
			if err != nil {
				t.Errorf("create: %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	trips, err := s.ListTrips(ctx, 7, nil)
	if err != nil || len(trips) != n {
		t.Fatalf("list = %d trips, %v", len(trips), err)
	}
	oldest := trips[len(trips)-1].ID
	for _, tr := range trips {
		if tr.ID < oldest {
			oldest = tr.ID
		}
	}
	active, err := s.GetActiveTrip(ctx, 7)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active.ID != oldest {
		t.Fatalf("active trip %d, want first inserted %d", active.ID, oldest)
	}
}

func TestSetActiveTripOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mine, _ := s.CreateTrip(ctx, japanThailand(1))
	theirs, _ := s.CreateTrip(ctx, japanThailand(2))

	if err := s.SetActiveTrip(ctx, 1, theirs); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("foreign trip: err = %v, want ErrNotFound", err)
	}
	if err := s.SetActiveTrip(ctx, 1, 9999); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("missing trip: err = %v, want ErrNotFound", err)
	}
	if err := s.SetActiveTrip(ctx, 1, mine); err != nil {
		t.Fatalf("own trip: %v", err)
	}
	u, err := s.GetUser(ctx, 1)
	if err != nil || u.ActiveTripID == nil || *u.ActiveTripID != mine {
		t.Fatalf("user = %+v, %v", u, err)
	}
}

func TestUpsertUserKeepsActiveTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateTrip(ctx, japanThailand(5))
	if err := s.UpsertUser(ctx, ledger.User{ID: 5, Username: "nomad", FirstName: "Ann"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	u, err := s.GetUser(ctx, 5)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Username != "nomad" || u.FirstName != "Ann" || u.ActiveTripID == nil || *u.ActiveTripID != id {
		t.Fatalf("user = %+v", u)
	}
	if _, err := s.GetUser(ctx, 6); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}
}

func TestRecordExpense(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tripID, _ := s.CreateTrip(ctx, japanThailand(1))

	id, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, AmountForeign: 500, AmountHome: 500 / 4.5})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	trip, _ := s.GetTrip(ctx, tripID)
	if !almostEqual(trip.CurrentBalanceForeign, 4000) || !almostEqual(trip.CurrentBalanceHome, 1000-111.111111) {
		t.Fatalf("balances after expense: %+v", trip)
	}
	assertBalanceInvariant(t, s, tripID)

	list, err := s.ListExpenses(ctx, tripID, 10, nil)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %+v, %v", list, err)
	}
	if list[0].ID != id || list[0].CategoryID != ledger.DefaultCategoryID || list[0].CategoryName != "Other" || list[0].Description != nil {
		t.Fatalf("expense = %+v", list[0])
	}

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, AmountForeign: -1, AmountHome: 1})
		if !errors.Is(err, ledger.ErrInvalidArgument) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("unknown trip", func(t *testing.T) {
		_, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: 777, AmountForeign: 1, AmountHome: 1})
		if !errors.Is(err, ledger.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("unknown category leaves balances alone", func(t *testing.T) {
		_, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, CategoryID: 99, AmountForeign: 1, AmountHome: 1})
		if !errors.Is(err, ledger.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
		assertBalanceInvariant(t, s, tripID)
	})
	t.Run("closed trip", func(t *testing.T) {
		if err := s.CloseTrip(ctx, tripID); err != nil {
			t.Fatalf("close: %v", err)
		}
		_, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, AmountForeign: 1, AmountHome: 1})
		if !errors.Is(err, ledger.ErrTripClosed) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestConcurrentRecordExpenseLosesNoUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tripID, _ := s.CreateTrip(ctx, japanThailand(1))

	amounts := []float64{10, 20.5, 3.25, 100, 7, 12, 0.5, 45, 60, 1.75, 9, 33}
	var wg sync.WaitGroup
	for _, a := range amounts {
		wg.Add(1)
		go func(a float64) {
			defer wg.Done()
			if _, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, AmountForeign: a, AmountHome: a / 4.5}); err != nil {
				t.Errorf("record %v: %v", a, err)
			}
		}(a)
	}
	wg.Wait()

	var sum float64
	for _, a := range amounts {
		sum += a
	}
	trip, _ := s.GetTrip(ctx, tripID)
	if !almostEqual(trip.CurrentBalanceForeign, 4500-sum) {
		t.Fatalf("foreign balance = %v, want %v", trip.CurrentBalanceForeign, 4500-sum)
	}
	assertBalanceInvariant(t, s, tripID)
}

func TestSetRateKeepsBalances(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tripID, _ := s.CreateTrip(ctx, japanThailand(1))
	if _, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, AmountForeign: 500, AmountHome: 500 / 4.5}); err != nil {
		t.Fatalf("record: %v", err)
	}
	before, _ := s.GetTrip(ctx, tripID)
	expBefore, _ := s.ListExpenses(ctx, tripID, 0, nil)

	if err := s.SetRate(ctx, tripID, 5.0, true); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	after, _ := s.GetTrip(ctx, tripID)
	if after.ExchangeRate != 5.0 || !after.IsCustomRate {
		t.Fatalf("rate not applied: %+v", after)
	}
	if after.CurrentBalanceHome != before.CurrentBalanceHome || after.CurrentBalanceForeign != before.CurrentBalanceForeign {
		t.Fatalf("balances changed: before=%+v after=%+v", before, after)
	}
	expAfter, _ := s.ListExpenses(ctx, tripID, 0, nil)
	if len(expAfter) != 1 || expAfter[0].AmountHome != expBefore[0].AmountHome {
		t.Fatalf("expenses changed: %+v", expAfter)
	}

	if err := s.SetRate(ctx, tripID, 0, true); !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("zero rate err = %v", err)
	}
	if err := s.SetRate(ctx, 999, 2, true); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("missing trip err = %v", err)
	}
}

func TestCloseAndReopenTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tripID, _ := s.CreateTrip(ctx, japanThailand(1))

	if err := s.CloseTrip(ctx, tripID); err != nil {
		t.Fatalf("close: %v", err)
	}
	closed := ledger.TripClosed
	list, _ := s.ListTrips(ctx, 1, &closed)
	if len(list) != 1 || list[0].ClosedAt == nil || list[0].CurrentBalanceForeign != 4500 {
		t.Fatalf("closed list = %+v", list)
	}
	if err := s.ReopenTrip(ctx, tripID); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	trip, _ := s.GetTrip(ctx, tripID)
	if trip.Status != ledger.TripActive || trip.ClosedAt != nil {
		t.Fatalf("reopened trip = %+v", trip)
	}
	if err := s.CloseTrip(ctx, 404); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("missing trip err = %v", err)
	}
}

func TestExpenseQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tripID, _ := s.CreateTrip(ctx, japanThailand(1))

	record := func(cat int64, amount float64, desc string) {
		t.Helper()
		if _, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, CategoryID: cat, AmountForeign: amount, AmountHome: amount / 4.5, Description: desc}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	record(1, 100, "ramen")
	record(1, 50, "")
	record(2, 300, "taxi")
	record(0, 10, "")

	food := int64(1)
	list, err := s.ListExpenses(ctx, tripID, 10, &food)
	if err != nil || len(list) != 2 {
		t.Fatalf("food = %+v, %v", list, err)
	}
	limited, _ := s.ListExpenses(ctx, tripID, 2, nil)
	if len(limited) != 2 || limited[0].AmountForeign != 10 {
		t.Fatalf("limited = %+v", limited)
	}

	totals, _ := s.ExpenseTotals(ctx, tripID)
	if !almostEqual(totals.Foreign, 460) {
		t.Fatalf("totals = %+v", totals)
	}

	byCat, err := s.ExpenseTotalsByCategory(ctx, tripID)
	if err != nil || len(byCat) != 3 {
		t.Fatalf("by category = %+v, %v", byCat, err)
	}
	if byCat[0].Category.ID != 2 || byCat[1].Category.ID != 1 || byCat[1].Count != 2 || byCat[2].Category.ID != ledger.DefaultCategoryID {
		t.Fatalf("by category order = %+v", byCat)
	}

	empty, _ := s.CreateTrip(ctx, japanThailand(1))
	if totals, err := s.ExpenseTotals(ctx, empty); err != nil || totals.Foreign != 0 {
		t.Fatalf("empty totals = %+v, %v", totals, err)
	}

	st, err := s.Stats(ctx)
	if err != nil || st.Users != 1 || st.Trips != 2 || st.Expenses != 4 {
		t.Fatalf("stats = %+v, %v", st, err)
	}
}

func TestCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Seeding twice is harmless.
	if err := SeedCategories(ctx, s.DB()); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	cats, err := s.ListCategories(ctx)
	if err != nil || len(cats) != 8 {
		t.Fatalf("categories = %+v, %v", cats, err)
	}
	other, err := s.GetCategory(ctx, ledger.DefaultCategoryID)
	if err != nil || other.Name != "Other" {
		t.Fatalf("default category = %+v, %v", other, err)
	}
	if _, err := s.GetCategory(ctx, 42); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("missing category err = %v", err)
	}
}

func TestCurrencyCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LookupCurrency(ctx, "Japan"); ok || err != nil {
		t.Fatalf("empty cache lookup = %v, %v", ok, err)
	}
	for i := 0; i < 2; i++ {
		if err := s.StoreCurrency(ctx, "Japan", "jpy"); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	code, ok, err := s.LookupCurrency(ctx, "  JAPAN ")
	if err != nil || !ok || code != "JPY" {
		t.Fatalf("lookup = %q, %v, %v", code, ok, err)
	}
	if err := s.StoreCurrency(ctx, "Japan", "USD"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if code, _, _ := s.LookupCurrency(ctx, "japan"); code != "USD" {
		t.Fatalf("overwrite lookup = %q", code)
	}
	if err := s.StoreCurrency(ctx, " ", "EUR"); !errors.Is(err, ledger.ErrInvalidArgument) {
		t.Fatalf("blank country err = %v", err)
	}
}

func TestConversationState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, 1); ok || err != nil {
		t.Fatalf("idle user: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, 1, "awaiting_to_country", []byte(`{"from_country":"Japan"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, 1, "awaiting_initial_amount", []byte(`{"rate":4.5}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	rec, ok, err := s.Get(ctx, 1)
	if err != nil || !ok || rec.State != "awaiting_initial_amount" || string(rec.Payload) != `{"rate":4.5}` {
		t.Fatalf("record = %+v ok=%v err=%v", rec, ok, err)
	}
	if err := s.Set(ctx, 1, state.StateIdle, nil); err != nil {
		t.Fatalf("set idle: %v", err)
	}
	if _, ok, _ := s.Get(ctx, 1); ok {
		t.Fatal("idle state must clear the row")
	}
	if err := s.Clear(ctx, 1); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
}

func TestUpdateBalanceOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tripID, _ := s.CreateTrip(ctx, japanThailand(1))

	if err := s.UpdateBalance(ctx, tripID, 12.5, -3); err != nil {
		t.Fatalf("update balance: %v", err)
	}
	trip, _ := s.GetTrip(ctx, tripID)
	if trip.CurrentBalanceHome != 12.5 || trip.CurrentBalanceForeign != -3 {
		t.Fatalf("balances = %v / %v", trip.CurrentBalanceHome, trip.CurrentBalanceForeign)
	}
	if trip.InitialAmountHome != 1000 || trip.ExchangeRate != 4.5 {
		t.Fatalf("other fields changed: %+v", trip)
	}
	if err := s.UpdateBalance(ctx, 999, 1, 1); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("missing trip err = %v", err)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if err := s.UpsertUser(ctx, ledger.User{ID: id}); err != nil {
			t.Fatalf("upsert %d: %v", id, err)
		}
	}
	tripID, _ := s.CreateTrip(ctx, japanThailand(1))
	_, _ = s.CreateTrip(ctx, japanThailand(2))
	if _, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, AmountForeign: 45, AmountHome: 10}); err != nil {
		t.Fatalf("record: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st != (ledger.Stats{Users: 2, Trips: 2, Expenses: 1}) {
		t.Fatalf("stats = %+v", st)
	}
}

func TestNewPicksPlaceholderPerDriver(t *testing.T) {
	cases := map[string]struct {
		cfg  database.Config
		want string
	}{
		"sqlite":   {cfg: database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "w.db")}, want: "id = ?"},
		"postgres": {cfg: database.Config{Driver: database.DriverPostgres, Host: "localhost", Name: "wallet"}, want: "id = $1"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			// Open only validates the driver name; no connection is made.
			db, err := sqlx.Open(tc.cfg.Driver, "")
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			t.Cleanup(func() { _ = db.Close() })
			s, err := New(db, tc.cfg, Options{})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			query, _, err := s.sb.Select("id").From("trips").Where(squirrel.Eq{"id": 1}).ToSql()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			if !strings.HasSuffix(query, tc.want) {
				t.Fatalf("query = %q, want suffix %q", query, tc.want)
			}
		})
	}
}

func TestWritesConsumeClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tripID, _ := s.CreateTrip(ctx, japanThailand(7))

	pending := func(t *testing.T, payload string) *ledger.Claim {
		t.Helper()
		if err := s.Set(ctx, 7, "awaiting_test", []byte(payload)); err != nil {
			t.Fatalf("set: %v", err)
		}
		return &ledger.Claim{UserID: 7, State: "awaiting_test", Payload: []byte(payload)}
	}

	t.Run("expense", func(t *testing.T) {
		claim := pending(t, `{"nonce":"a"}`)
		e := ledger.NewExpense{TripID: tripID, AmountForeign: 45, AmountHome: 10, Claim: claim}
		if _, err := s.RecordExpense(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
		if _, ok, _ := s.Get(ctx, 7); ok {
			t.Fatal("claimed state still stored")
		}
		if _, err := s.RecordExpense(ctx, e); !errors.Is(err, ledger.ErrStale) {
			t.Fatalf("second record err = %v", err)
		}
		list, _ := s.ListExpenses(ctx, tripID, 10, nil)
		if len(list) != 1 {
			t.Fatalf("expenses = %d", len(list))
		}
		assertBalanceInvariant(t, s, tripID)
	})
	t.Run("replaced payload", func(t *testing.T) {
		claim := pending(t, `{"nonce":"b"}`)
		pending(t, `{"nonce":"c"}`)
		_, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, AmountForeign: 1, AmountHome: 1, Claim: claim})
		if !errors.Is(err, ledger.ErrStale) {
			t.Fatalf("err = %v", err)
		}
		if rec, ok, _ := s.Get(ctx, 7); !ok || string(rec.Payload) != `{"nonce":"c"}` {
			t.Fatalf("newer state lost: %+v", rec)
		}
	})
	t.Run("failed write keeps claim", func(t *testing.T) {
		claim := pending(t, `{"nonce":"d"}`)
		_, err := s.RecordExpense(ctx, ledger.NewExpense{TripID: tripID, CategoryID: 99, AmountForeign: 1, AmountHome: 1, Claim: claim})
		if !errors.Is(err, ledger.ErrNotFound) {
			t.Fatalf("err = %v", err)
		}
		if _, ok, _ := s.Get(ctx, 7); !ok {
			t.Fatal("state removed by a rolled back write")
		}
	})
	t.Run("trip", func(t *testing.T) {
		n := japanThailand(7)
		n.Claim = pending(t, `{"rate":4.5}`)
		if _, err := s.CreateTrip(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := s.CreateTrip(ctx, n); !errors.Is(err, ledger.ErrStale) {
			t.Fatalf("second create err = %v", err)
		}
		trips, _ := s.ListTrips(ctx, 7, nil)
		if len(trips) != 2 {
			t.Fatalf("trips = %d", len(trips))
		}
	})
}

package ledger

import (
	"errors"
	"testing"
)

func TestNewTripValidate(t *testing.T) {
	valid := NewTrip{
		UserID: 1, FromCountry: "Japan", ToCountry: "Thailand",
		FromCurrency: "JPY", ToCurrency: "THB", ExchangeRate: 4.5,
		InitialAmountHome: 1000, InitialAmountForeign: 4500,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid trip rejected: %v", err)
	}
	if got := valid.Name(); got != "Japan → Thailand" {
		t.Fatalf("Name() = %q", got)
	}

	cases := map[string]func(*NewTrip){
		"no user":       func(n *NewTrip) { n.UserID = 0 },
		"no currency":   func(n *NewTrip) { n.ToCurrency = "" },
		"zero rate":     func(n *NewTrip) { n.ExchangeRate = 0 },
		"negative home": func(n *NewTrip) { n.InitialAmountHome = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			n := valid
			mutate(&n)
			if err := n.Validate(); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("Validate() = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestNewExpenseValidate(t *testing.T) {
	if err := (NewExpense{TripID: 1, AmountForeign: 500, AmountHome: 111.11}).Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}
	for _, e := range []NewExpense{
		{AmountForeign: 1, AmountHome: 1},
		{TripID: 1, AmountForeign: 0, AmountHome: 1},
		{TripID: 1, AmountForeign: 1, AmountHome: -2},
	} {
		if err := e.Validate(); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Validate(%+v) = %v", e, err)
		}
	}
}

func TestErrTripClosedIsInvalidArgument(t *testing.T) {
	if !errors.Is(ErrTripClosed, ErrInvalidArgument) {
		t.Fatal("ErrTripClosed must match ErrInvalidArgument")
	}
}

func TestCategoryLabel(t *testing.T) {
	if got := (Category{Name: "Other", Icon: "📦"}).Label(); got != "📦 Other" {
		t.Fatalf("Label() = %q", got)
	}
	if got := (Category{Name: "Other"}).Label(); got != "Other" {
		t.Fatalf("Label() = %q", got)
	}
}

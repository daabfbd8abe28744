package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/travelwallet/core/logger"
	"github.com/m3rciful/travelwallet/internal/ledger"
)

const historyTimeLayout = "02.01 15:04"

// Welcome greets a user and shows the main menu.
func (c *Controller) Welcome(context.Context, int64) OutboundMessage {
	return reply(msgWelcome, menuActions()...)
}

// Menu shows the main menu. A pending dialogue is left as is.
func (c *Controller) Menu(context.Context, int64) OutboundMessage {
	return reply(msgMenu, menuActions()...)
}

// Trips lists open trips with buttons to switch to or close each of them.
func (c *Controller) Trips(ctx context.Context, userID int64) OutboundMessage {
	status := ledger.TripActive
	trips, err := c.ledger.ListTrips(ctx, userID, &status)
	if err != nil {
		return c.transient(ctx, "trips.list", err)
	}
	if len(trips) == 0 {
		return reply(msgNoTrips, []Action{{Label: "🧳 New trip", Token: KeyMenuNewTrip}}, backToMenu())
	}
	activeID := c.activeTripID(ctx, userID)

	var b strings.Builder
	b.WriteString("Your trips:\n")
	rows := make([][]Action, 0, len(trips)+1)
	for _, t := range trips {
		mark := ""
		if t.ID == activeID {
			mark = "✅ "
		}
		fmt.Fprintf(&b, "\n%s%s: %s %s left", mark, t.Name, FormatAmount(t.CurrentBalanceForeign), t.ToCurrency)
		id := strconv.FormatInt(t.ID, 10)
		rows = append(rows, []Action{
			{Label: mark + t.Name, Token: Token(KeyTripSelect, id)},
			{Label: "🔒 Close", Token: Token(KeyTripClose, id)},
		})
	}
	rows = append(rows, backToMenu())
	return reply(b.String(), rows...)
}

// Archive lists closed trips with buttons to reopen them.
func (c *Controller) Archive(ctx context.Context, userID int64) OutboundMessage {
	status := ledger.TripClosed
	trips, err := c.ledger.ListTrips(ctx, userID, &status)
	if err != nil {
		return c.transient(ctx, "trips.archive", err)
	}
	if len(trips) == 0 {
		return reply(msgNoArchive, backToMenu())
	}
	var b strings.Builder
	b.WriteString("Closed trips:\n")
	rows := make([][]Action, 0, len(trips)+1)
	for _, t := range trips {
		spent := t.InitialAmountForeign - t.CurrentBalanceForeign
		fmt.Fprintf(&b, "\n%s: spent %s %s of %s", t.Name, FormatAmount(spent), t.ToCurrency, FormatAmount(t.InitialAmountForeign))
		rows = append(rows, []Action{{Label: "🔓 Reopen " + t.Name, Token: Token(KeyTripReopen, strconv.FormatInt(t.ID, 10))}})
	}
	rows = append(rows, backToMenu())
	return reply(b.String(), rows...)
}

// SwitchTrip makes one of the user's trips active.
func (c *Controller) SwitchTrip(ctx context.Context, userID, tripID int64) OutboundMessage {
	if err := c.ledger.SetActiveTrip(ctx, userID, tripID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return reply(msgStaleButton, backToMenu())
		}
		return c.transient(ctx, "trip.switch", err)
	}
	trip, err := c.ledger.GetTrip(ctx, tripID)
	if err != nil {
		return c.transient(ctx, "trip.get", err)
	}
	logger.Info(ctx, logger.ComponentWallet, "trip.switched",
		slog.Int64("user_id", userID),
		slog.Int64("trip_id", tripID),
	)
	text := fmt.Sprintf("Active trip: %s\n%s", trip.Name, balanceLine(trip))
	if trip.Closed() {
		text += "\n\n" + msgTripClosed
	}
	return reply(text, backToMenu())
}

// CloseTrip archives one of the user's trips.
func (c *Controller) CloseTrip(ctx context.Context, userID, tripID int64) OutboundMessage {
	trip, out := c.ownedTrip(ctx, userID, tripID, "trip.close")
	if out != nil {
		return *out
	}
	if trip.Closed() {
		return reply(fmt.Sprintf("%s is already closed.", trip.Name), backToMenu())
	}
	if err := c.ledger.CloseTrip(ctx, tripID); err != nil {
		return c.transient(ctx, "trip.close", err)
	}
	logger.Info(ctx, logger.ComponentWallet, "trip.closed", slog.Int64("user_id", userID), slog.Int64("trip_id", tripID))
	return reply(fmt.Sprintf("🔒 %s closed. You can reopen it from the archive.", trip.Name),
		[]Action{{Label: "📦 Archive", Token: KeyMenuArchive}}, backToMenu())
}

// ReopenTrip moves a closed trip back to the open list.
func (c *Controller) ReopenTrip(ctx context.Context, userID, tripID int64) OutboundMessage {
	trip, out := c.ownedTrip(ctx, userID, tripID, "trip.reopen")
	if out != nil {
		return *out
	}
	if !trip.Closed() {
		return reply(fmt.Sprintf("%s is already open.", trip.Name), backToMenu())
	}
	if err := c.ledger.ReopenTrip(ctx, tripID); err != nil {
		return c.transient(ctx, "trip.reopen", err)
	}
	logger.Info(ctx, logger.ComponentWallet, "trip.reopened", slog.Int64("user_id", userID), slog.Int64("trip_id", tripID))
	return reply(fmt.Sprintf("🔓 %s reopened.", trip.Name),
		[]Action{{Label: "▶️ Make active", Token: Token(KeyTripSelect, strconv.FormatInt(tripID, 10))}}, backToMenu())
}

// Balance reports the active trip's budget, spend and remaining balance.
func (c *Controller) Balance(ctx context.Context, userID int64) OutboundMessage {
	trip, out := c.activeTrip(ctx, userID)
	if out != nil {
		return *out
	}
	totals, err := c.ledger.ExpenseTotals(ctx, trip.ID)
	if err != nil {
		return c.transient(ctx, "expense.totals", err)
	}
	rateNote := ""
	if trip.IsCustomRate {
		rateNote = " (custom)"
	}
	text := fmt.Sprintf("💰 %s\n\nBudget: %s %s / %s %s\nSpent: %s %s / %s %s\n%s\nRate: 1 %s = %s %s%s",
		trip.Name,
		FormatAmount(trip.InitialAmountForeign), trip.ToCurrency, FormatAmount(trip.InitialAmountHome), trip.FromCurrency,
		FormatAmount(totals.Foreign), trip.ToCurrency, FormatAmount(totals.Home), trip.FromCurrency,
		balanceLine(trip),
		trip.FromCurrency, FormatRate(trip.ExchangeRate), trip.ToCurrency, rateNote)
	if trip.Closed() {
		text += "\n\nThis trip is closed."
	}
	return reply(text, backToMenu())
}

// History lists the latest expenses of the active trip.
func (c *Controller) History(ctx context.Context, userID int64) OutboundMessage {
	trip, out := c.activeTrip(ctx, userID)
	if out != nil {
		return *out
	}
	expenses, err := c.ledger.ListExpenses(ctx, trip.ID, c.cfg.HistoryLimit, nil)
	if err != nil {
		return c.transient(ctx, "expense.list", err)
	}
	if len(expenses) == 0 {
		return reply(msgNoExpenses, backToMenu())
	}
	return reply(fmt.Sprintf("🧾 Last expenses of %s:\n%s", trip.Name, expenseLines(trip, expenses)), backToMenu())
}

// Categories shows the active trip's spend per category.
func (c *Controller) Categories(ctx context.Context, userID int64) OutboundMessage {
	trip, out := c.activeTrip(ctx, userID)
	if out != nil {
		return *out
	}
	totals, err := c.ledger.ExpenseTotalsByCategory(ctx, trip.ID)
	if err != nil {
		return c.transient(ctx, "expense.by_category", err)
	}
	if len(totals) == 0 {
		return reply(msgNoExpenses, backToMenu())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Spending of %s:\n", trip.Name)
	rows := make([][]Action, 0, len(totals)+1)
	for _, ct := range totals {
		fmt.Fprintf(&b, "\n%s: %s %s (%s %s), %d",
			ct.Category.Label(),
			FormatAmount(ct.Totals.Foreign), trip.ToCurrency,
			FormatAmount(ct.Totals.Home), trip.FromCurrency,
			ct.Count)
		rows = append(rows, []Action{{Label: ct.Category.Label(), Token: Token(KeyCategoryView, strconv.FormatInt(ct.Category.ID, 10))}})
	}
	rows = append(rows, backToMenu())
	return reply(b.String(), rows...)
}

// CategoryHistory lists the latest expenses of one category in the active trip.
func (c *Controller) CategoryHistory(ctx context.Context, userID, categoryID int64) OutboundMessage {
	trip, out := c.activeTrip(ctx, userID)
	if out != nil {
		return *out
	}
	cat, err := c.ledger.GetCategory(ctx, categoryID)
	if errors.Is(err, ledger.ErrNotFound) {
		return reply(msgStaleButton, backToMenu())
	}
	if err != nil {
		return c.transient(ctx, "category.get", err)
	}
	expenses, err := c.ledger.ListExpenses(ctx, trip.ID, c.cfg.HistoryLimit, &categoryID)
	if err != nil {
		return c.transient(ctx, "expense.list", err)
	}
	if len(expenses) == 0 {
		return reply(msgNoExpenses, []Action{{Label: "📊 Categories", Token: KeyMenuCategories}})
	}
	return reply(fmt.Sprintf("%s in %s:\n%s", cat.Label(), trip.Name, expenseLines(trip, expenses)),
		[]Action{{Label: "📊 Categories", Token: KeyMenuCategories}}, backToMenu())
}

// Cancel drops the pending dialogue, including a corrupted one.
func (c *Controller) Cancel(ctx context.Context, userID int64) OutboundMessage {
	rec, ok, err := c.states.Get(ctx, userID)
	if err != nil {
		return c.transient(ctx, "state.get", err)
	}
	if !ok {
		return reply(msgNothingCancel, backToMenu())
	}
	if out := c.clear(ctx, userID, rec.State, "cancelled"); out != nil {
		return *out
	}
	return reply(msgCancelled, backToMenu())
}

// Stats summarises the ledger for the operator.
func (c *Controller) Stats(ctx context.Context) OutboundMessage {
	st, err := c.ledger.Stats(ctx)
	if err != nil {
		return c.transient(ctx, "stats", err)
	}
	return reply(fmt.Sprintf("Users: %d\nTrips: %d\nExpenses: %d", st.Users, st.Trips, st.Expenses))
}

// activeTrip loads the user's active trip. A non-nil reply means the caller must return it.
func (c *Controller) activeTrip(ctx context.Context, userID int64) (ledger.Trip, *OutboundMessage) {
	trip, err := c.ledger.GetActiveTrip(ctx, userID)
	if errors.Is(err, ledger.ErrNotFound) {
		out := reply(msgNoActiveTrip, []Action{{Label: "🧳 New trip", Token: KeyMenuNewTrip}, {Label: "🗂 My trips", Token: KeyMenuTrips}})
		return ledger.Trip{}, &out
	}
	if err != nil {
		out := c.transient(ctx, "trip.active", err)
		return ledger.Trip{}, &out
	}
	return trip, nil
}

func (c *Controller) activeTripID(ctx context.Context, userID int64) int64 {
	u, err := c.ledger.GetUser(ctx, userID)
	if err != nil || u.ActiveTripID == nil {
		return 0
	}
	return *u.ActiveTripID
}

func (c *Controller) ownedTrip(ctx context.Context, userID, tripID int64, op string) (ledger.Trip, *OutboundMessage) {
	trip, err := c.ledger.GetTrip(ctx, tripID)
	if errors.Is(err, ledger.ErrNotFound) || (err == nil && trip.UserID != userID) {
		out := reply(msgStaleButton, backToMenu())
		return ledger.Trip{}, &out
	}
	if err != nil {
		out := c.transient(ctx, op, err)
		return ledger.Trip{}, &out
	}
	return trip, nil
}

func expenseLines(trip ledger.Trip, expenses []ledger.Expense) string {
	var b strings.Builder
	for _, e := range expenses {
		fmt.Fprintf(&b, "\n%s %s %s %s (%s %s)",
			e.Time().Format(historyTimeLayout),
			e.CategoryIcon,
			FormatAmount(e.AmountForeign), trip.ToCurrency,
			FormatAmount(e.AmountHome), trip.FromCurrency)
		if e.Description != nil && *e.Description != "" {
			b.WriteString(" ")
			b.WriteString(*e.Description)
		}
	}
	return b.String()
}

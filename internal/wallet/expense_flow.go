package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/m3rciful/travelwallet/core/logger"
	"github.com/m3rciful/travelwallet/internal/ledger"
)

// startExpense holds a foreign amount against the active trip until the user confirms it.
func (c *Controller) startExpense(ctx context.Context, userID int64, amountForeign float64) OutboundMessage {
	trip, out := c.activeTrip(ctx, userID)
	if out != nil {
		return *out
	}
	if trip.Closed() {
		return reply(msgTripClosed, backToMenu())
	}
	pending := AwaitingExpenseConfirmation{
		TripID:        trip.ID,
		AmountForeign: amountForeign,
		AmountHome:    amountForeign / trip.ExchangeRate,
		Nonce:         c.newNonce(),
	}
	if out := c.save(ctx, userID, "", pending); out != nil {
		return *out
	}
	return c.prompt(ctx, trip, pending)
}

// expensePrompt repeats the prompt of a pending expense.
func (c *Controller) expensePrompt(ctx context.Context, userID int64, d AwaitingExpenseConfirmation) OutboundMessage {
	trip, err := c.ledger.GetTrip(ctx, d.TripID)
	if err != nil {
		return c.abort(ctx, userID, d.State(), err)
	}
	return c.prompt(ctx, trip, d)
}

func (c *Controller) prompt(ctx context.Context, trip ledger.Trip, d AwaitingExpenseConfirmation) OutboundMessage {
	text := fmt.Sprintf("Expense: %s %s ≈ %s %s\nPick a category to confirm.",
		FormatAmount(d.AmountForeign), trip.ToCurrency,
		FormatAmount(d.AmountHome), trip.FromCurrency)

	var rows [][]Action
	categories, err := c.ledger.ListCategories(ctx)
	if err != nil {
		logger.Warn(ctx, logger.ComponentWallet, "categories.list_failed", logger.Err(err))
	}
	var row []Action
	for _, cat := range categories {
		if cat.ID == ledger.DefaultCategoryID {
			continue
		}
		row = append(row, Action{Label: cat.Label(), Token: Token(KeyExpenseOK, d.Nonce, strconv.FormatInt(cat.ID, 10))})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []Action{
		{Label: "✅ Confirm (Other)", Token: Token(KeyExpenseOK, d.Nonce)},
		{Label: "❌ Discard", Token: Token(KeyExpenseNo, d.Nonce)},
	})
	return reply(text, rows...)
}

// confirmExpense records the pending expense at the trip's current rate and balances.
// The pending state is consumed by the same transaction, so a second press of the
// same button finds nothing to confirm.
func (c *Controller) confirmExpense(ctx context.Context, userID int64, d AwaitingExpenseConfirmation, claim *ledger.Claim, categoryID int64) OutboundMessage {
	trip, err := c.ledger.GetTrip(ctx, d.TripID)
	if err != nil {
		return c.abort(ctx, userID, d.State(), err)
	}
	if trip.UserID != userID {
		return c.abort(ctx, userID, d.State(), ledger.ErrNotFound)
	}
	amountHome := d.AmountHome
	if trip.ExchangeRate > 0 {
		amountHome = d.AmountForeign / trip.ExchangeRate
	}
	expense := ledger.NewExpense{
		TripID:        trip.ID,
		CategoryID:    categoryID,
		AmountForeign: d.AmountForeign,
		AmountHome:    amountHome,
		Claim:         claim,
	}
	id, err := c.ledger.RecordExpense(ctx, expense)
	if errors.Is(err, ledger.ErrNotFound) && categoryID != ledger.DefaultCategoryID {
		// A category removed since the prompt was sent falls back to Other.
		categoryID = ledger.DefaultCategoryID
		expense.CategoryID = categoryID
		id, err = c.ledger.RecordExpense(ctx, expense)
	}
	if err != nil {
		return c.abort(ctx, userID, d.State(), err)
	}
	if c.hooks.OnExpense != nil {
		c.hooks.OnExpense()
	}
	c.outcome(d.State(), "done")
	logger.Debug(ctx, logger.ComponentWallet, "dialogue.done",
		slog.Int64("user_id", userID),
		slog.Int64("expense_id", id),
		slog.String("state", string(d.State())),
		slog.String("outcome", "done"),
	)

	after, err := c.ledger.GetTrip(ctx, trip.ID)
	if err != nil {
		return reply("✅ Expense recorded.", backToMenu())
	}
	label := ""
	if cat, err := c.ledger.GetCategory(ctx, categoryID); err == nil {
		label = " " + cat.Label()
	}
	text := fmt.Sprintf("✅ Recorded%s: %s %s (%s %s)\n\n%s",
		label,
		FormatAmount(d.AmountForeign), trip.ToCurrency,
		FormatAmount(amountHome), trip.FromCurrency,
		balanceLine(after))
	return reply(text, backToMenu())
}

func balanceLine(t ledger.Trip) string {
	return fmt.Sprintf("Balance: %s %s / %s %s",
		FormatAmount(t.CurrentBalanceForeign), t.ToCurrency,
		FormatAmount(t.CurrentBalanceHome), t.FromCurrency)
}

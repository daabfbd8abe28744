package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/travelwallet/core/logger"
	"github.com/m3rciful/travelwallet/core/telegram/state"
	"github.com/m3rciful/travelwallet/internal/ledger"
	"github.com/m3rciful/travelwallet/internal/rates"
)

// StartTrip begins the trip dialogue, replacing any pending one.
func (c *Controller) StartTrip(ctx context.Context, userID int64) OutboundMessage {
	if out := c.save(ctx, userID, "", AwaitingFromCountry{}); out != nil {
		return *out
	}
	return reply(msgAskFrom)
}

func (c *Controller) onFromCountry(ctx context.Context, userID int64, text string) OutboundMessage {
	code, out := c.resolveCurrency(ctx, userID, StateFromCountry, text)
	if out != nil {
		return *out
	}
	next := AwaitingToCountry{Route: Route{FromCountry: text, FromCurrency: code}}
	if out := c.save(ctx, userID, StateFromCountry, next); out != nil {
		return *out
	}
	return reply(fmt.Sprintf("Home currency: %s (%s).\n\n%s", code, text, msgAskTo))
}

func (c *Controller) onToCountry(ctx context.Context, userID int64, d AwaitingToCountry, text string) OutboundMessage {
	code, out := c.resolveCurrency(ctx, userID, d.State(), text)
	if out != nil {
		return *out
	}
	route := d.Route
	route.ToCountry, route.ToCurrency = text, code

	qctx, cancel := c.quoteContext(ctx)
	q, err := c.quoter.Quote(qctx, 1, route.FromCurrency, route.ToCurrency)
	cancel()
	if err != nil {
		return c.abort(ctx, userID, d.State(), err)
	}
	next := AwaitingInitialAmount{Route: route, UnitRate: q.Rate}
	if out := c.save(ctx, userID, d.State(), next); out != nil {
		return *out
	}
	return reply(fmt.Sprintf("Destination currency: %s (%s).\n1 %s = %s %s\n\nWhat is your budget in %s?",
		code, text, route.FromCurrency, FormatRate(q.Rate), route.ToCurrency, route.FromCurrency))
}

func (c *Controller) onInitialAmount(ctx context.Context, userID int64, d AwaitingInitialAmount, text string) OutboundMessage {
	amount, err := ParseAmount(text)
	if err != nil {
		c.outcome(d.State(), "retry")
		return reply(msgInvalidAmount)
	}
	qctx, cancel := c.quoteContext(ctx)
	q, err := c.quoter.Quote(qctx, amount, d.FromCurrency, d.ToCurrency)
	cancel()
	if err != nil {
		return c.abort(ctx, userID, d.State(), err)
	}
	budget := Budget{Route: d.Route, AmountHome: amount, AmountForeign: q.Converted, Rate: q.Rate}
	if out := c.save(ctx, userID, d.State(), AwaitingRateConfirmation{Budget: budget}); out != nil {
		return *out
	}
	return c.rateConfirmationPrompt(budget)
}

func (c *Controller) rateConfirmationPrompt(b Budget) OutboundMessage {
	text := fmt.Sprintf("Budget: %s %s = %s %s\nRate: 1 %s = %s %s\n\nUse this rate?",
		FormatAmount(b.AmountHome), b.FromCurrency,
		FormatAmount(b.AmountForeign), b.ToCurrency,
		b.FromCurrency, FormatRate(b.Rate), b.ToCurrency)
	return reply(text, []Action{
		{Label: "✅ Accept", Token: KeyRateAccept},
		{Label: "✏️ Custom rate", Token: KeyRateCustom},
	})
}

func (c *Controller) onCustomRate(ctx context.Context, userID int64, d AwaitingCustomRate, claim *ledger.Claim, text string) OutboundMessage {
	rate, err := ParseAmount(text)
	if err != nil {
		c.outcome(d.State(), "retry")
		return reply(msgInvalidAmount)
	}
	b := d.Budget
	b.Rate = rate
	b.AmountForeign = b.AmountHome * rate
	return c.createTrip(ctx, userID, b, true, claim)
}

// createTrip stores the budget as the user's new active trip and ends the dialogue
// in the same transaction.
func (c *Controller) createTrip(ctx context.Context, userID int64, b Budget, custom bool, claim *ledger.Claim) OutboundMessage {
	from := StateRateConfirmation
	if custom {
		from = StateCustomRate
	}
	id, err := c.ledger.CreateTrip(ctx, ledger.NewTrip{
		UserID:               userID,
		FromCountry:          b.FromCountry,
		ToCountry:            b.ToCountry,
		FromCurrency:         b.FromCurrency,
		ToCurrency:           b.ToCurrency,
		ExchangeRate:         b.Rate,
		IsCustomRate:         custom,
		InitialAmountHome:    b.AmountHome,
		InitialAmountForeign: b.AmountForeign,
		Activate:             true,
		Claim:                claim,
	})
	if err != nil {
		return c.abort(ctx, userID, from, err)
	}
	c.outcome(from, "done")
	logger.Debug(ctx, logger.ComponentWallet, "dialogue.done",
		slog.Int64("user_id", userID),
		slog.Int64("trip_id", id),
		slog.String("state", string(from)),
		slog.String("outcome", "done"),
	)
	text := fmt.Sprintf("✈️ Trip %s created and set as active.\n\nBudget: %s %s / %s %s\nRate: 1 %s = %s %s\n\nSend an amount in %s to record an expense.",
		ledger.NewTrip{FromCountry: b.FromCountry, ToCountry: b.ToCountry}.Name(),
		FormatAmount(b.AmountHome), b.FromCurrency,
		FormatAmount(b.AmountForeign), b.ToCurrency,
		b.FromCurrency, FormatRate(b.Rate), b.ToCurrency,
		b.ToCurrency)
	return reply(text, menuActions()...)
}

// StartRateChange begins the rate dialogue for the active trip, replacing any pending one.
func (c *Controller) StartRateChange(ctx context.Context, userID int64) OutboundMessage {
	trip, out := c.activeTrip(ctx, userID)
	if out != nil {
		return *out
	}
	if out := c.save(ctx, userID, "", AwaitingNewRate{TripID: trip.ID}); out != nil {
		return *out
	}
	return reply(fmt.Sprintf("Current rate: 1 %s = %s %s\nSend the new number of %s per 1 %s.",
		trip.FromCurrency, FormatRate(trip.ExchangeRate), trip.ToCurrency, trip.ToCurrency, trip.FromCurrency))
}

func (c *Controller) onNewRate(ctx context.Context, userID int64, d AwaitingNewRate, text string) OutboundMessage {
	rate, err := ParseAmount(text)
	if err != nil {
		c.outcome(d.State(), "retry")
		return reply(msgInvalidAmount)
	}
	if err := c.ledger.SetRate(ctx, d.TripID, rate, true); err != nil {
		return c.abort(ctx, userID, d.State(), err)
	}
	if out := c.clear(ctx, userID, d.State(), "done"); out != nil {
		return *out
	}
	trip, err := c.ledger.GetTrip(ctx, d.TripID)
	if err != nil {
		return reply("✅ Rate updated.", backToMenu())
	}
	return reply(fmt.Sprintf("✅ Rate updated: 1 %s = %s %s. Balances are unchanged.",
		trip.FromCurrency, FormatRate(trip.ExchangeRate), trip.ToCurrency), backToMenu())
}

// resolveCurrency finds the currency of a country through the cache, falling back to the detector.
// An unknown country keeps the dialogue where it is.
func (c *Controller) resolveCurrency(ctx context.Context, userID int64, from state.State, country string) (string, *OutboundMessage) {
	if country == "" {
		c.outcome(from, "retry")
		out := reply("Please send a country name.")
		return "", &out
	}
	code, ok, err := c.currencies.LookupCurrency(ctx, country)
	if err != nil {
		out := c.transient(ctx, "currency.lookup", err)
		return "", &out
	}
	if c.hooks.OnCurrencyCache != nil {
		c.hooks.OnCurrencyCache(ok)
	}
	cache := "miss"
	if ok {
		cache = "hit"
	}
	logger.Debug(ctx, logger.ComponentWallet, "currency.lookup",
		slog.String("country", logger.SanitizeLimit(country, 64)),
		slog.String("cache", cache),
	)
	if ok {
		return code, nil
	}

	dctx, cancel := c.quoteContext(ctx)
	code, err = c.detector.Detect(dctx, country)
	cancel()
	if errors.Is(err, rates.ErrUnknownCountry) {
		c.outcome(from, "retry")
		out := reply(fmt.Sprintf("I couldn't find the currency of %q. Try another spelling or a neighbouring big city's country.", country))
		return "", &out
	}
	if err != nil {
		out := c.abort(ctx, userID, from, err)
		return "", &out
	}
	if err := c.currencies.StoreCurrency(ctx, country, code); err != nil {
		logger.Warn(ctx, logger.ComponentWallet, "currency.cache_write_failed",
			slog.String("country", country),
			slog.String("currency", code),
			logger.Err(err),
		)
	}
	return code, nil
}

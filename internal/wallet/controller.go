// Package wallet turns chat input into ledger operations. The Controller drives the
// resumable trip, rate and expense dialogues and answers stateless commands.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/travelwallet/core/logger"
	"github.com/m3rciful/travelwallet/core/telegram/state"
	"github.com/m3rciful/travelwallet/internal/ledger"
	"github.com/m3rciful/travelwallet/internal/rates"
)

// Quoter converts an amount between currencies.
type Quoter interface {
	Quote(ctx context.Context, amount float64, from, to string) (rates.Quote, error)
}

// CurrencyDetector maps a country name to a currency code.
type CurrencyDetector interface {
	Detect(ctx context.Context, country string) (string, error)
}

// Config tunes the controller.
type Config struct {
	QuoteTimeoutSeconds int `yaml:"quote_timeout_seconds" envconfig:"WALLET_QUOTE_TIMEOUT_SECONDS"`
	HistoryLimit        int `yaml:"history_limit" envconfig:"WALLET_HISTORY_LIMIT"`
}

// Normalize applies defaults and rejects negative values.
func (c *Config) Normalize() error {
	if c.QuoteTimeoutSeconds < 0 || c.HistoryLimit < 0 {
		return errors.New("wallet: negative quote_timeout_seconds or history_limit")
	}
	if c.QuoteTimeoutSeconds == 0 {
		c.QuoteTimeoutSeconds = 10
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 10
	}
	return nil
}

// QuoteTimeout bounds each call to the rate service.
func (c Config) QuoteTimeout() time.Duration {
	return time.Duration(c.QuoteTimeoutSeconds) * time.Second
}

// Hooks receive domain events, typically for metrics. Any of them may be nil.
type Hooks struct {
	// OnOutcome is called when a dialogue step ends: "advance", "retry", "done", "aborted", "cancelled".
	OnOutcome func(st state.State, outcome string)
	// OnExpense is called after an expense was recorded.
	OnExpense func()
	// OnCurrencyCache is called for every cache lookup.
	OnCurrencyCache func(hit bool)
}

// Deps are the collaborators of a Controller. Ledger writes that finish a dialogue
// consume its stored state, so Ledger and States must share one database.
type Deps struct {
	Ledger     ledger.Store
	States     state.Store
	Currencies ledger.CurrencyCache
	Detector   CurrencyDetector
	Quoter     Quoter
	Config     Config
	Hooks      Hooks
	// NewNonce overrides pending-expense nonce generation.
	NewNonce func() string
}

// Controller is safe for concurrent use; all state lives in the stores.
type Controller struct {
	ledger     ledger.Store
	states     state.Store
	currencies ledger.CurrencyCache
	detector   CurrencyDetector
	quoter     Quoter
	cfg        Config
	hooks      Hooks
	newNonce   func() string
}

// NewController validates deps and builds a Controller.
func NewController(d Deps) (*Controller, error) {
	switch {
	case d.Ledger == nil:
		return nil, errors.New("wallet: ledger is required")
	case d.States == nil:
		return nil, errors.New("wallet: state store is required")
	case d.Currencies == nil:
		return nil, errors.New("wallet: currency cache is required")
	case d.Detector == nil:
		return nil, errors.New("wallet: currency detector is required")
	case d.Quoter == nil:
		return nil, errors.New("wallet: quoter is required")
	}
	if err := d.Config.Normalize(); err != nil {
		return nil, err
	}
	if d.NewNonce == nil {
		d.NewNonce = newNonce
	}
	return &Controller{
		ledger:     d.Ledger,
		states:     d.States,
		currencies: d.Currencies,
		detector:   d.Detector,
		quoter:     d.Quoter,
		cfg:        d.Config,
		hooks:      d.Hooks,
		newNonce:   d.NewNonce,
	}, nil
}

// HandleTextMessage interprets free text against the user's pending dialogue.
// With no dialogue pending, a bare positive number starts an expense.
func (c *Controller) HandleTextMessage(ctx context.Context, userID int64, text string) OutboundMessage {
	text = strings.TrimSpace(text)
	d, claim, out := c.load(ctx, userID)
	if out != nil {
		return *out
	}
	if claim == nil {
		if amount, err := ParseAmount(text); err == nil {
			return c.startExpense(ctx, userID, amount)
		}
		return reply(msgUnknownText, backToMenu())
	}

	switch d := d.(type) {
	case AwaitingFromCountry:
		return c.onFromCountry(ctx, userID, text)
	case AwaitingToCountry:
		return c.onToCountry(ctx, userID, d, text)
	case AwaitingInitialAmount:
		return c.onInitialAmount(ctx, userID, d, text)
	case AwaitingRateConfirmation:
		c.outcome(d.State(), "retry")
		return c.rateConfirmationPrompt(d.Budget)
	case AwaitingCustomRate:
		return c.onCustomRate(ctx, userID, d, claim, text)
	case AwaitingNewRate:
		return c.onNewRate(ctx, userID, d, text)
	case AwaitingExpenseConfirmation:
		if amount, err := ParseAmount(text); err == nil {
			return c.startExpense(ctx, userID, amount)
		}
		c.outcome(d.State(), "retry")
		return c.expensePrompt(ctx, userID, d)
	}
	return c.abort(ctx, userID, d.State(), ErrCorruptedState)
}

// HandleButtonPress dispatches a button token. Dialogue buttons only act when the
// matching dialogue is still pending.
func (c *Controller) HandleButtonPress(ctx context.Context, userID int64, token string) OutboundMessage {
	key, args := splitToken(token)
	switch key {
	case KeyMenuMain:
		return c.Menu(ctx, userID)
	case KeyMenuNewTrip:
		return c.StartTrip(ctx, userID)
	case KeyMenuTrips:
		return c.Trips(ctx, userID)
	case KeyMenuArchive:
		return c.Archive(ctx, userID)
	case KeyMenuBalance:
		return c.Balance(ctx, userID)
	case KeyMenuHistory:
		return c.History(ctx, userID)
	case KeyMenuCategories:
		return c.Categories(ctx, userID)
	case KeyMenuSetRate:
		return c.StartRateChange(ctx, userID)
	case KeyTripSelect, KeyTripClose, KeyTripReopen:
		id, err := argInt(args, 0)
		if err != nil {
			return reply(msgStaleButton)
		}
		switch key {
		case KeyTripSelect:
			return c.SwitchTrip(ctx, userID, id)
		case KeyTripClose:
			return c.CloseTrip(ctx, userID, id)
		default:
			return c.ReopenTrip(ctx, userID, id)
		}
	case KeyCategoryView:
		id, err := argInt(args, 0)
		if err != nil {
			return reply(msgStaleButton)
		}
		return c.CategoryHistory(ctx, userID, id)
	case KeyRateAccept, KeyRateCustom, KeyExpenseOK, KeyExpenseNo:
		return c.onDialogueButton(ctx, userID, key, args)
	}
	logger.Warn(ctx, logger.ComponentWallet, "button.unknown", slog.String("op", key))
	return reply(msgStaleButton)
}

func (c *Controller) onDialogueButton(ctx context.Context, userID int64, key string, args []string) OutboundMessage {
	d, claim, out := c.load(ctx, userID)
	if out != nil {
		return *out
	}
	if claim == nil {
		return reply(msgStaleButton)
	}
	switch d := d.(type) {
	case AwaitingRateConfirmation:
		switch key {
		case KeyRateAccept:
			return c.createTrip(ctx, userID, d.Budget, false, claim)
		case KeyRateCustom:
			next := AwaitingCustomRate{Budget: d.Budget}
			if out := c.save(ctx, userID, d.State(), next); out != nil {
				return *out
			}
			return reply(fmt.Sprintf("How many %s do you get for 1 %s?", d.ToCurrency, d.FromCurrency))
		}
	case AwaitingExpenseConfirmation:
		if len(args) == 0 || args[0] != d.Nonce {
			return reply(msgStaleButton)
		}
		switch key {
		case KeyExpenseOK:
			categoryID := ledger.DefaultCategoryID
			if id, err := argInt(args, 1); err == nil {
				categoryID = id
			}
			return c.confirmExpense(ctx, userID, d, claim, categoryID)
		case KeyExpenseNo:
			if out := c.clear(ctx, userID, d.State(), "cancelled"); out != nil {
				return *out
			}
			return reply(msgExpenseNo, backToMenu())
		}
	}
	return reply(msgStaleButton)
}

// load reads and decodes the pending dialogue. The claim is nil when the user is idle;
// writes that finish the dialogue pass it on so that only one of them can win.
// A non-nil reply means the caller must return it.
func (c *Controller) load(ctx context.Context, userID int64) (Dialogue, *ledger.Claim, *OutboundMessage) {
	rec, ok, err := c.states.Get(ctx, userID)
	if err != nil {
		out := c.transient(ctx, "state.get", err)
		return nil, nil, &out
	}
	if !ok {
		return nil, nil, nil
	}
	d, err := decodeDialogue(rec)
	if err != nil {
		out := c.abort(ctx, userID, rec.State, err)
		return nil, nil, &out
	}
	return d, &ledger.Claim{UserID: userID, State: string(rec.State), Payload: rec.Payload}, nil
}

// save advances the dialogue from one state to the next.
func (c *Controller) save(ctx context.Context, userID int64, from state.State, next Dialogue) *OutboundMessage {
	tag, payload, err := encodeDialogue(next)
	if err == nil {
		err = c.states.Set(ctx, userID, tag, payload)
	}
	if err != nil {
		out := c.abort(ctx, userID, from, err)
		return &out
	}
	if from != "" {
		c.outcome(from, "advance")
	}
	logger.Debug(ctx, logger.ComponentWallet, "dialogue.transition",
		slog.Int64("user_id", userID),
		slog.String("state", string(from)),
		slog.String("next_state", string(tag)),
		slog.String("outcome", "advance"),
	)
	return nil
}

// clear ends the dialogue with the given outcome.
func (c *Controller) clear(ctx context.Context, userID int64, from state.State, outcome string) *OutboundMessage {
	if err := c.states.Clear(ctx, userID); err != nil {
		out := c.transient(ctx, "state.clear", err)
		return &out
	}
	c.outcome(from, outcome)
	return nil
}

// abort maps a dialogue failure to a reply. Busy storage keeps the dialogue, and a
// claim lost to a concurrent write leaves the winner's result alone; everything else
// clears it.
func (c *Controller) abort(ctx context.Context, userID int64, from state.State, err error) OutboundMessage {
	if errors.Is(err, ledger.ErrBusy) {
		return c.transient(ctx, string(from), err)
	}
	if errors.Is(err, ledger.ErrStale) {
		logger.Info(ctx, logger.ComponentWallet, "dialogue.stale",
			slog.Int64("user_id", userID),
			slog.String("state", string(from)),
		)
		return reply(msgStaleButton)
	}
	text := msgFailure
	switch {
	case errors.Is(err, ErrCorruptedState):
		text = msgCorrupted
	case errors.Is(err, rates.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		text = msgRatesDown
	case errors.Is(err, ledger.ErrTripClosed):
		text = msgTripClosed
	}
	level := slog.LevelWarn
	if !errors.Is(err, ErrCorruptedState) && !errors.Is(err, rates.ErrUnavailable) &&
		!errors.Is(err, ledger.ErrNotFound) && !errors.Is(err, ledger.ErrInvalidArgument) {
		level = slog.LevelError
	}
	logger.Event(ctx, logger.ComponentWallet, level, "dialogue.aborted",
		slog.Int64("user_id", userID),
		slog.String("state", string(from)),
		slog.String("outcome", "aborted"),
		logger.Err(err),
	)
	if clearErr := c.states.Clear(ctx, userID); clearErr != nil {
		return c.transient(ctx, "state.clear", clearErr)
	}
	c.outcome(from, "aborted")
	return reply(text, backToMenu())
}

// transient answers a failure that leaves every store untouched.
func (c *Controller) transient(ctx context.Context, op string, err error) OutboundMessage {
	if errors.Is(err, ledger.ErrBusy) {
		logger.Warn(ctx, logger.ComponentWallet, "store.busy", slog.String("op", op), logger.Err(err))
		return reply(msgBusy)
	}
	logger.Error(ctx, logger.ComponentWallet, "store.fail", slog.String("op", op), logger.Err(err))
	return reply(msgFailure, backToMenu())
}

func (c *Controller) outcome(st state.State, outcome string) {
	if c.hooks.OnOutcome != nil && st != "" {
		c.hooks.OnOutcome(st, outcome)
	}
}

func (c *Controller) quoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.QuoteTimeout())
}

func argInt(args []string, i int) (int64, error) {
	if i >= len(args) {
		return 0, errors.New("missing argument")
	}
	return strconv.ParseInt(args[i], 10, 64)
}

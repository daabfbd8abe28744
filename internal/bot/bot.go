// Package bot adapts the wallet controller to Telegram: it registers commands,
// callbacks and the text fallback, and renders replies as inline keyboards.
package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/travelwallet/core/telegram"
	"github.com/m3rciful/travelwallet/core/telegram/callbacks"
	"github.com/m3rciful/travelwallet/core/telegram/commands"
	"github.com/m3rciful/travelwallet/core/telegram/helpers"
	"github.com/m3rciful/travelwallet/internal/wallet"
)

// Wallet is the part of the controller the bot talks to.
type Wallet interface {
	HandleTextMessage(ctx context.Context, userID int64, text string) wallet.OutboundMessage
	HandleButtonPress(ctx context.Context, userID int64, token string) wallet.OutboundMessage

	Welcome(ctx context.Context, userID int64) wallet.OutboundMessage
	Menu(ctx context.Context, userID int64) wallet.OutboundMessage
	StartTrip(ctx context.Context, userID int64) wallet.OutboundMessage
	Trips(ctx context.Context, userID int64) wallet.OutboundMessage
	Archive(ctx context.Context, userID int64) wallet.OutboundMessage
	Balance(ctx context.Context, userID int64) wallet.OutboundMessage
	History(ctx context.Context, userID int64) wallet.OutboundMessage
	Categories(ctx context.Context, userID int64) wallet.OutboundMessage
	StartRateChange(ctx context.Context, userID int64) wallet.OutboundMessage
	Cancel(ctx context.Context, userID int64) wallet.OutboundMessage
	Stats(ctx context.Context) wallet.OutboundMessage
}

// Handlers binds Telegram updates to a Wallet.
type Handlers struct {
	wallet Wallet
}

// New returns Handlers for w.
func New(w Wallet) *Handlers {
	return &Handlers{wallet: w}
}

type userAction func(ctx context.Context, userID int64) wallet.OutboundMessage

// Register adds the wallet commands, button keys and text fallback to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.command(h.wallet.Welcome), Description: "Start the bot", Hidden: true}},
		{"/menu", commands.Command{Handler: h.command(h.wallet.Menu), Description: "Main menu"}},
		{"/newtrip", commands.Command{Handler: h.command(h.wallet.StartTrip), Description: "Create a trip"}},
		{"/trips", commands.Command{Handler: h.command(h.wallet.Trips), Description: "Switch or close trips", Aliases: []string{"switch"}}},
		{"/archive", commands.Command{Handler: h.command(h.wallet.Archive), Description: "Closed trips"}},
		{"/balance", commands.Command{Handler: h.command(h.wallet.Balance), Description: "Balance of the active trip"}},
		{"/history", commands.Command{Handler: h.command(h.wallet.History), Description: "Latest expenses"}},
		{"/categories", commands.Command{Handler: h.command(h.wallet.Categories), Description: "Spending by category"}},
		{"/setrate", commands.Command{Handler: h.command(h.wallet.StartRateChange), Description: "Change the exchange rate"}},
		{"/cancel", commands.Command{Handler: h.command(h.wallet.Cancel), Description: "Cancel the current step"}},
		{"/stats", commands.Command{Handler: h.stats, Description: "Usage statistics", AdminOnly: true, Hidden: true}},
	}
	for _, c := range cmds {
		reg.RegisterCommand(c.name, c.cmd)
	}

	for _, key := range wallet.ButtonKeys() {
		if err := reg.RegisterCallback(key, h.button); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	reg.SetTextFallback(h.text)
	return nil
}

func (h *Handlers) command(fn userAction) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		return send(c, fn(helpers.BuildContext(c), sender.ID))
	}
}

func (h *Handlers) stats(c tele.Context) error {
	return send(c, h.wallet.Stats(helpers.BuildContext(c)))
}

func (h *Handlers) text(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	return send(c, h.wallet.HandleTextMessage(helpers.BuildContext(c), sender.ID, c.Text()))
}

func (h *Handlers) button(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	token := callbacks.Token(callbacks.ParseCallbackData(c.Callback()))
	return edit(c, h.wallet.HandleButtonPress(helpers.BuildContext(c), sender.ID, token))
}

func send(c tele.Context, out wallet.OutboundMessage) error {
	return helpers.SendText(c, out.Text, Markup(out.Actions))
}

func edit(c tele.Context, out wallet.OutboundMessage) error {
	return helpers.EditOrSendText(c, out.Text, Markup(out.Actions))
}

package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/travelwallet/core/telegram/helpers"
	"github.com/m3rciful/travelwallet/core/telegram/ui"
)

const (
	textUnknownMedia    = "I only understand text and buttons. Send an amount to record an expense or open the /menu."
	textUnknownCallback = "This button is no longer active."
	textRateLimited     = "Too many messages, please slow down."
	textAdminRejected   = "This command is only available to the bot operator."
)

// Fallbacks answers updates that no wallet handler takes.
type Fallbacks struct{}

var _ ui.FallbackProvider = Fallbacks{}

// UnknownMedia answers photos, stickers and other non-text messages.
func (Fallbacks) UnknownMedia() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, textUnknownMedia, nil)
	}
}

// UnknownCallback answers buttons whose key is not registered.
func (Fallbacks) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: textUnknownCallback})
	}
}

// RateLimited shows a toast for throttled buttons and a message otherwise.
func (Fallbacks) RateLimited() tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			return c.Respond(&tele.CallbackResponse{Text: textRateLimited})
		}
		return helpers.SendText(c, textRateLimited, nil)
	}
}

// AdminRejected answers admin commands sent by other users.
func (Fallbacks) AdminRejected() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, textAdminRejected, nil)
	}
}

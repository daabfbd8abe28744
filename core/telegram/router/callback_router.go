package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/travelwallet/core/telegram"
	"github.com/m3rciful/travelwallet/core/telegram/callbacks"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(c.Callback())
		sum := newSummary(handlerName("callback", key), slog.String("cb_key", key))

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := opts.NotFound
			if fallback == nil {
				fallback = reg.CallbackNotFound()
			}
			sum.extras = append(sum.extras, slog.String("reason", "not_found"))
			return sum.run(c, func() error {
				if fallback != nil {
					return fallback(c)
				}
				return c.Respond()
			})
		}

		return sum.run(c, func() error {
			// Stop the client spinner before the handler edits the message.
			_ = c.Respond()
			return cbHandler(c)
		})
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}

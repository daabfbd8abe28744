package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/travelwallet/core/telegram"
)

// TextOptions controls fallback behaviour for text and media updates.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// mediaEndpoints lists the non-text updates that get the media fallback.
var mediaEndpoints = []string{
	tele.OnPhoto,
	tele.OnDocument,
	tele.OnSticker,
	tele.OnVoice,
	tele.OnVideo,
	tele.OnAudio,
	tele.OnAnimation,
	tele.OnVideoNote,
	tele.OnLocation,
	tele.OnContact,
}

// TextRoutes builds handlers for free text and unsupported media.
// Text is resolved as a command first (aliases, "@bot" suffix), then handed to the registry fallback.
// Admin-only commands are reachable through their own routes only.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		text := c.Text()

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil && !cmd.AdminOnly && len(text) > 0 && text[0] == '/' {
				return newSummary(handlerName("command", key)).run(c, func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return newSummary("text").run(c, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return newSummary("unknown_text").run(c, func() error {
				return opts.UnknownText(c)
			})
		}

		newSummary("unknown_text").skip(c)
		return nil
	}

	mediaHandler := func(c tele.Context) error {
		if opts.UnknownMedia != nil {
			return newSummary("unexpected_media").run(c, func() error {
				return opts.UnknownMedia(c)
			})
		}
		newSummary("unexpected_media").skip(c)
		return nil
	}

	routes := []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
	for _, ep := range mediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: mediaHandler})
	}
	return routes
}

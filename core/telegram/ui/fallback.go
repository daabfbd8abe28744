package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when incoming updates cannot be
// mapped to a command, a registered callback or the text handler.
type FallbackProvider interface {
	// UnknownMedia answers photos, stickers, documents and other non-text messages.
	UnknownMedia() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
	// RateLimited answers throttled updates.
	RateLimited() tele.HandlerFunc
	// AdminRejected answers admin-only commands sent by other users.
	AdminRejected() tele.HandlerFunc
}

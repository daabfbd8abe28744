package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Separator joins the callback key and its payload inside button data.
const Separator = "|"

// ParseCallbackData splits Telebot's "\f<unique>|<payload>" encoding.
// When telebot already resolved the unique part, Data holds only the payload.
func ParseCallbackData(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	key, payload, _ = strings.Cut(raw, Separator)
	return strings.TrimSpace(key), payload
}

// Token joins key and payload back into the "<key>|<payload>" form.
func Token(key, payload string) string {
	if payload == "" {
		return key
	}
	return key + Separator + payload
}

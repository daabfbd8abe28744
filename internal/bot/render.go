package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/travelwallet/core/telegram/callbacks"
	"github.com/m3rciful/travelwallet/core/telegram/keyboard"
	"github.com/m3rciful/travelwallet/internal/wallet"
)

// Markup renders action rows as an inline keyboard. The token key becomes the
// button's unique id and the rest its payload. Nil when there are no actions.
func Markup(rows [][]wallet.Action) *tele.ReplyMarkup {
	btnRows := make([][]keyboard.InlineBtn, 0, len(rows))
	for _, row := range rows {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, a := range row {
			key, payload, _ := strings.Cut(a.Token, callbacks.Separator)
			btns = append(btns, keyboard.InlineBtn{Text: a.Label, Unique: key, Data: payload})
		}
		btnRows = append(btnRows, btns)
	}
	return keyboard.InlineButtonsRows(btnRows...)
}

// Package commands describes slash commands exposed by the bot.
package commands

import (
	"slices"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command. AdminOnly commands are hidden from the menu and
// guarded at routing time; Hidden ones are only left out of the menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

// Endpoints returns name followed by each non-empty alias in "/alias" form.
func (c Command) Endpoints(name string) []string {
	out := []string{name}
	for _, alias := range c.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if !strings.HasPrefix(alias, "/") {
			alias = "/" + alias
		}
		if !slices.Contains(out, alias) {
			out = append(out, alias)
		}
	}
	return out
}

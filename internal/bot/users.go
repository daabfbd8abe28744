package bot

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/travelwallet/core/logger"
	tg "github.com/m3rciful/travelwallet/core/telegram"
	"github.com/m3rciful/travelwallet/core/telegram/helpers"
	"github.com/m3rciful/travelwallet/internal/ledger"
)

// UserStore keeps Telegram profiles.
type UserStore interface {
	UpsertUser(ctx context.Context, u ledger.User) error
}

// profileTTL bounds how long an unchanged profile skips the store.
const profileTTL = 15 * time.Minute

// UserMiddleware records the sender's profile before every handler. Profiles already
// written within profileTTL are not written again unless they changed.
// A failed write is logged and the update is still handled.
func UserMiddleware(users UserStore) tg.Middleware {
	seen := cache.New(profileTTL, 2*profileTTL)
	return tg.Middleware{
		Name: "users",
		Use: func(next tele.HandlerFunc) tele.HandlerFunc {
			return func(c tele.Context) error {
				sender := c.Sender()
				if sender == nil || sender.IsBot {
					return next(c)
				}
				profile := ledger.User{
					ID:        sender.ID,
					Username:  sender.Username,
					FirstName: sender.FirstName,
					LastName:  sender.LastName,
				}
				key := strconv.FormatInt(sender.ID, 10)
				if last, ok := seen.Get(key); ok && last.(ledger.User) == profile {
					return next(c)
				}
				ctx := helpers.BuildContext(c)
				if err := users.UpsertUser(ctx, profile); err != nil {
					logger.Warn(ctx, logger.ComponentTG, "user.upsert_failed",
						slog.Int64("user_id", sender.ID),
						logger.Err(err),
					)
					return next(c)
				}
				seen.SetDefault(key, profile)
				return next(c)
			}
		},
	}
}

package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/travelwallet/core/config"
	"github.com/m3rciful/travelwallet/core/telegram/middleware"
)

// MiddlewareOptions customises DefaultMiddlewares.
type MiddlewareOptions struct {
	OnLimited tele.HandlerFunc
	// OnUpdate observes the kind of each update, e.g. for Prometheus counters.
	OnUpdate middleware.UpdateObserver
	// Extra middlewares run after the shared chain, closest to the handlers.
	Extra []Middleware
}

// DefaultMiddlewares builds the shared middleware chain for bots.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware(opts.OnUpdate)},
	}

	if cfg != nil {
		if interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	mws = append(mws, Middleware{Name: "logger", Use: middleware.LoggerMiddleware})
	return append(mws, opts.Extra...)
}

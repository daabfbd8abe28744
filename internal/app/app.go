// Package app wires configuration, storage, the rate service and the Telegram runtime together.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/travelwallet/core/bootstrap"
	"github.com/m3rciful/travelwallet/core/cmd"
	"github.com/m3rciful/travelwallet/core/logger"
	tg "github.com/m3rciful/travelwallet/core/telegram"
	"github.com/m3rciful/travelwallet/core/telegram/router"
	"github.com/m3rciful/travelwallet/core/telegram/sender"
	"github.com/m3rciful/travelwallet/internal/bot"
	"github.com/m3rciful/travelwallet/internal/metrics"
	"github.com/m3rciful/travelwallet/internal/rates"
	"github.com/m3rciful/travelwallet/internal/storage"
	"github.com/m3rciful/travelwallet/internal/wallet"
)

// App holds the long-lived components of a running bot.
type App struct {
	cfg      *Config
	store    *storage.Store
	metrics  *metrics.Metrics
	registry *tg.Registry
}

var (
	_ cmd.TelegramApp   = (*App)(nil)
	_ cmd.ConfigCarrier = (*Config)(nil)
)

// LoadConfig adapts Load to the runner.
func LoadConfig(path string) (cmd.ConfigCarrier, error) {
	return Load(path)
}

// BootstrapApp adapts Bootstrap to the runner.
func BootstrapApp(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return Bootstrap(ctx, cfg)
}

// Bootstrap initialises logging, the database with its schema and reference data,
// the rate client and the wallet controller, and registers the bot handlers.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	m := metrics.New()

	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: storage.Migrations(),
		Modules: bootstrap.Modules{
			Seeders: []bootstrap.Seeder{storage.CategorySeeder()},
		},
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.New(res.DB, cfg.Database, storage.Options{OnBusyRetry: m.BusyRetry})
	if err != nil {
		_ = res.DB.Close()
		return nil, fmt.Errorf("app: storage: %w", err)
	}

	client, err := rates.NewClient(cfg.Rates, nil)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("app: rates client: %w", err)
	}
	client.Observe = m.RateRequest
	detector, err := rates.NewDetector(client)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("app: currency detector: %w", err)
	}

	controller, err := wallet.NewController(wallet.Deps{
		Ledger:     store,
		States:     store,
		Currencies: store,
		Detector:   detector,
		Quoter:     client,
		Config:     cfg.Wallet,
		Hooks: wallet.Hooks{
			OnOutcome:       m.DialogueOutcome,
			OnExpense:       m.ExpenseRecorded,
			OnCurrencyCache: m.CurrencyCache,
		},
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("app: wallet: %w", err)
	}

	reg := tg.NewRegistry()
	if err := bot.New(controller).Register(reg); err != nil {
		_ = store.Close()
		return nil, err
	}
	reg.SetCallbackNotFound(bot.Fallbacks{}.UnknownCallback())

	logger.Info(ctx, logger.ComponentApp, "bootstrap.done",
		slog.String("driver", cfg.Database.Driver),
		slog.String("rates", cfg.Rates.BaseURL),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return &App{cfg: cfg, store: store, metrics: m, registry: reg}, nil
}

// TelegramRunOptions assembles middlewares, routes and lifecycle hooks for the runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	fb := bot.Fallbacks{}
	core := &a.cfg.Config

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: fb.AdminRejected(),
	})
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{NotFound: fb.UnknownCallback()}))
	routes = append(routes, router.TextRoutes(a.registry, router.TextOptions{UnknownMedia: fb.UnknownMedia()})...)

	return tg.RunOptions{
		Config:            core,
		Registry:          a.registry,
		DispatcherOptions: sender.Options{OnFailure: a.metrics.SendFailed},
		Middlewares: tg.DefaultMiddlewares(core, tg.MiddlewareOptions{
			OnLimited: fb.RateLimited(),
			OnUpdate:  a.metrics.ObserveUpdate,
			Extra:     []tg.Middleware{bot.UserMiddleware(a.store)},
		}),
		Routes: routes,
		OnStart: func(ctx context.Context, _ tg.Runtime) error {
			go func() {
				if err := metrics.Serve(ctx, a.cfg.Metrics, a.metrics.Handler()); err != nil {
					logger.Error(ctx, logger.ComponentApp, "metrics.serve", logger.Err(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			logger.Info(ctx, logger.ComponentApp, "sender.summary",
				slog.Uint64("failed_sends", rt.Dispatcher.ErrorCount()),
			)
			return nil
		},
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

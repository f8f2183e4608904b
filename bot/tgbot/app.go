package tgbot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/refbot/bot/config"
	"github.com/m3rciful/refbot/bot/conversation"
	"github.com/m3rciful/refbot/bot/notify"
	"github.com/m3rciful/refbot/bot/referral"
	"github.com/m3rciful/refbot/bot/store"
	"github.com/m3rciful/refbot/core/bootstrap"
	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/metrics"
	tg "github.com/m3rciful/refbot/core/telegram"
	"github.com/m3rciful/refbot/core/telegram/middleware"
	"github.com/m3rciful/refbot/core/telegram/router"
	"github.com/m3rciful/refbot/core/telegram/sender"
)

const (
	dedupeTTL    = 10 * time.Minute
	dedupePrefix = "refbot:update:"
)

// App owns the bot's collaborators for the lifetime of the process.
type App struct {
	cfg   *config.Config
	infra *bootstrap.Result

	store      store.Store
	outbound   *sender.Dispatcher
	sender     *Sender
	dispatcher *conversation.Dispatcher
	deduper    middleware.Deduper
	seeders    []bootstrap.Seeder

	stopMetrics context.CancelFunc
	metricsDone chan struct{}
}

// Bootstrap connects the infrastructure described by cfg and assembles the app.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Redis:    cfg.Redis,
	})
	if err != nil {
		return nil, err
	}
	app := New(cfg, store.NewPostgres(res.DB), res.Redis)
	app.infra = res
	return app, nil
}

// New assembles the app over st. rdb may be nil, in which case update ids
// are de-duplicated in memory.
func New(cfg *config.Config, st store.Store, rdb *redis.Client) *App {
	outbound := sender.NewDispatcher(sender.Options{MaxRetries: 2})
	out := NewSender(outbound)

	engine := referral.NewEngine(st, cfg.Referral.Rewards())
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})
	notifier := notify.New(st, out, mailer, outbound)
	machine := conversation.NewMachine(st, engine, out, notifier, conversation.Options{
		BotName:  cfg.Referral.BotName,
		ImageDir: cfg.Catalog.ImageDir,
		QRCode:   cfg.Referral.QRCode,
	})

	var deduper middleware.Deduper = middleware.NewMemoryDeduper(dedupeTTL)
	if rdb != nil {
		deduper = middleware.NewRedisDeduper(rdb, dedupePrefix, dedupeTTL)
	}

	return &App{
		cfg:        cfg,
		store:      st,
		outbound:   outbound,
		sender:     out,
		dispatcher: conversation.NewDispatcher(machine, cfg.Referral.BotName),
		deduper:    deduper,
		seeders: []bootstrap.Seeder{
			store.SettingsSeeder(st, store.DefaultSettings()),
			store.CatalogSeeder(st, cfg.Catalog.SeedFile),
		},
	}
}

// TelegramRunOptions describes routes, middleware and lifecycle hooks for the runner.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a.cfg == nil {
		return tg.RunOptions{}, fmt.Errorf("tgbot: nil config")
	}
	reg := NewRegistry(a.dispatcher)
	return tg.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Dispatcher:  a.outbound,
		Middlewares: tg.DefaultMiddlewares(a.cfg.CoreConfig(), tg.ChainOptions{Deduper: a.deduper}),
		Routes:      router.Routes(reg),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		a.sender.Bind(rt.Bot)
	}
	if err := bootstrap.RunSeeders(ctx, a.seeders...); err != nil {
		return err
	}
	if listen := a.cfg.Metrics.Listen; listen != "" {
		mctx, cancel := context.WithCancel(ctx)
		a.stopMetrics = cancel
		a.metricsDone = make(chan struct{})
		go func() {
			defer close(a.metricsDone)
			if err := metrics.Serve(mctx, listen); err != nil {
				logger.Error(ctx, "app", "metrics.serve", slog.String("err", err.Error()))
			}
		}()
	}
	return nil
}

func (a *App) onStop(context.Context, tg.Runtime) error {
	if a.stopMetrics != nil {
		a.stopMetrics()
		<-a.metricsDone
	}
	return nil
}

// Close stops the outbound queue and releases database connections.
func (a *App) Close() error {
	a.outbound.Close()
	if a.infra == nil {
		return nil
	}
	return a.infra.Close()
}

package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/refbot/core/config"
	"github.com/m3rciful/refbot/core/telegram/middleware"
)

// ChainOptions supplies the optional parts of the default middleware chain.
type ChainOptions struct {
	// Deduper drops redelivered updates; nil disables de-duplication.
	Deduper   middleware.Deduper
	OnLimited tele.HandlerFunc
}

// DefaultMiddlewares builds the global chain in order: recover, logger,
// dedupe, rate_limit, metrics.
func DefaultMiddlewares(cfg *coreconfig.Config, opts ChainOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if opts.Deduper != nil {
		mws = append(mws, Middleware{Name: "dedupe", Use: middleware.DedupeMiddleware(opts.Deduper)})
	}

	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, kind := range cfg.RateLimit.ExcludeUpdates {
			ex[kind] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:   ex,
				OnLimited: opts.OnLimited,
			}),
		})
	}

	return append(mws, Middleware{Name: "metrics", Use: middleware.MetricsMiddleware})
}

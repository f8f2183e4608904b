package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/telegram/tgctx"
)

// Update kinds used for rate limit exclusions and metrics labels.
const (
	KindMessage  = "message"
	KindCallback = "callback"
	KindOther    = "other"
)

// UpdateKind classifies upd for exclusions and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Message != nil:
		return KindMessage
	case upd.Callback != nil:
		return KindCallback
	default:
		return KindOther
	}
}

// LoggerMiddleware stores the request context on c and logs a sampled
// debug line per received update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tgctx.From(c)

		if logger.ShouldSampleDebug() {
			attrs := []slog.Attr{slog.String("kind", UpdateKind(c.Update()))}
			if user := c.Sender(); user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)
		}
		return next(c)
	}
}

package middleware

import (
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/metrics"
	"github.com/m3rciful/refbot/core/telegram/tgctx"
)

// MetricsMiddleware counts admitted updates and observes handler duration
// under the handler name set by the router.
func MetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.RecordUpdate(UpdateKind(c.Update()), "ok")
		start := time.Now()
		err := next(c)

		name := logger.HandlerFrom(tgctx.From(c))
		if name == "" {
			name = "unrouted"
		}
		metrics.RecordHandler(name, time.Since(start), err)
		return err
	}
}

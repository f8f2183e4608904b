package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/telegram/tgctx"
)

// Summarize names the handler on the request context and logs one
// handler.handled line when it returns.
func Summarize(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		ctx := tgctx.WithHandler(c, name)
		err := h(c)

		level := slog.LevelInfo
		attrs := []slog.Attr{
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		}
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs,
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				slog.String("err_code", errorCode(err)),
			)
		}
		logger.LogEvent(ctx, logger.TG, level, "handler.handled", attrs...)
		return err
	}
}

// HandlerName turns a command or label into a metrics-friendly name.
func HandlerName(prefix, name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		name = "unknown"
	}
	return prefix + strings.ReplaceAll(name, " ", "_")
}

// errorCode names the innermost error type, e.g. PQ_ERROR for *pq.Error.
func errorCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" || name == "errorString" {
		return "ERROR"
	}
	if pkg := t.PkgPath(); pkg != "" {
		name = pkg[strings.LastIndex(pkg, "/")+1:] + "_" + name
	}
	return strings.ToUpper(name)
}

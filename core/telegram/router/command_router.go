package router

import (
	"log/slog"
	"sort"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/core/logger"
	tg "github.com/m3rciful/refbot/core/telegram"
)

// Routes returns the command routes of reg followed by the text route when a
// text handler is set. Global middleware is applied by the bot, not here.
func Routes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	names := make([]string, 0, len(reg.Commands()))
	for name := range reg.Commands() {
		names = append(names, name)
	}
	sort.Strings(names)

	routes := make([]tg.Route, 0, len(names)+1)
	for _, name := range names {
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  Summarize(HandlerName("cmd.", name), reg.Commands()[name].Handler),
		})
	}
	if h := reg.TextHandler(); h != nil {
		routes = append(routes, tg.Route{Endpoint: tele.OnText, Handler: Summarize("text", h)})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("count", len(routes)),
	)
	return routes
}

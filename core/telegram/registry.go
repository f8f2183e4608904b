package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/telegram/commands"
)

// Registry holds bot commands and the text handler.
type Registry struct {
	commands map[string]commands.Command
	text     tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]commands.Command)}
}

// RegisterCommand adds a slash command. Invalid and duplicate registrations are logged and skipped.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	reason := ""
	switch {
	case name == "" || cmd.Handler == nil || cmd.Description == "":
		reason = "invalid"
	case !strings.HasPrefix(name, "/"):
		reason = "no_slash_prefix"
	default:
		if _, exists := r.commands[name]; exists {
			reason = "duplicate"
		}
	}
	if reason != "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("event", "register.command.skip"),
			slog.String("op", name),
			slog.String("reason", reason),
		)
		return
	}
	r.commands[name] = cmd
}

// ListCommands returns commands sorted by name, leaving hidden ones out when visibleOnly is set.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// SetTextHandler sets the handler for plain text messages.
func (r *Registry) SetTextHandler(h tele.HandlerFunc) {
	r.text = h
}

// TextHandler returns the handler for plain text messages.
func (r *Registry) TextHandler() tele.HandlerFunc {
	return r.text
}

// InitBotCommands publishes the visible commands as the Telegram command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.Error("set commands failed",
			slog.String("event", "register.commands.set_failed"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TWire.Info("commands published",
		slog.String("event", "register.commands"),
		slog.Int("count", len(list)),
	)
}

package tgbot

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/bot/conversation"
	"github.com/m3rciful/refbot/bot/store"
	tg "github.com/m3rciful/refbot/core/telegram"
	"github.com/m3rciful/refbot/core/telegram/commands"
	"github.com/m3rciful/refbot/core/telegram/tgctx"
)

// Dispatcher handles one inbound message.
type Dispatcher interface {
	Dispatch(ctx context.Context, in conversation.Inbound) error
}

// NewRegistry registers the bot commands and the text handler. Every text,
// commands included, goes through d.
func NewRegistry(d Dispatcher) *tg.Registry {
	h := textHandler(d)
	reg := tg.NewRegistry()
	reg.RegisterCommand(conversation.CommandStart, commands.Command{Handler: h, Description: "Main menu"})
	reg.RegisterCommand(conversation.CommandAdminSave, commands.Command{
		Handler:     h,
		Description: "Receive order notifications in this chat",
		Hidden:      true,
	})
	reg.SetTextHandler(h)
	return reg
}

func textHandler(d Dispatcher) tele.HandlerFunc {
	return func(c tele.Context) error {
		in, ok := inbound(c)
		if !ok {
			return nil
		}
		return d.Dispatch(tgctx.From(c), in)
	}
}

func inbound(c tele.Context) (conversation.Inbound, bool) {
	msg := c.Message()
	chat := c.Chat()
	sender := c.Sender()
	if msg == nil || chat == nil || sender == nil {
		return conversation.Inbound{}, false
	}
	return conversation.Inbound{
		ChatID: chat.ID,
		From: store.Profile{
			ID:        sender.ID,
			FirstName: sender.FirstName,
			LastName:  sender.LastName,
			Username:  sender.Username,
		},
		Text: msg.Text,
	}, true
}

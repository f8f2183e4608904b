// Package tgbot connects the conversation engine to Telegram through telebot.
package tgbot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/bot/conversation"
	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/telegram/keyboard"
)

// errNotBound is returned by queued jobs that run before the bot is bound.
var errNotBound = errors.New("tgbot: bot not started")

// API is the subset of *tele.Bot used for outbound messages.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Queue runs outbound jobs, see sender.Dispatcher.
type Queue interface {
	Enqueue(ctx context.Context, key int64, action string, run func() error) error
}

// Sender queues outbound messages on the worker owning the chat, so messages
// to one chat keep their order.
type Sender struct {
	api   atomic.Pointer[API]
	queue Queue
}

// NewSender returns a Sender; Bind must be called before jobs can succeed.
func NewSender(q Queue) *Sender {
	return &Sender{queue: q}
}

// Bind sets the API used by queued jobs.
func (s *Sender) Bind(api API) {
	s.api.Store(&api)
}

func (s *Sender) enqueue(ctx context.Context, chatID int64, action string, build func() (any, []any)) {
	err := s.queue.Enqueue(ctx, chatID, action, func() error {
		p := s.api.Load()
		if p == nil {
			return errNotBound
		}
		what, opts := build()
		_, err := (*p).Send(tele.ChatID(chatID), what, opts...)
		return err
	})
	if err != nil {
		logger.Error(ctx, "tg.sender", "send.enqueue",
			slog.String("op", action),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Sender) SendText(ctx context.Context, chatID int64, text string) {
	s.enqueue(ctx, chatID, "send_text", func() (any, []any) {
		return text, nil
	})
}

func (s *Sender) SendHTML(ctx context.Context, chatID int64, html string) {
	s.enqueue(ctx, chatID, "send_html", func() (any, []any) {
		return html, []any{tele.ModeHTML}
	})
}

func (s *Sender) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) {
	if len(rows) == 0 {
		s.SendText(ctx, chatID, text)
		return
	}
	s.enqueue(ctx, chatID, "send_keyboard", func() (any, []any) {
		return text, []any{keyboard.ReplyButtons(rows...)}
	})
}

func (s *Sender) SendPhoto(ctx context.Context, chatID int64, photo conversation.Photo) {
	s.enqueue(ctx, chatID, "send_photo", func() (any, []any) {
		// A fresh reader per attempt so retries upload the whole image.
		return &tele.Photo{File: tele.FromReader(bytes.NewReader(photo.Data))}, nil
	})
}

var _ conversation.Sender = (*Sender)(nil)

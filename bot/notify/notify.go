// Package notify delivers completed orders to the site admin over Telegram
// and email.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/m3rciful/refbot/bot/store"
	"github.com/m3rciful/refbot/core/logger"
)

// OrderSubject is the subject line of order emails.
const OrderSubject = "New order - user details"

// ChatSender sends a plain text message to a chat.
type ChatSender interface {
	SendText(ctx context.Context, chatID int64, text string)
}

// Mailer sends a plain text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Enqueuer runs a job in the background, see sender.Dispatcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, key int64, action string, run func() error) error
}

// Notifier fans an order out to the admin chat and the admin email. Each
// channel is skipped when it is not configured.
type Notifier struct {
	store store.Store
	chat  ChatSender
	mail  Mailer
	queue Enqueuer
}

// New returns a Notifier. mail may be nil to disable email; queue runs the
// email job off the update path.
func New(s store.Store, chat ChatSender, mail Mailer, queue Enqueuer) *Notifier {
	return &Notifier{store: s, chat: chat, mail: mail, queue: queue}
}

// NotifyOrder sends d to every configured admin channel.
func (n *Notifier) NotifyOrder(ctx context.Context, d store.OrderDraft) {
	settings, err := n.store.Settings(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.LogEvent(ctx, logger.SVCNotify, slog.LevelError, "notify.settings", slog.String("err", err.Error()))
		}
		return
	}
	body := d.String()
	n.toChat(ctx, settings.AdminTM, body)
	n.toEmail(ctx, settings.AdminEmail, d.ChatID, body)
}

func (n *Notifier) toChat(ctx context.Context, tm, body string) {
	tm = strings.TrimPrefix(strings.TrimSpace(tm), "@")
	if tm == "" || n.chat == nil {
		logger.LogEvent(ctx, logger.SVCNotify, slog.LevelDebug, "notify.skip", slog.String("channel", "chat"))
		return
	}
	chatID, err := n.store.AdminChatID(ctx, tm)
	if errors.Is(err, store.ErrNotFound) {
		logger.LogEvent(ctx, logger.SVCNotify, slog.LevelWarn, "notify.skip",
			slog.String("channel", "chat"),
			slog.String("outcome", "ignored"),
		)
		return
	}
	if err != nil {
		logger.LogEvent(ctx, logger.SVCNotify, slog.LevelError, "notify.fail", slog.String("channel", "chat"), slog.String("err", err.Error()))
		return
	}
	n.chat.SendText(ctx, chatID, body)
	logger.LogEvent(ctx, logger.SVCNotify, slog.LevelInfo, "notify.sent", slog.String("channel", "chat"))
}

func (n *Notifier) toEmail(ctx context.Context, to string, key int64, body string) {
	to = strings.TrimSpace(to)
	if to == "" || n.mail == nil {
		logger.LogEvent(ctx, logger.SVCNotify, slog.LevelDebug, "notify.skip", slog.String("channel", "email"))
		return
	}
	jobCtx := context.WithoutCancel(ctx)
	send := func() error { return n.mail.Send(jobCtx, to, OrderSubject, body) }
	if n.queue == nil {
		if err := send(); err != nil {
			logger.LogEvent(ctx, logger.SVCNotify, slog.LevelError, "notify.fail", slog.String("channel", "email"), slog.String("err", err.Error()))
		}
		return
	}
	if err := n.queue.Enqueue(ctx, key, "send_email", send); err != nil {
		logger.LogEvent(ctx, logger.SVCNotify, slog.LevelError, "notify.fail", slog.String("channel", "email"), slog.String("err", err.Error()))
		return
	}
	logger.LogEvent(ctx, logger.SVCNotify, slog.LevelInfo, "notify.queued", slog.String("channel", "email"))
}

// Package tgctx carries a logging-enriched context.Context inside tele.Context.
package tgctx

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/core/logger"
)

const storeKey = "refbot.ctx"

// Store attaches ctx to c for downstream middleware and handlers.
func Store(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(storeKey, ctx)
	}
}

func stored(c tele.Context) (context.Context, bool) {
	ctx, ok := c.Get(storeKey).(context.Context)
	return ctx, ok
}

// IDs returns the chat and sender ids of the update, zero when absent.
func IDs(c tele.Context) (chatID, userID int64) {
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return chatID, userID
}

// From returns the context stored on c, building one with request
// metadata and the tg logger when none exists yet.
func From(c tele.Context) context.Context {
	if ctx, ok := stored(c); ok {
		return ctx
	}
	updateID := c.Update().ID
	chatID, userID := IDs(c)

	ctx := logger.WithRID(context.Background(), logger.BuildRID(updateID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	Store(c, ctx)
	return ctx
}

// WithHandler names the handler serving c and returns the updated context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(From(c), handler)
	Store(c, ctx)
	return ctx
}

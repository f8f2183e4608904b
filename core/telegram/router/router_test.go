package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/core/logger"
	tg "github.com/m3rciful/refbot/core/telegram"
	"github.com/m3rciful/refbot/core/telegram/commands"
	"github.com/m3rciful/refbot/core/telegram/tgctx"
)

func noop(tele.Context) error { return nil }

func TestRoutesOrder(t *testing.T) {
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Main menu"})
	reg.RegisterCommand("/admin_save", commands.Command{Handler: noop, Description: "Register admin", Hidden: true})
	reg.SetTextHandler(noop)

	routes := Routes(reg)
	if len(routes) != 3 {
		t.Fatalf("routes = %d", len(routes))
	}
	if routes[0].Endpoint != "/admin_save" || routes[1].Endpoint != "/start" || routes[2].Endpoint != tele.OnText {
		t.Fatalf("endpoints = %v %v %v", routes[0].Endpoint, routes[1].Endpoint, routes[2].Endpoint)
	}
	if visible := reg.ListCommands(true); len(visible) != 1 || visible[0].Text != "start" {
		t.Fatalf("visible = %v", visible)
	}
}

func TestSummarizeNamesHandler(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	c := bot.NewContext(tele.Update{ID: 3, Message: &tele.Message{
		Sender: &tele.User{ID: 1}, Chat: &tele.Chat{ID: 1}, Text: "hi",
	}})

	var seen string
	h := Summarize("text", func(c tele.Context) error {
		seen = logger.HandlerFrom(tgctx.From(c))
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if seen != "text" {
		t.Fatalf("handler name = %q", seen)
	}
}

func TestHandlerName(t *testing.T) {
	if got := HandlerName("cmd.", "/Admin Save"); got != "cmd.admin_save" {
		t.Fatalf("got %q", got)
	}
	if got := HandlerName("cmd.", " "); got != "cmd.unknown" {
		t.Fatalf("got %q", got)
	}
}

func TestErrorCode(t *testing.T) {
	if got := errorCode(fmt.Errorf("store: %w", &pq.Error{Code: "23505"})); got != "PQ_ERROR" {
		t.Fatalf("pq = %q", got)
	}
	if got := errorCode(errors.New("boom")); got != "ERROR" {
		t.Fatalf("plain = %q", got)
	}
}

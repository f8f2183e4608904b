package tgbot

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/refbot/bot/config"
	"github.com/m3rciful/refbot/bot/conversation"
	"github.com/m3rciful/refbot/bot/store"
	tg "github.com/m3rciful/refbot/core/telegram"
	"github.com/m3rciful/refbot/core/telegram/middleware"
)

type call struct {
	to   string
	what any
	opts []any
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{to: to.Recipient(), what: what, opts: opts})
	return &tele.Message{}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Telegram.Token = "test"
	cfg.Referral = config.ReferralConfig{BotName: "refbot", Reward1: 100, Reward2: 100, Reward3: 100}
	return cfg
}

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	return bot
}

func routeFor(t *testing.T, opts tg.RunOptions, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range opts.Routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %v", endpoint)
	return nil
}

func TestStartCommandSendsMenu(t *testing.T) {
	app := New(testConfig(), store.NewMemory(), nil)
	opts, err := app.TelegramRunOptions()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	api := &fakeAPI{}
	app.sender.Bind(api)

	c := offlineBot(t).NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Text:   "/start",
		Chat:   &tele.Chat{ID: 9},
		Sender: &tele.User{ID: 9, FirstName: "Ann"},
	}})
	if err := routeFor(t, opts, "/start")(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(api.calls) != 1 {
		t.Fatalf("calls = %+v", api.calls)
	}
	got := api.calls[0]
	if got.to != "9" || got.what != "What would you like to do?" {
		t.Fatalf("call = %+v", got)
	}
	markup, ok := got.opts[0].(*tele.ReplyMarkup)
	if !ok || len(markup.ReplyKeyboard) != 3 || !markup.OneTimeKeyboard || !markup.ResizeKeyboard {
		t.Fatalf("markup = %+v", got.opts)
	}
}

func TestTextRouteIgnoresUpdatesWithoutSender(t *testing.T) {
	app := New(testConfig(), store.NewMemory(), nil)
	defer app.Close()
	opts, _ := app.TelegramRunOptions()
	c := offlineBot(t).NewContext(tele.Update{ID: 2, Message: &tele.Message{Text: "hi", Chat: &tele.Chat{ID: 9}}})
	if err := routeFor(t, opts, tele.OnText)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func TestSenderFormats(t *testing.T) {
	app := New(testConfig(), store.NewMemory(), nil)
	api := &fakeAPI{}
	app.sender.Bind(api)
	ctx := context.Background()

	app.sender.SendHTML(ctx, 1, "<b>x</b>")
	app.sender.SendKeyboard(ctx, 1, "empty", nil)
	app.sender.SendPhoto(ctx, 1, conversation.Photo{Name: "a.png", Data: []byte("png")})
	_ = app.Close()

	if len(api.calls) != 3 {
		t.Fatalf("calls = %+v", api.calls)
	}
	if api.calls[0].opts[0] != tele.ModeHTML {
		t.Fatalf("html opts = %v", api.calls[0].opts)
	}
	if len(api.calls[1].opts) != 0 {
		t.Fatalf("keyboard without rows sent markup: %v", api.calls[1].opts)
	}
	if _, ok := api.calls[2].what.(*tele.Photo); !ok {
		t.Fatalf("photo = %T", api.calls[2].what)
	}
}

func TestOnStartSeedsAndBinds(t *testing.T) {
	st := store.NewMemory()
	app := New(testConfig(), st, nil)
	defer app.Close()
	opts, _ := app.TelegramRunOptions()

	rt := tg.Runtime{Bot: offlineBot(t)}
	if err := opts.OnStart(context.Background(), rt); err != nil {
		t.Fatalf("on start: %v", err)
	}
	if app.sender.api.Load() == nil {
		t.Fatalf("sender not bound")
	}
	if _, err := st.Settings(context.Background()); err != nil {
		t.Fatalf("settings not seeded: %v", err)
	}
	if err := opts.OnStop(context.Background(), rt); err != nil {
		t.Fatalf("on stop: %v", err)
	}
}

func TestRegistryAndMiddlewares(t *testing.T) {
	app := New(testConfig(), store.NewMemory(), nil)
	defer app.Close()
	opts, _ := app.TelegramRunOptions()

	visible := opts.Registry.ListCommands(true)
	if len(visible) != 1 || visible[0].Text != "start" {
		t.Fatalf("visible commands = %v", visible)
	}
	var names []string
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	if len(names) != 4 || names[2] != "dedupe" {
		t.Fatalf("middlewares = %v", names)
	}
}

func TestRedisDeduperSelected(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	app := New(testConfig(), store.NewMemory(), rdb)
	defer app.Close()
	if _, ok := app.deduper.(*middleware.RedisDeduper); !ok {
		t.Fatalf("deduper = %T", app.deduper)
	}
}

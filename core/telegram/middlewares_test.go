package telegram

import (
	"testing"
	"time"

	coreconfig "github.com/m3rciful/refbot/core/config"
	"github.com/m3rciful/refbot/core/telegram/middleware"
)

func names(mws []Middleware) []string {
	out := make([]string, len(mws))
	for i, mw := range mws {
		out[i] = mw.Name
	}
	return out
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500}}
	got := names(DefaultMiddlewares(cfg, ChainOptions{Deduper: middleware.NewMemoryDeduper(time.Minute)}))
	want := []string{"recover", "logger", "dedupe", "rate_limit", "metrics"}
	if len(got) != len(want) {
		t.Fatalf("chain = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chain = %v, want %v", got, want)
		}
	}
}

func TestDefaultMiddlewaresMinimal(t *testing.T) {
	got := names(DefaultMiddlewares(&coreconfig.Config{}, ChainOptions{}))
	if len(got) != 3 || got[2] != "metrics" {
		t.Fatalf("chain = %v", got)
	}
}

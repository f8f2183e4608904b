package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDefaultsToLongpoll(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "x", RunMode: " Polling "}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"no token", Config{}},
		{"webhook without url", Config{
			Telegram: TelegramConfig{Token: "x", RunMode: RunModeWebhook},
			Webhook:  WebhookConfig{Listen: "0.0.0.0", Port: 8443},
		}},
		{"webhook without port", Config{
			Telegram: TelegramConfig{Token: "x", RunMode: RunModeWebhook},
			Webhook:  WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0"},
		}},
		{"unknown mode", Config{Telegram: TelegramConfig{Token: "x", RunMode: "push"}}},
		{"negative timeout", Config{Telegram: TelegramConfig{Token: "x", LongPollTimeoutSeconds: -1}}},
		{"bad exclusion", Config{
			Telegram:  TelegramConfig{Token: "x"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"inline_query"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			if err := Normalize(&cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNormalizeLowercasesExclusions(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "x"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Message "}},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got := cfg.RateLimit.ExcludeUpdates[0]; got != UpdateMessage {
		t.Fatalf("exclusion = %q", got)
	}
}

func TestLoadOverlaysEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := "telegram:\n  token: from-file\n  run_mode: longpoll\nlogging:\n  level: info\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want from-env", cfg.Telegram.Token)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

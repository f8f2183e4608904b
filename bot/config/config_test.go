package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sample = `
telegram:
  token: from-file
referral:
  bot_name: "@RefBot"
  reward_2: 50
catalog:
  image_dir: static/images
mail:
  host: smtp.example.com
  from: bot@example.com
database:
  host: db
  name: refbot
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("METRICS_LISTEN", ":9100")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Referral.BotName != "RefBot" {
		t.Fatalf("bot name = %q", cfg.Referral.BotName)
	}
	if got := cfg.Referral.Rewards(); got != [3]int{100, 50, 100} {
		t.Fatalf("rewards = %v", got)
	}
	if cfg.Mail.Port != 587 {
		t.Fatalf("mail port = %d", cfg.Mail.Port)
	}
	if cfg.Metrics.Listen != ":9100" {
		t.Fatalf("metrics listen = %q", cfg.Metrics.Listen)
	}
	if cfg.CoreConfig().Telegram.RunMode != "longpoll" {
		t.Fatalf("run mode = %q", cfg.CoreConfig().Telegram.RunMode)
	}
	if cfg.Database.Host != "db" || cfg.Catalog.ImageDir != "static/images" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"no bot name":       "telegram:\n  token: x\n",
		"negative reward":   "telegram:\n  token: x\nreferral:\n  bot_name: b\n  reward_1: -1\n",
		"mail without from": "telegram:\n  token: x\nreferral:\n  bot_name: b\nmail:\n  host: smtp\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/m3rciful/refbot/bot/config"
	"github.com/m3rciful/refbot/bot/tgbot"
	corecmd "github.com/m3rciful/refbot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			appCfg, ok := cfg.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", cfg)
			}
			return tgbot.Bootstrap(ctx, appCfg)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}

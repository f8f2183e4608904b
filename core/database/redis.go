package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/refbot/core/logger"
)

// RedisConfig holds Redis connection settings. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// Enabled reports whether an address is configured.
func (c RedisConfig) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

// ConnectRedis opens a client and pings it once.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		logger.DB.Error("redis ping failed",
			slog.String("event", "redis.connect"),
			slog.String("host", cfg.Addr),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.DB.Info("redis connected",
		slog.String("event", "redis.connect"),
		slog.String("host", cfg.Addr),
		slog.Int("db", cfg.DB),
	)
	return rdb, nil
}

package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	coreconfig "github.com/m3rciful/refbot/core/config"
	coredatabase "github.com/m3rciful/refbot/core/database"
	"github.com/m3rciful/refbot/core/logger"
)

// Options control the bootstrap pipeline. Nil funcs fall back to the core implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Redis    coredatabase.RedisConfig

	LoggerInit   func(*coreconfig.Config) error
	Connect      func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate      func(context.Context, coredatabase.Config) error
	ConnectRedis func(context.Context, coredatabase.RedisConfig) (*redis.Client, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
	// Redis is nil when no address is configured.
	Redis *redis.Client
}

// Close releases the connections held by r.
func (r *Result) Close() error {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	return r.DB.Close()
}

// Run initializes the logger, connects to the database, applies migrations
// and connects to Redis when configured.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, opts.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res := &Result{DB: db}

	if !opts.Redis.Enabled() {
		return res, nil
	}
	connectRedis := opts.ConnectRedis
	if connectRedis == nil {
		connectRedis = coredatabase.ConnectRedis
	}
	if res.Redis, err = connectRedis(ctx, opts.Redis); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: redis initialization failed: %w", err)
	}
	return res, nil
}

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/refbot/core/logger"
)

// Seeder loads reference data once the schema is in place.
type Seeder interface {
	Name() string
	Seed(ctx context.Context) error
}

type namedSeeder struct {
	name string
	fn   func(context.Context) error
}

func (s namedSeeder) Name() string                   { return s.name }
func (s namedSeeder) Seed(ctx context.Context) error { return s.fn(ctx) }

// SeederFunc names fn so it can be logged.
func SeederFunc(name string, fn func(context.Context) error) Seeder {
	return namedSeeder{name: name, fn: fn}
}

// RunSeeders executes seeders in order and stops at the first failure.
func RunSeeders(ctx context.Context, seeders ...Seeder) error {
	for _, s := range seeders {
		start := time.Now()
		err := s.Seed(ctx)
		logger.LogEvent(ctx, logger.SEED, levelFor(err), "seed",
			slog.String("op", s.Name()),
			slog.String("status", logger.Status(err)),
			slog.Duration("duration", logger.Took(start)),
		)
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.Name(), err)
		}
	}
	return nil
}

func levelFor(err error) slog.Level {
	if err != nil {
		return slog.LevelError
	}
	return slog.LevelInfo
}

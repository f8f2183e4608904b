package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/refbot/core/config"
	coredatabase "github.com/m3rciful/refbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunMigratesBeforeConnecting(t *testing.T) {
	var order []string
	raw, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Migrate: func(context.Context, coredatabase.Config) error {
			order = append(order, "migrate")
			return nil
		},
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			order = append(order, "connect")
			return sqlx.NewDb(raw, "sqlmock"), nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Redis != nil {
		t.Fatalf("redis should stay nil without an address")
	}
	if len(order) != 2 || order[0] != "migrate" || order[1] != "connect" {
		t.Fatalf("order = %v", order)
	}
}

func TestRunStopsOnMigrationError(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Migrate: func(context.Context, coredatabase.Config) error {
			return errors.New("dirty")
		},
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			t.Fatalf("connect must not run")
			return nil, nil
		},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunSeedersStopsAtFirstFailure(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	err := RunSeeders(context.Background(),
		SeederFunc("settings", func(context.Context) error { ran = append(ran, "settings"); return nil }),
		SeederFunc("catalog", func(context.Context) error { ran = append(ran, "catalog"); return boom }),
		SeederFunc("never", func(context.Context) error { ran = append(ran, "never"); return nil }),
	)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(ran) != 2 {
		t.Fatalf("ran = %v", ran)
	}
}

package database

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestConfigDSNAndURL(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "bot", Password: "p@ss", Name: "refbot"}
	if got := cfg.DSN(); !strings.Contains(got, "sslmode=disable") || !strings.Contains(got, "host=db") {
		t.Fatalf("dsn = %q", got)
	}
	want := "postgres://bot:p%40ss@db:5432/refbot?sslmode=disable"
	if got := cfg.URL(); got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}

func TestSelectApplied(t *testing.T) {
	files := []string{"0001_init.up.sql", "0002_settings.up.sql", "0003_drafts.up.sql"}
	got := selectApplied(files, 1, 3)
	want := []string{"0002_settings.up.sql", "0003_drafts.up.sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("applied = %v", got)
	}
	if got := selectApplied(files, 3, 3); len(got) != 0 {
		t.Fatalf("no-change applied = %v", got)
	}
}

func TestListMigrationFilesSkipsDown(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	got := listMigrationFiles(dir)
	if !reflect.DeepEqual(got, []string{"0001_a.up.sql", "0002_b.up.sql"}) {
		t.Fatalf("files = %v", got)
	}
}

func TestMigrationsDirDefaultsToWorkingDir(t *testing.T) {
	dir, err := migrationsDir(Config{})
	if err != nil {
		t.Fatalf("dir: %v", err)
	}
	if filepath.Base(dir) != "migrations" || !filepath.IsAbs(dir) {
		t.Fatalf("dir = %q", dir)
	}
	abs, _ := migrationsDir(Config{MigrationsDir: "/srv/sql"})
	if abs != "/srv/sql" {
		t.Fatalf("abs = %q", abs)
	}
}

func TestConnectRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb, err := ConnectRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	mr.Close()
	if _, err := ConnectRedis(context.Background(), RedisConfig{Addr: mr.Addr()}); err == nil {
		t.Fatalf("expected error for closed server")
	}
}

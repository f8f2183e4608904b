package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/m3rciful/refbot/core/bootstrap"
	"github.com/m3rciful/refbot/core/logger"
)

// Catalog is the layout of the provider seed file.
type Catalog struct {
	Providers []LinkProvider `yaml:"providers"`
}

// LoadCatalog parses the YAML catalog at path.
func LoadCatalog(path string) (Catalog, error) {
	var c Catalog
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse catalog: %w", err)
	}
	for i, p := range c.Providers {
		if p.Name == "" {
			return c, fmt.Errorf("catalog provider #%d has no name", i+1)
		}
	}
	return c, nil
}

// SettingsSeeder makes sure the singleton settings row exists.
func SettingsSeeder(s Store, defaults SiteSettings) bootstrap.Seeder {
	return bootstrap.SeederFunc("settings", func(ctx context.Context) error {
		out, err := s.EnsureSettings(ctx, defaults)
		if err != nil {
			return err
		}
		logger.LogEvent(ctx, logger.SEED, slog.LevelDebug, "seed.settings", slog.String("outcome", out.String()))
		return nil
	})
}

// CatalogSeeder upserts the providers listed in the catalog file. An empty
// path disables it.
func CatalogSeeder(s Store, path string) bootstrap.Seeder {
	return bootstrap.SeederFunc("catalog", func(ctx context.Context) error {
		if path == "" {
			return nil
		}
		c, err := LoadCatalog(path)
		if err != nil {
			return err
		}
		for _, p := range c.Providers {
			if err := s.UpsertProvider(ctx, p); err != nil {
				return err
			}
		}
		logger.LogEvent(ctx, logger.SEED, slog.LevelInfo, "seed.catalog", slog.Int("count", len(c.Providers)))
		return nil
	})
}

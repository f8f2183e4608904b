// Package config loads the refbot application configuration.
package config

import (
	"fmt"
	"strings"

	coreconfig "github.com/m3rciful/refbot/core/config"
	coredatabase "github.com/m3rciful/refbot/core/database"
)

// Default per-level rewards.
const (
	DefaultReward = 100
)

// ReferralConfig controls invitation links and rewards.
type ReferralConfig struct {
	// BotName is the bot username used in https://t.me/<name>?start=<token> links.
	BotName string `yaml:"bot_name" envconfig:"BOT_NAME"`
	Reward1 int    `yaml:"reward_1" envconfig:"REWARD_1"`
	Reward2 int    `yaml:"reward_2" envconfig:"REWARD_2"`
	Reward3 int    `yaml:"reward_3" envconfig:"REWARD_3"`
	// QRCode adds a QR code photo of the invitation link.
	QRCode bool `yaml:"qr_code" envconfig:"REFERRAL_QR_CODE"`
}

// Rewards returns the per-level rewards, level 1 first.
func (r ReferralConfig) Rewards() [3]int {
	return [3]int{r.Reward1, r.Reward2, r.Reward3}
}

// CatalogConfig locates provider images and the optional provider seed file.
type CatalogConfig struct {
	ImageDir string `yaml:"image_dir" envconfig:"CATALOG_IMAGE_DIR"`
	SeedFile string `yaml:"seed_file" envconfig:"CATALOG_SEED_FILE"`
}

// MailConfig holds SMTP settings for admin email notifications. An empty Host disables email.
type MailConfig struct {
	Host     string `yaml:"host" envconfig:"SMTP_HOST"`
	Port     int    `yaml:"port" envconfig:"SMTP_PORT"`
	Username string `yaml:"username" envconfig:"SMTP_USERNAME"`
	Password string `yaml:"password" envconfig:"SMTP_PASSWORD"`
	From     string `yaml:"from" envconfig:"SMTP_FROM"`
}

// MetricsConfig controls the Prometheus exporter. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config      `yaml:"database"`
	Redis    coredatabase.RedisConfig `yaml:"redis"`
	Referral ReferralConfig           `yaml:"referral"`
	Catalog  CatalogConfig            `yaml:"catalog"`
	Mail     MailConfig               `yaml:"mail"`
	Metrics  MetricsConfig            `yaml:"metrics"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads the YAML file at path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	c.Referral.BotName = strings.TrimPrefix(strings.TrimSpace(c.Referral.BotName), "@")
	if c.Referral.BotName == "" {
		return fmt.Errorf("referral.bot_name is required")
	}
	for _, r := range []*int{&c.Referral.Reward1, &c.Referral.Reward2, &c.Referral.Reward3} {
		if *r < 0 {
			return fmt.Errorf("referral rewards must be >= 0")
		}
		if *r == 0 {
			*r = DefaultReward
		}
	}
	if c.Mail.Host != "" {
		if c.Mail.Port == 0 {
			c.Mail.Port = 587
		}
		if c.Mail.From == "" {
			return fmt.Errorf("mail.from is required when mail.host is set")
		}
	}
	return nil
}

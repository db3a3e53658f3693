package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/okassov/paygate/internal/domain"
)

// Config is the service configuration. Scalar settings come from the
// environment; the deposit address book lives in an optional YAML file
// pointed to by CONFIG_FILE.
type Config struct {
	Port        string `env:"SERVER_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	DBSource    string `env:"DB_SOURCE,required"`
	ConfigFile  string `env:"CONFIG_FILE"`

	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`

	Tron     TronConfig
	Telegram TelegramConfig
	Payment  PaymentConfig
	Window   WindowConfig
	Monitor  MonitorConfig
}

type TronConfig struct {
	BaseURL      string `env:"TRONGRID_BASE_URL"`
	APIKey       string `env:"TRONGRID_API_KEY"`
	USDTContract string `env:"USDT_CONTRACT_ADDRESS"`
}

type TelegramConfig struct {
	BotToken         string `env:"BOT_TOKEN,required"`
	ChannelID        string `env:"CHANNEL_ID,required"`
	InviteTTLMinutes int    `env:"INVITE_TTL_MINUTES" envDefault:"30"`
}

func (c TelegramConfig) InviteTTL() time.Duration {
	return time.Duration(c.InviteTTLMinutes) * time.Minute
}

type PaymentConfig struct {
	// ExpectedAmountMinor is the subscription fee in token minor units
	// (25 USDT = 25_000_000).
	ExpectedAmountMinor int64   `env:"EXPECTED_AMOUNT_MINOR" envDefault:"25000000"`
	MaxAgeHours         float64 `env:"MAX_AGE_HOURS" envDefault:"5"`

	// Addresses is loaded from the YAML config file, not the environment.
	Addresses []domain.PaymentAddress `env:"-"`
}

// WindowConfig carries the injectable window rule. The historical rule
// drifted across 30th/+3, 29th/ISO-week and 30th/+5 variants, so both
// numbers stay configurable pending product clarification.
type WindowConfig struct {
	OpenDay  int `env:"WINDOW_OPEN_DAY" envDefault:"30"`
	CloseDay int `env:"WINDOW_CLOSE_DAY" envDefault:"5"`
}

type MonitorConfig struct {
	Enabled         bool `env:"MONITOR_ENABLED" envDefault:"false"`
	IntervalSeconds int  `env:"MONITOR_INTERVAL_SECONDS" envDefault:"10"`
}

func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// fileConfig is the YAML file shape.
type fileConfig struct {
	Addresses []domain.PaymentAddress `yaml:"addresses"`
}

// Load parses the environment and, when CONFIG_FILE is set, merges the
// address book from the YAML file.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.ConfigFile != "" {
		data, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
		for _, addr := range fc.Addresses {
			if addr.ID == "" || addr.Address == "" {
				return nil, fmt.Errorf("config file: address entries need id and address")
			}
		}
		cfg.Payment.Addresses = fc.Addresses
	}

	return cfg, nil
}

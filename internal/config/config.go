package config

import (
	"fmt"
	"os"
	"time"

	"cosmossdk.io/math"
	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"EpochVault/internal/units"
)

// Config holds all application configuration.
type Config struct {
	Vault struct {
		Account    string        `yaml:"account"`
		Admin      string        `yaml:"admin" env:"VAULT_ADMIN"`
		Roller     string        `yaml:"roller" env:"VAULT_ROLLER"`
		Trader     string        `yaml:"trader" env:"VAULT_TRADER"`
		Frequency  time.Duration `yaml:"frequency" env:"VAULT_FREQUENCY"`
		MaxDeposit string        `yaml:"max_deposit" env:"VAULT_MAX_DEPOSIT"` // whole units, e.g. "1000000.5"
		StateFile  string        `yaml:"state_file" env:"VAULT_STATE_FILE"`
		BaseSymbol string        `yaml:"base_symbol"`
		SideSymbol string        `yaml:"side_symbol"`
	} `yaml:"vault"`
	PriceFeed struct {
		Source  string `yaml:"source" env:"PRICE_FEED_SOURCE"` // "http" or "yahoo"
		BaseURL string `yaml:"base_url" env:"PRICE_FEED_BASE_URL"`
		APIKey  string `yaml:"api_key" env:"PRICE_FEED_API_KEY"`
	} `yaml:"price_feed"`
	Schedule struct {
		RollCron    string `yaml:"roll_cron" env:"CRON_ROLL"`
		RollOnStart bool   `yaml:"roll_on_start" env:"RUN_ON_START"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
		Polling  bool   `yaml:"polling" env:"TELEGRAM_POLLING"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	} `yaml:"database"`
	Server struct {
		ListenAddr string `yaml:"listen_addr" env:"SERVER_ADDR"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy" env:"HTTPS_PROXY"`

	maxDeposit math.Int
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Defaults
	if cfg.Vault.Account == "" {
		cfg.Vault.Account = "vault"
	}
	if cfg.Vault.Roller == "" {
		cfg.Vault.Roller = "keeper"
	}
	if cfg.Vault.Frequency == 0 {
		cfg.Vault.Frequency = 7 * 24 * time.Hour
	}
	if cfg.Vault.MaxDeposit == "" {
		cfg.Vault.MaxDeposit = "1000000"
	}
	if cfg.Vault.StateFile == "" {
		cfg.Vault.StateFile = "data/vault_state.json"
	}
	if cfg.Vault.BaseSymbol == "" {
		cfg.Vault.BaseSymbol = "USDC"
	}
	if cfg.PriceFeed.Source == "" {
		cfg.PriceFeed.Source = "yahoo"
		if cfg.PriceFeed.BaseURL != "" {
			cfg.PriceFeed.Source = "http"
		}
	}
	if cfg.Schedule.RollCron == "" {
		cfg.Schedule.RollCron = "0 * * * * *"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/epoch_vault.db"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":9464"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and parses derived values.
func (c *Config) Validate() error {
	if c.Vault.Admin == "" {
		return fmt.Errorf("vault.admin is required")
	}
	if c.Vault.Frequency < time.Minute {
		return fmt.Errorf("vault.frequency must be at least 1m, got %s", c.Vault.Frequency)
	}
	if c.Vault.Account == c.Vault.Admin || c.Vault.Account == c.Vault.Roller {
		return fmt.Errorf("vault.account must differ from operator accounts")
	}
	limit, err := units.Parse(c.Vault.MaxDeposit)
	if err != nil {
		return fmt.Errorf("vault.max_deposit: %w", err)
	}
	c.maxDeposit = limit
	switch c.PriceFeed.Source {
	case "yahoo":
	case "http":
		if c.Vault.SideSymbol != "" && c.PriceFeed.BaseURL == "" {
			return fmt.Errorf("price_feed.base_url is required for the http source")
		}
	default:
		return fmt.Errorf("price_feed.source must be http or yahoo, got %q", c.PriceFeed.Source)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(c.Schedule.RollCron); err != nil {
		return fmt.Errorf("schedule.roll_cron: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// MaxDepositAmount returns the parsed deposit cap in base units. Valid after Validate.
func (c *Config) MaxDepositAmount() math.Int {
	if c.maxDeposit.IsNil() {
		return units.Zero()
	}
	return c.maxDeposit
}

// TelegramEnabled reports whether notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"TradeVision/internal/collector"
)

// Config holds all application configuration.
type Config struct {
	Data struct {
		CSVPath       string `yaml:"csv_path"`
		CSVURL        string `yaml:"csv_url"`
		Symbol        string `yaml:"symbol"`
		Watch         bool   `yaml:"watch"`
		WatchDebounce string `yaml:"watch_debounce"`
	} `yaml:"data"`
	Ingest struct {
		NumericPolicy string `yaml:"numeric_policy"`
		Timezone      string `yaml:"timezone"`
	} `yaml:"ingest"`
	Analyst struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"analyst"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		ReloadCron   string `yaml:"reload_cron"`
		ForecastCron string `yaml:"forecast_cron"`
	} `yaml:"schedule"`
	HTTP struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"http"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env (if present) and the YAML file at path, then applies
// environment variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

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

	// Environment variable overrides
	setString(&cfg.Data.CSVPath, "TRADEVISION_CSV_PATH")
	setString(&cfg.Data.CSVURL, "TRADEVISION_CSV_URL")
	setString(&cfg.Data.Symbol, "TRADEVISION_SYMBOL")
	setString(&cfg.Ingest.NumericPolicy, "TRADEVISION_NUMERIC_POLICY")
	setString(&cfg.Analyst.APIKey, "GOOGLE_API_KEY")
	setString(&cfg.Analyst.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Analyst.Model, "GEMINI_MODEL")
	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Database.SQLitePath, "SQLITE_PATH")
	setString(&cfg.Proxy, "HTTPS_PROXY")
	setString(&cfg.Schedule.ReloadCron, "CRON_RELOAD")
	setString(&cfg.Schedule.ForecastCron, "CRON_FORECAST")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}

	// Defaults
	if cfg.Data.CSVPath == "" && cfg.Data.CSVURL == "" {
		cfg.Data.CSVPath = "data/stock_data.csv"
	}
	if cfg.Data.Symbol == "" {
		cfg.Data.Symbol = "TSLA"
	}
	if cfg.Data.WatchDebounce == "" {
		cfg.Data.WatchDebounce = "500ms"
	}
	if cfg.Ingest.NumericPolicy == "" {
		cfg.Ingest.NumericPolicy = string(collector.CoerceToZero)
	}
	if cfg.Ingest.Timezone == "" {
		cfg.Ingest.Timezone = "UTC"
	}
	if cfg.Analyst.Model == "" {
		cfg.Analyst.Model = "gemini-2.0-flash"
	}
	if cfg.Analyst.Timeout == "" {
		cfg.Analyst.Timeout = "60s"
	}
	if cfg.Schedule.ReloadCron == "" {
		cfg.Schedule.ReloadCron = "0 */15 * * * *"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
	if cfg.Redis.TTL == "" {
		cfg.Redis.TTL = "1h"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/tradevision.db"
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that all fields parse. Credentials are optional: features
// whose credentials are missing are disabled at startup.
func (c *Config) Validate() error {
	if c.Data.CSVPath == "" && c.Data.CSVURL == "" {
		return fmt.Errorf("data.csv_path or data.csv_url is required")
	}
	if _, err := collector.ParsePolicy(c.Ingest.NumericPolicy); err != nil {
		return fmt.Errorf("ingest.numeric_policy: %w", err)
	}
	if _, err := time.LoadLocation(c.Ingest.Timezone); err != nil {
		return fmt.Errorf("ingest.timezone: %w", err)
	}
	for name, v := range map[string]string{
		"analyst.timeout":     c.Analyst.Timeout,
		"data.watch_debounce": c.Data.WatchDebounce,
		"redis.ttl":           c.Redis.TTL,
	} {
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("%s must be a non-negative duration, got %q", name, v)
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// AnalystTimeout returns the per-request model deadline.
func (c *Config) AnalystTimeout() time.Duration { return mustDuration(c.Analyst.Timeout) }

// WatchDebounce returns the file watcher debounce interval.
func (c *Config) WatchDebounce() time.Duration { return mustDuration(c.Data.WatchDebounce) }

// RedisTTL returns the answer cache TTL.
func (c *Config) RedisTTL() time.Duration { return mustDuration(c.Redis.TTL) }

// Location returns the zone used for timestamps without an offset.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ingest.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Policy returns the numeric coercion policy.
func (c *Config) Policy() collector.NumericPolicy {
	p, err := collector.ParsePolicy(c.Ingest.NumericPolicy)
	if err != nil {
		return collector.CoerceToZero
	}
	return p
}

// TelegramEnabled reports whether bot credentials are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// mustDuration parses a duration validated by Validate; invalid input yields 0.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

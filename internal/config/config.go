package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SeriesKeeper/internal/collector"
	"SeriesKeeper/internal/model"
)

// PriceSeries names one symbol/currency pair to keep cached.
type PriceSeries struct {
	Symbol   string `yaml:"symbol"`
	Currency string `yaml:"currency"`
}

// Config holds all application configuration.
type Config struct {
	Store struct {
		DataDir         string `yaml:"data_dir"`
		AuditSQLitePath string `yaml:"audit_sqlite_path"`
	} `yaml:"store"`
	PriceSource struct {
		BaseURL          string `yaml:"base_url"`
		APIKey           string `yaml:"api_key"`
		PageSize         int    `yaml:"page_size"`
		FreshnessLagDays int    `yaml:"freshness_lag_days"`
	} `yaml:"price_source"`
	MetricsSource struct {
		BaseURL          string `yaml:"base_url"`
		PageSize         int    `yaml:"page_size"`
		FreshnessLagDays *int   `yaml:"freshness_lag_days"`
	} `yaml:"metrics_source"`
	Fetch struct {
		Timeout time.Duration `yaml:"timeout"`
		Epoch   string        `yaml:"epoch"`
	} `yaml:"fetch"`
	Series struct {
		Prices  []PriceSeries `yaml:"prices"`
		Metrics []string      `yaml:"metrics"`
	} `yaml:"series"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// LoadDotenv loads variables from a .env file without overriding the
// environment. ENV_FILE selects another file; NO_DOTENV=1 disables it.
func LoadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	path := ".env"
	if v := os.Getenv("ENV_FILE"); v != "" {
		path = v
	}
	_ = godotenv.Load(path)
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

	// Environment variable overrides
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v, ok := os.LookupEnv("AUDIT_SQLITE_PATH"); ok {
		cfg.Store.AuditSQLitePath = v
	}
	if v := os.Getenv("CRYPTOCOMPARE_BASE_URL"); v != "" {
		cfg.PriceSource.BaseURL = v
	}
	if v := os.Getenv("CRYPTOCOMPARE_API_KEY"); v != "" {
		cfg.PriceSource.APIKey = v
	}
	if v := os.Getenv("COINMETRICS_BASE_URL"); v != "" {
		cfg.MetricsSource.BaseURL = v
	}
	if v := os.Getenv("FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse FETCH_TIMEOUT: %w", err)
		}
		cfg.Fetch.Timeout = d
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		cfg.Schedule.RefreshCron = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	// Defaults
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = "data"
	}
	if _, ok := os.LookupEnv("AUDIT_SQLITE_PATH"); !ok && cfg.Store.AuditSQLitePath == "" {
		cfg.Store.AuditSQLitePath = "data/refresh_audit.db"
	}
	if cfg.PriceSource.BaseURL == "" {
		cfg.PriceSource.BaseURL = collector.DefaultCryptoCompareURL
	}
	if cfg.PriceSource.PageSize == 0 {
		cfg.PriceSource.PageSize = collector.DefaultCryptoComparePageSize
	}
	if cfg.MetricsSource.BaseURL == "" {
		cfg.MetricsSource.BaseURL = collector.DefaultCoinMetricsURL
	}
	if cfg.MetricsSource.PageSize == 0 {
		cfg.MetricsSource.PageSize = collector.DefaultCoinMetricsPageSize
	}
	if cfg.MetricsSource.FreshnessLagDays == nil {
		lag := 1
		cfg.MetricsSource.FreshnessLagDays = &lag
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 60 * time.Second
	}
	if cfg.Fetch.Epoch == "" {
		cfg.Fetch.Epoch = "2010-01-01"
	}
	if len(cfg.Series.Prices) == 0 && len(cfg.Series.Metrics) == 0 {
		cfg.Series.Prices = []PriceSeries{{Symbol: "BTC", Currency: "USD"}}
		cfg.Series.Metrics = []string{"btc"}
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 5 0 * * *"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if _, err := c.EpochDay(); err != nil {
		return fmt.Errorf("fetch.epoch: %w", err)
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative")
	}
	if c.PriceSource.PageSize < 1 || c.MetricsSource.PageSize < 1 {
		return fmt.Errorf("page_size must be positive")
	}
	if c.PriceSource.FreshnessLagDays < 0 || *c.MetricsSource.FreshnessLagDays < 0 {
		return fmt.Errorf("freshness_lag_days must not be negative")
	}
	for i, p := range c.Series.Prices {
		if strings.TrimSpace(p.Symbol) == "" || strings.TrimSpace(p.Currency) == "" {
			return fmt.Errorf("series.prices[%d]: symbol and currency are required", i)
		}
	}
	for i, s := range c.Series.Metrics {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("series.metrics[%d]: symbol is required", i)
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// EpochDay is the first day requested on a cold start.
func (c *Config) EpochDay() (time.Time, error) {
	return model.ParseDay(c.Fetch.Epoch)
}

// MetricsLagDays returns the configured metrics freshness lag.
func (c *Config) MetricsLagDays() int {
	if c.MetricsSource.FreshnessLagDays == nil {
		return 1
	}
	return *c.MetricsSource.FreshnessLagDays
}

// PriceKeys lists the configured price series keys.
func (c *Config) PriceKeys() []model.Key {
	keys := make([]model.Key, 0, len(c.Series.Prices))
	for _, p := range c.Series.Prices {
		keys = append(keys, model.PriceKey(p.Symbol, p.Currency))
	}
	return keys
}

// MetricKeys lists the configured metric series keys.
func (c *Config) MetricKeys() []model.Key {
	keys := make([]model.Key, 0, len(c.Series.Metrics))
	for _, s := range c.Series.Metrics {
		keys = append(keys, model.MetricKey(s))
	}
	return keys
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SeriesKeeper/internal/collector"
	"SeriesKeeper/internal/model"
)

var envKeys = []string{
	"DATA_DIR", "AUDIT_SQLITE_PATH", "CRYPTOCOMPARE_BASE_URL", "CRYPTOCOMPARE_API_KEY",
	"COINMETRICS_BASE_URL", "FETCH_TIMEOUT", "CRON_REFRESH", "TELEGRAM_BOT_TOKEN",
	"TELEGRAM_CHAT_ID", "HTTPS_PROXY",
}

// clearEnv blanks every override so the host environment cannot leak in.
// AUDIT_SQLITE_PATH is unset rather than blanked since an empty value is meaningful.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	os.Unsetenv("AUDIT_SQLITE_PATH")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "data", cfg.Store.DataDir)
	assert.Equal(t, "data/refresh_audit.db", cfg.Store.AuditSQLitePath)
	assert.Equal(t, collector.DefaultCryptoCompareURL, cfg.PriceSource.BaseURL)
	assert.Equal(t, collector.DefaultCryptoComparePageSize, cfg.PriceSource.PageSize)
	assert.Equal(t, 0, cfg.PriceSource.FreshnessLagDays)
	assert.Equal(t, collector.DefaultCoinMetricsURL, cfg.MetricsSource.BaseURL)
	assert.Equal(t, 1, cfg.MetricsLagDays())
	assert.Equal(t, 60*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "0 5 0 * * *", cfg.Schedule.RefreshCron)
	assert.Equal(t, []model.Key{model.PriceKey("BTC", "USD")}, cfg.PriceKeys())
	assert.Equal(t, []model.Key{model.MetricKey("btc")}, cfg.MetricKeys())

	epoch, err := cfg.EpochDay()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), epoch)
}

func TestLoad_YAMLValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
store:
  data_dir: /var/lib/keeper
price_source:
  api_key: secret
  page_size: 500
metrics_source:
  freshness_lag_days: 0
fetch:
  timeout: 15s
  epoch: "2015-06-01"
series:
  prices:
    - {symbol: eth, currency: eur}
  metrics: [ETH]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/keeper", cfg.Store.DataDir)
	assert.Equal(t, "secret", cfg.PriceSource.APIKey)
	assert.Equal(t, 500, cfg.PriceSource.PageSize)
	assert.Equal(t, 0, cfg.MetricsLagDays(), "explicit zero lag must survive defaults")
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, []model.Key{model.PriceKey("ETH", "EUR")}, cfg.PriceKeys())
	assert.Equal(t, []model.Key{model.MetricKey("eth")}, cfg.MetricKeys())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
store:
  data_dir: from-yaml
telegram:
  bot_token: yaml-token
  chat_id: "1"
`)
	t.Setenv("DATA_DIR", "from-env")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("AUDIT_SQLITE_PATH", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Store.DataDir)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "1", cfg.Telegram.ChatID)
	assert.Empty(t, cfg.Store.AuditSQLitePath, "empty AUDIT_SQLITE_PATH disables the audit log")
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "store: [unclosed"))
	assert.Error(t, err)

	t.Setenv("FETCH_TIMEOUT", "soon")
	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad epoch", func(c *Config) { c.Fetch.Epoch = "01/01/2010" }},
		{"negative timeout", func(c *Config) { c.Fetch.Timeout = -time.Second }},
		{"zero page size", func(c *Config) { c.MetricsSource.PageSize = 0 }},
		{"negative lag", func(c *Config) { c.PriceSource.FreshnessLagDays = -1 }},
		{"blank currency", func(c *Config) { c.Series.Prices = []PriceSeries{{Symbol: "BTC"}} }},
		{"blank metric", func(c *Config) { c.Series.Metrics = []string{" "} }},
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "t" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDotenv_DoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CRON_REFRESH=0 0 1 * * *\nDATA_DIR=from-dotenv\n"), 0o644))
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("NO_DOTENV", "")
	t.Setenv("DATA_DIR", "from-shell")
	os.Unsetenv("CRON_REFRESH")
	t.Cleanup(func() { os.Unsetenv("CRON_REFRESH") })

	LoadDotenv()

	assert.Equal(t, "0 0 1 * * *", os.Getenv("CRON_REFRESH"))
	assert.Equal(t, "from-shell", os.Getenv("DATA_DIR"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
exchange:
  id: paper
trading:
  symbol: btcusdt
  lower_price: 100
  upper_price: 200
  grid_count: 10
  total_investment: 1000
`

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", minimalConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Trading.Symbol)
	assert.Equal(t, "paper", cfg.Exchange.ID)
	assert.Equal(t, "text", cfg.App.LogFormat)
	assert.True(t, cfg.Exchange.Sandbox)
	assert.Equal(t, "binance", cfg.Exchange.MarketSource)
	assert.Equal(t, 2, cfg.Trading.PricePrecision)
	assert.Equal(t, 0.01, cfg.Trading.SellMarkupPct)
	assert.Equal(t, 0.05, cfg.Trading.TrailingStop.Percentage)
	assert.Equal(t, "rsi", cfg.Trading.VolatilitySource)
	assert.Equal(t, "default", cfg.Trading.Strategy.Type)
	assert.Equal(t, 60, cfg.Performance.PollIntervalSeconds)
	assert.Equal(t, 60, cfg.Performance.ErrorBackoffSeconds)
	assert.True(t, cfg.Performance.RestoreLedger)

	sig, err := cfg.Trading.Strategy.Signals()
	require.NoError(t, err)
	assert.Equal(t, 14, sig.VolatilityPeriod)
	assert.Equal(t, 70.0, sig.RSIThreshold)
	assert.Equal(t, 26, sig.MACDSlowPeriod)
	// macd slow+signal-1 dominates rsi period+1 and bollinger period
	assert.Equal(t, 34, cfg.Trading.HistoryLimit)
}

func TestLoadRespectsExplicitValues(t *testing.T) {
	body := minimalConfig + `
  price_precision: 0
  strategy:
    type: default
    parameters:
      rsi_threshold: "65"
      volatility_period: 7
performance:
  poll_interval_seconds: 5
  restore_ledger: false
`
	path := writeConfig(t, t.TempDir(), "config.yaml", body)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Trading.PricePrecision)
	assert.False(t, cfg.Performance.RestoreLedger)
	assert.Equal(t, 5, cfg.Performance.ErrorBackoffSeconds)

	sig, err := cfg.Trading.Strategy.Signals()
	require.NoError(t, err)
	assert.Equal(t, 65.0, sig.RSIThreshold)
	assert.Equal(t, 7, sig.VolatilityPeriod)
	assert.Equal(t, 12, sig.MACDFastPeriod)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", minimalConfig)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
trading:
  grid_count: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Trading.GridCount)
	assert.Equal(t, 100.0, cfg.Trading.LowerPrice)
}

func TestLoadEnvOverridesCredentials(t *testing.T) {
	body := `
exchange:
  id: binance
  api_key: from-file
  api_secret: from-file
trading:
  symbol: BTCUSDT
  lower_price: 100
  upper_price: 200
  grid_count: 10
  total_investment: 1000
`
	path := writeConfig(t, t.TempDir(), "config.yaml", body)
	t.Setenv(EnvAPIKey, "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Exchange.APIKey)
	assert.Equal(t, "from-file", cfg.Exchange.APISecret)
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".env", EnvAPISecret+"=dotenv-secret\n"+EnvAPIKey+"=dotenv-key\n")
	path := writeConfig(t, dir, "config.yaml", `
exchange:
  id: binance
trading:
  symbol: BTCUSDT
  lower_price: 100
  upper_price: 200
  grid_count: 10
  total_investment: 1000
`)
	require.NoError(t, os.Unsetenv(EnvAPIKey))
	require.NoError(t, os.Unsetenv(EnvAPISecret))
	t.Cleanup(func() {
		os.Unsetenv(EnvAPIKey)
		os.Unsetenv(EnvAPISecret)
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.Exchange.APIKey)
	assert.Equal(t, "dotenv-secret", cfg.Exchange.APISecret)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"inverted range": `
exchange: {id: paper}
trading: {symbol: X, lower_price: 200, upper_price: 100, grid_count: 10, total_investment: 1000}
`,
		"zero grid count": `
exchange: {id: paper}
trading: {symbol: X, lower_price: 100, upper_price: 200, grid_count: 0, total_investment: 1000}
`,
		"binance without keys": `
exchange: {id: binance}
trading: {symbol: X, lower_price: 100, upper_price: 200, grid_count: 10, total_investment: 1000}
`,
		"unknown exchange": `
exchange: {id: kraken}
trading: {symbol: X, lower_price: 100, upper_price: 200, grid_count: 10, total_investment: 1000}
`,
		"history too short": `
exchange: {id: paper}
trading: {symbol: X, lower_price: 100, upper_price: 200, grid_count: 10, total_investment: 1000, history_limit: 5}
`,
		"bad volatility source": `
exchange: {id: paper}
trading: {symbol: X, lower_price: 100, upper_price: 200, grid_count: 10, total_investment: 1000, volatility_source: atr}
`,
		"bad log format": minimalConfig + `
app:
  log_format: xml
`,
		"telegram without token": minimalConfig + `
notify:
  telegram: {enabled: true}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", body)
			t.Setenv(EnvAPIKey, "")
			t.Setenv(EnvAPISecret, "")
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "include cycle")
}

func TestLintReportsUnknownKeys(t *testing.T) {
	body := minimalConfig + `
  grid_quantity: 10
  strategy:
    parameters:
      anything_goes: 1
performance:
  log_interval: 60
`
	path := writeConfig(t, t.TempDir(), "config.yaml", body)
	unknown, err := Lint(path)
	require.NoError(t, err)
	require.Len(t, unknown, 2)
	assert.Contains(t, unknown[0], "performance.log_interval")
	assert.Contains(t, unknown[1], "trading.grid_quantity")
}

func TestWatcherReloadNotifiesListeners(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", minimalConfig)
	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial)
	require.NoError(t, err)
	assert.Same(t, initial, w.Current())

	var got *Config
	w.Subscribe(func(c *Config) { got = c })

	require.NoError(t, os.WriteFile(path, []byte(minimalConfig+"  price_precision: 4\n"), 0o644))
	require.NoError(t, w.reload())
	require.NotNil(t, got)
	assert.Equal(t, 4, got.Trading.PricePrecision)
	assert.Same(t, got, w.Current())

	require.NoError(t, os.WriteFile(path, []byte("trading: {grid_count: 0}\n"), 0o644))
	assert.Error(t, w.reload())
	assert.Same(t, got, w.Current())
}

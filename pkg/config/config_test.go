package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

const minimalYAML = `
strategies:
  symbols: [AAPL, BTC-USD]
`

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 15*time.Second, c.Server.ShutdownTimeout)
	assert.Equal(t, 14, c.Indicators.RSIPeriod)
	assert.Equal(t, 12, c.Indicators.EMAFast)
	assert.Equal(t, 26, c.Indicators.EMASlow)
	assert.Equal(t, 600, c.Indicators.Window)
	assert.Equal(t, "localhost:6379", c.Redis.Addr)
	assert.Equal(t, "market.bars", c.Kafka.BarsTopic)
	assert.Equal(t, "signals.events", c.Kafka.SignalsTopic)
	assert.Equal(t, 70.0, c.Notifier.MinStrength)
	assert.Equal(t, 6*time.Hour, c.Notifier.Cooldown)
	assert.Equal(t, 24*time.Hour, c.Notifier.Lookback)
	assert.Equal(t, "1y", c.Backtest.DefaultRange)
	assert.True(t, c.Scheduler.Enabled)
	assert.Equal(t, []string{"AAPL", "BTC-USD"}, c.Strategies.Symbols)
}

func TestLoadParsesStrategySections(t *testing.T) {
	c, err := Load(writeConfig(t, `
strategies:
  symbols: [AAPL]
  assign:
    AAPL: mean_reversion
    BTC-USD: momentum
  params:
    mean_reversion:
      buy_rsi: 30
      sell_rsi: 75
    momentum:
      macd_buy: 0.8
`))
	require.NoError(t, err)
	assert.Equal(t, "mean_reversion", c.Strategies.Assign["AAPL"])
	require.NotNil(t, c.Strategies.Params["mean_reversion"].BuyRSI)
	assert.Equal(t, 30.0, *c.Strategies.Params["mean_reversion"].BuyRSI)
	require.NotNil(t, c.Strategies.Params["momentum"].MACDBuy)
	assert.Equal(t, 0.8, *c.Strategies.Params["momentum"].MACDBuy)
	// Omitted thresholds stay unset rather than reading as zero.
	assert.Nil(t, c.Strategies.Params["momentum"].MACDSell)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsEmptySymbols(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: production
`))
	require.Error(t, err)
}

func TestValidateKafkaBrokersRequiredWhenEnabled(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
kafka:
  enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.brokers")
}

func TestValidateEMAOrdering(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
indicators:
  ema_fast: 26
  ema_slow: 12
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ema_fast")
}

func TestValidateUnknownStrategyKind(t *testing.T) {
	_, err := Load(writeConfig(t, `
strategies:
  symbols: [AAPL]
  params:
    make_money_fast: {}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy kind")
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "NVDA,TSLA")
	t.Setenv("POSTGRES_PASSWORD", "sekret")
	t.Setenv("NOTIFIER_URL", "http://notifier:9000")

	c, err := LoadWithEnv(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"NVDA", "TSLA"}, c.Strategies.Symbols)
	assert.Equal(t, "sekret", c.Postgres.Password)
	assert.Equal(t, "http://notifier:9000", c.Notifier.URL)
}

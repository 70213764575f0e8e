package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Pairs = []string{"BTC/USD", "ETH/USD"}
	cfg.Exchanges = map[string]ExchangeConfig{
		"KRAKEN": {
			Enabled:    true,
			Dialect:    "kraken",
			WsURL:      "wss://ws.kraken.example",
			GatewayURL: "https://gw.kraken.example",
		},
		"COINBASE": {
			Enabled:    true,
			Dialect:    "coinbase",
			WsURL:      "wss://ws.coinbase.example",
			GatewayURL: "https://gw.coinbase.example",
		},
	}
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "0.001", cfg.Arbitrage.MinGain)
	assert.Equal(t, 3, cfg.Arbitrage.CacheWindowSeconds)
	assert.Equal(t, 1024, cfg.Bus.OrderBookCapacity)
	assert.Equal(t, 1024, cfg.Bus.TradeCapacity)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestValidateAcceptsTwoEnabledExchanges(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
	assert.ElementsMatch(t, []string{"KRAKEN", "COINBASE"}, cfg.EnabledExchanges())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no pairs",
			mutate:  func(c *Config) { c.Pairs = nil },
			wantErr: "no pairs",
		},
		{
			name:    "malformed pair",
			mutate:  func(c *Config) { c.Pairs = []string{"BTCUSD"} },
			wantErr: "invalid pair",
		},
		{
			name:    "bad min gain",
			mutate:  func(c *Config) { c.Arbitrage.MinGain = "one percent" },
			wantErr: "min_gain",
		},
		{
			name:    "zero cache window",
			mutate:  func(c *Config) { c.Arbitrage.CacheWindowSeconds = 0 },
			wantErr: "cache_window_seconds",
		},
		{
			name:    "zero bus capacity",
			mutate:  func(c *Config) { c.Bus.TradeCapacity = 0 },
			wantErr: "bus capacities",
		},
		{
			name: "single enabled exchange",
			mutate: func(c *Config) {
				ex := c.Exchanges["COINBASE"]
				ex.Enabled = false
				c.Exchanges["COINBASE"] = ex
			},
			wantErr: "at least two",
		},
		{
			name: "unknown dialect",
			mutate: func(c *Config) {
				ex := c.Exchanges["KRAKEN"]
				ex.Dialect = "bitfinex"
				c.Exchanges["KRAKEN"] = ex
			},
			wantErr: "unknown dialect",
		},
		{
			name: "missing ws url",
			mutate: func(c *Config) {
				ex := c.Exchanges["KRAKEN"]
				ex.WsURL = ""
				c.Exchanges["KRAKEN"] = ex
			},
			wantErr: "ws_url",
		},
		{
			name: "bad taker fee",
			mutate: func(c *Config) {
				ex := c.Exchanges["KRAKEN"]
				ex.TakerFee = "26bps"
				c.Exchanges["KRAKEN"] = ex
			},
			wantErr: "taker_fee",
		},
		{
			name: "redis enabled without addr",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Addr = ""
			},
			wantErr: "redis.addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
pairs = ["BTC/USD"]
log_level = "debug"

[arbitrage]
min_gain = "0.005"

[exchanges.KRAKEN]
enabled = true
dialect = "kraken"
ws_url = "wss://ws.kraken.example"
gateway_url = "https://gw.kraken.example"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC/USD"}, cfg.Pairs)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.005", cfg.Arbitrage.MinGain)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Arbitrage.CacheWindowSeconds)
	assert.Equal(t, 1024, cfg.Bus.OrderBookCapacity)

	ex, ok := cfg.Exchanges["KRAKEN"]
	require.True(t, ok)
	assert.True(t, ex.Enabled)
	assert.Equal(t, "kraken", ex.Dialect)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
pairs = ["BTC/USD"]

[exchanges.KRAKEN]
enabled = true
dialect = "kraken"
ws_url = "wss://ws.kraken.example"
gateway_url = "https://gw.kraken.example"
api_key = "file-key"
`), 0o600))

	t.Setenv("ARBOT_LOG_LEVEL", "warn")
	t.Setenv("ARBOT_ARBITRAGE_MIN_GAIN", "0.01")
	t.Setenv("ARBOT_BUS_TRADE_CAPACITY", "256")
	t.Setenv("ARBOT_REDIS_ENABLED", "true")
	t.Setenv("ARBOT_EXCHANGE_KRAKEN_API_KEY", "env-key")
	t.Setenv("ARBOT_EXCHANGE_KRAKEN_API_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "0.01", cfg.Arbitrage.MinGain)
	assert.Equal(t, 256, cfg.Bus.TradeCapacity)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "env-key", cfg.Exchanges["KRAKEN"].APIKey)
	assert.Equal(t, "env-secret", cfg.Exchanges["KRAKEN"].APISecret)
}

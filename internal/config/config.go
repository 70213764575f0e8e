// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBOT_* environment variables.
type Config struct {
	Pairs     []string                  `toml:"pairs"`
	Exchanges map[string]ExchangeConfig `toml:"exchanges"`
	Arbitrage ArbitrageConfig           `toml:"arbitrage"`
	Bus       BusConfig                 `toml:"bus"`
	Publisher PublisherConfig           `toml:"publisher"`
	Metadata  MetadataConfig            `toml:"metadata"`
	Redis     RedisConfig               `toml:"redis"`
	LogLevel  string                    `toml:"log_level"`
}

// ExchangeConfig holds one venue's connectivity parameters. The map key in
// Config.Exchanges is the exchange identifier (e.g. "KRAKEN").
type ExchangeConfig struct {
	Enabled    bool   `toml:"enabled"`
	Dialect    string `toml:"dialect"` // feed dialect: "kraken" or "coinbase"
	WsURL      string `toml:"ws_url"`
	GatewayURL string `toml:"gateway_url"` // order-gateway REST root
	APIKey     string `toml:"api_key"`
	APISecret  string `toml:"api_secret"`
	// TakerFee, when set, seeds the fee schedule for every configured pair so
	// matching can start before the first REST refresh answers. Fraction, e.g.
	// "0.0026".
	TakerFee string `toml:"taker_fee"`
}

// ArbitrageConfig holds the matching engine parameters.
type ArbitrageConfig struct {
	// MinGain is the minimum (proceeds-cost)/cost fraction, kept as a string
	// so the configured value survives exactly into decimal arithmetic.
	MinGain            string `toml:"min_gain"`
	CacheWindowSeconds int    `toml:"cache_window_seconds"`
	Workers            int    `toml:"workers"` // 0 = match inline on the bus goroutine
}

// BusConfig holds the event channel capacities.
type BusConfig struct {
	OrderBookCapacity int `toml:"order_book_capacity"`
	TradeCapacity     int `toml:"trade_capacity"`
}

// PublisherConfig holds the trade publisher parameters.
type PublisherConfig struct {
	Workers int `toml:"workers"`
}

// MetadataConfig holds the metadata refresher parameters.
type MetadataConfig struct {
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`
	MirrorTTLSeconds       int `toml:"mirror_ttl_seconds"`
}

// RedisConfig holds the optional Redis connection parameters.
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// Defaults returns the built-in configuration a TOML file is merged over.
func Defaults() Config {
	return Config{
		Exchanges: make(map[string]ExchangeConfig),
		Arbitrage: ArbitrageConfig{
			MinGain:            "0.001",
			CacheWindowSeconds: 3,
			Workers:            4,
		},
		Bus: BusConfig{
			OrderBookCapacity: 1024,
			TradeCapacity:     1024,
		},
		Publisher: PublisherConfig{
			Workers: 4,
		},
		Metadata: MetadataConfig{
			RefreshIntervalSeconds: 30,
			MirrorTTLSeconds:       3600,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 4,
		},
		LogLevel: "info",
	}
}

// EnabledExchanges returns the identifiers of enabled exchanges, order
// unspecified.
func (c *Config) EnabledExchanges() []string {
	out := make([]string, 0, len(c.Exchanges))
	for name, ex := range c.Exchanges {
		if ex.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// Validate checks the configuration for internal consistency. It does not
// touch the network.
func (c *Config) Validate() error {
	if len(c.Pairs) == 0 {
		return fmt.Errorf("config: no pairs configured")
	}
	for _, p := range c.Pairs {
		base, counter, ok := strings.Cut(p, "/")
		if !ok || base == "" || counter == "" {
			return fmt.Errorf("config: invalid pair %q (want BASE/COUNTER)", p)
		}
	}

	if _, err := decimal.NewFromString(c.Arbitrage.MinGain); err != nil {
		return fmt.Errorf("config: invalid arbitrage.min_gain %q: %w", c.Arbitrage.MinGain, err)
	}
	if c.Arbitrage.CacheWindowSeconds <= 0 {
		return fmt.Errorf("config: arbitrage.cache_window_seconds must be positive")
	}
	if c.Arbitrage.Workers < 0 {
		return fmt.Errorf("config: arbitrage.workers must not be negative")
	}
	if c.Bus.OrderBookCapacity <= 0 || c.Bus.TradeCapacity <= 0 {
		return fmt.Errorf("config: bus capacities must be positive")
	}
	if c.Publisher.Workers <= 0 {
		return fmt.Errorf("config: publisher.workers must be positive")
	}

	enabled := 0
	for name, ex := range c.Exchanges {
		if !ex.Enabled {
			continue
		}
		enabled++
		switch ex.Dialect {
		case "kraken", "coinbase":
		default:
			return fmt.Errorf("config: exchange %s: unknown dialect %q", name, ex.Dialect)
		}
		if ex.WsURL == "" {
			return fmt.Errorf("config: exchange %s: ws_url required", name)
		}
		if ex.GatewayURL == "" {
			return fmt.Errorf("config: exchange %s: gateway_url required", name)
		}
		if ex.TakerFee != "" {
			if _, err := decimal.NewFromString(ex.TakerFee); err != nil {
				return fmt.Errorf("config: exchange %s: invalid taker_fee %q: %w", name, ex.TakerFee, err)
			}
		}
	}
	if enabled < 2 {
		return fmt.Errorf("config: at least two enabled exchanges required for spatial arbitrage, have %d", enabled)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr required when redis is enabled")
	}
	return nil
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file. Per-exchange credentials use the exchange identifier in the variable
// name, e.g. ARBOT_EXCHANGE_KRAKEN_API_KEY.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "ARBOT_LOG_LEVEL")

	setStr(&cfg.Arbitrage.MinGain, "ARBOT_ARBITRAGE_MIN_GAIN")
	setInt(&cfg.Arbitrage.CacheWindowSeconds, "ARBOT_ARBITRAGE_CACHE_WINDOW_SECONDS")
	setInt(&cfg.Arbitrage.Workers, "ARBOT_ARBITRAGE_WORKERS")

	setInt(&cfg.Bus.OrderBookCapacity, "ARBOT_BUS_ORDER_BOOK_CAPACITY")
	setInt(&cfg.Bus.TradeCapacity, "ARBOT_BUS_TRADE_CAPACITY")

	setInt(&cfg.Publisher.Workers, "ARBOT_PUBLISHER_WORKERS")

	setInt(&cfg.Metadata.RefreshIntervalSeconds, "ARBOT_METADATA_REFRESH_INTERVAL_SECONDS")

	setBool(&cfg.Redis.Enabled, "ARBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBOT_REDIS_DB")

	for name, ex := range cfg.Exchanges {
		prefix := "ARBOT_EXCHANGE_" + strings.ToUpper(name) + "_"
		setStr(&ex.APIKey, prefix+"API_KEY")
		setStr(&ex.APISecret, prefix+"API_SECRET")
		setStr(&ex.WsURL, prefix+"WS_URL")
		setStr(&ex.GatewayURL, prefix+"GATEWAY_URL")
		cfg.Exchanges[name] = ex
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

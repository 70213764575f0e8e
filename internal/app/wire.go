package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quanthawk/arbot/internal/bookkeeper"
	"github.com/quanthawk/arbot/internal/bus"
	"github.com/quanthawk/arbot/internal/cache"
	cacheredis "github.com/quanthawk/arbot/internal/cache/redis"
	"github.com/quanthawk/arbot/internal/config"
	"github.com/quanthawk/arbot/internal/domain"
	"github.com/quanthawk/arbot/internal/engine"
	"github.com/quanthawk/arbot/internal/exchange"
	"github.com/quanthawk/arbot/internal/feed"
	"github.com/quanthawk/arbot/internal/metadata"
	"github.com/quanthawk/arbot/internal/publisher"
)

// Dependencies bundles everything App.Run needs to operate. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Pairs []domain.Pair

	MetadataStore *metadata.Store
	Refresher     *metadata.Refresher
	Registry      *exchange.Registry

	OrderBookBus *bus.Bus[domain.OrderBookSnapshot]
	TradeBus     *bus.Bus[domain.TradePair]
	Engine       *engine.Engine
	Publisher    *publisher.Publisher
	Bookkeeper   *bookkeeper.Bookkeeper
	Feeds        []*feed.Feed
}

// Wire constructs all concrete dependencies from the configuration and
// returns them together with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pairs := make([]domain.Pair, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		pair, err := domain.ParsePair(p)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		pairs = append(pairs, pair)
	}

	minGain, err := decimal.NewFromString(cfg.Arbitrage.MinGain)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: parse min_gain: %w", err)
	}

	deps := &Dependencies{Pairs: pairs}

	// --- Redis (optional, best-effort caches only) ---
	var bookMirror *cacheredis.BookMirror
	var metaMirror *metadata.Mirror
	if cfg.Redis.Enabled {
		redisClient, err := cacheredis.New(ctx, cacheredis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		bookMirror = cacheredis.NewBookMirror(redisClient)
		metaMirror = metadata.NewMirror(redisClient, time.Duration(cfg.Metadata.MirrorTTLSeconds)*time.Second)
	}

	// --- Metadata ---
	deps.MetadataStore = metadata.NewStore()
	for name, excfg := range cfg.Exchanges {
		if !excfg.Enabled || excfg.TakerFee == "" {
			continue
		}
		taker, err := decimal.NewFromString(excfg.TakerFee)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: exchange %s: parse taker_fee: %w", name, err)
		}
		for _, pair := range pairs {
			deps.MetadataStore.UpsertFees(domain.Exchange(name), pair, domain.Fees{Maker: taker, Taker: taker})
		}
	}

	// --- Exchange clients ---
	clients := make([]domain.ExchangeClient, 0, len(cfg.Exchanges))
	for name, excfg := range cfg.Exchanges {
		if !excfg.Enabled {
			continue
		}
		clients = append(clients, exchange.NewRESTClient(exchange.RESTClientConfig{
			Exchange:  domain.Exchange(name),
			BaseURL:   excfg.GatewayURL,
			APIKey:    excfg.APIKey,
			APISecret: excfg.APISecret,
		}))
	}
	deps.Registry = exchange.NewRegistry(clients...)

	deps.Refresher = metadata.NewRefresher(
		deps.MetadataStore,
		clients,
		pairs,
		time.Duration(cfg.Metadata.RefreshIntervalSeconds)*time.Second,
		metaMirror,
		logger,
	)

	// --- Pipeline: publisher <- trade bus <- engine <- order book bus ---
	deps.Publisher = publisher.New(deps.MetadataStore, deps.Registry, cfg.Publisher.Workers, logger)
	deps.TradeBus = bus.New("trades", cfg.Bus.TradeCapacity, logger, deps.Publisher)

	oppCache := cache.NewOpportunityCache(time.Duration(cfg.Arbitrage.CacheWindowSeconds) * time.Second)
	deps.Engine = engine.New(engine.Config{
		MinGain: minGain,
		Workers: cfg.Arbitrage.Workers,
	}, deps.MetadataStore, oppCache, deps.TradeBus, logger)

	deps.Bookkeeper = bookkeeper.New(bookMirror, logger)
	deps.OrderBookBus = bus.New("orderbooks", cfg.Bus.OrderBookCapacity, logger, deps.Engine, deps.Bookkeeper)

	// --- Market-data feeds ---
	for name, excfg := range cfg.Exchanges {
		if !excfg.Enabled {
			continue
		}
		var dialect feed.Dialect
		switch excfg.Dialect {
		case "kraken":
			dialect = feed.NewKrakenDialect(0)
		case "coinbase":
			dialect = feed.NewCoinbaseDialect()
		default:
			cleanup()
			return nil, nil, fmt.Errorf("wire: exchange %s: unknown dialect %q", name, excfg.Dialect)
		}
		deps.Feeds = append(deps.Feeds, feed.NewFeed(excfg.WsURL, pairs, dialect, deps.OrderBookBus, logger))
	}

	return deps, cleanup, nil
}

package metadata

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quanthawk/arbot/internal/domain"
)

// Refresher periodically pulls fees, pair constraints, and balances from every
// enabled exchange client into the Store. One venue failing to answer only
// delays that venue's data; the others refresh normally.
type Refresher struct {
	store    *Store
	clients  []domain.ExchangeClient
	pairs    []domain.Pair
	interval time.Duration
	mirror   *Mirror // optional warm-start mirror
	logger   *slog.Logger
}

// NewRefresher creates a Refresher for the given clients and pairs. mirror
// may be nil.
func NewRefresher(store *Store, clients []domain.ExchangeClient, pairs []domain.Pair, interval time.Duration, mirror *Mirror, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Refresher{
		store:    store,
		clients:  clients,
		pairs:    pairs,
		interval: interval,
		mirror:   mirror,
		logger:   logger.With(slog.String("component", "metadata_refresher")),
	}
}

// Run refreshes once immediately, then on every tick until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("metadata refresher started",
		slog.Duration("interval", r.interval),
		slog.Int("exchanges", len(r.clients)),
	)
	defer r.logger.Info("metadata refresher stopped")

	if r.mirror != nil {
		if err := r.mirror.Restore(ctx, r.store); err != nil {
			r.logger.Warn("warm-start restore failed", slog.String("error", err.Error()))
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.refreshAll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	for _, client := range r.clients {
		r.refreshExchange(ctx, client)
		if ctx.Err() != nil {
			return
		}
	}
	if r.mirror != nil {
		if err := r.mirror.Save(ctx, r.store); err != nil {
			r.logger.Warn("metadata mirror save failed", slog.String("error", err.Error()))
		}
	}
}

func (r *Refresher) refreshExchange(ctx context.Context, client domain.ExchangeClient) {
	exchange := client.Exchange()
	log := r.logger.With(slog.String("exchange", string(exchange)))

	for _, pair := range r.pairs {
		fees, err := client.FetchFees(ctx, pair)
		if err != nil {
			r.logSkip(log, "fetch fees failed", pair, err)
		} else {
			r.store.UpsertFees(exchange, pair, fees)
		}

		meta, err := client.FetchPairMetadata(ctx, pair)
		if err != nil {
			r.logSkip(log, "fetch pair metadata failed", pair, err)
		} else {
			r.store.UpsertPairMetadata(exchange, pair, meta)
		}
	}

	balances, err := client.FetchBalances(ctx)
	if err != nil {
		log.Warn("fetch balances failed", slog.String("error", err.Error()))
		return
	}
	for _, b := range balances {
		r.store.UpsertBalance(exchange, b.Currency, b.Available)
	}
}

func (r *Refresher) logSkip(log *slog.Logger, msg string, pair domain.Pair, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.Warn(msg, slog.String("pair", pair.String()), slog.String("error", err.Error()))
}

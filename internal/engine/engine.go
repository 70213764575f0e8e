// Package engine maintains the aggregated cross-exchange view of every
// configured pair and turns order book updates into fee-justified,
// de-duplicated arbitrage trade pairs.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quanthawk/arbot/internal/bus"
	"github.com/quanthawk/arbot/internal/cache"
	"github.com/quanthawk/arbot/internal/domain"
)

// TradeSink receives matched trade pairs. Implemented by the trade bus.
type TradeSink interface {
	Publish(pair domain.TradePair) error
}

// Config holds the engine's tunables.
type Config struct {
	// MinGain is the minimum acceptable (proceeds-cost)/cost fraction.
	MinGain decimal.Decimal
	// Workers is the size of the matching worker pool. Zero runs matching
	// inline on the bus goroutine.
	Workers int
}

// Engine is the OrderBookBus handler. It owns the AggregatedBook exclusively:
// all mutation happens on the bus goroutine, and matching workers operate on
// copied views so a pass never observes a partially updated book.
type Engine struct {
	cfg    Config
	book   *AggregatedBook
	meta   domain.MetadataReader
	cache  *cache.OpportunityCache
	trades TradeSink
	sem    chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
	logger *slog.Logger
}

// New creates an Engine publishing matched pairs to trades.
func New(cfg Config, meta domain.MetadataReader, oppCache *cache.OpportunityCache, trades TradeSink, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		book:   NewAggregatedBook(),
		meta:   meta,
		cache:  oppCache,
		trades: trades,
		now:    time.Now,
		logger: logger.With(slog.String("component", "arbitrage_engine")),
	}
	if cfg.Workers > 0 {
		e.sem = make(chan struct{}, cfg.Workers)
	}
	return e
}

// SetNow replaces the clock used to stamp discovered trades. Test hook.
func (e *Engine) SetNow(now func() time.Time) { e.now = now }

// Name implements bus.Handler.
func (e *Engine) Name() string { return "arbitrage_engine" }

// OnEvent ingests one order book snapshot: replace the prior snapshot for the
// (exchange, pair), rebuild the pair's views, and, once at least two
// exchanges are live, run a matching pass over copies of the views.
func (e *Engine) OnEvent(ctx context.Context, ev bus.Event[domain.OrderBookSnapshot]) {
	snap := ev.Payload
	if len(snap.Asks) == 0 || len(snap.Bids) == 0 {
		// Adapters are required to filter empty books before publishing.
		e.logger.Warn("dropping one-sided snapshot",
			slog.String("exchange", string(snap.Exchange)),
			slog.String("pair", snap.Pair.String()),
		)
		return
	}

	e.book.Upsert(snap)
	if e.book.Exchanges(snap.Pair) < 2 {
		return
	}

	asks, bids := e.book.Views(snap.Pair)
	if e.sem == nil {
		e.matchPass(ctx, snap.Pair, asks, bids)
		return
	}

	e.sem <- struct{}{}
	e.wg.Add(1)
	go func() {
		defer func() {
			<-e.sem
			e.wg.Done()
		}()
		e.matchPass(ctx, snap.Pair, asks, bids)
	}()
}

// Wait blocks until all in-flight matching workers finish. Called during
// shutdown after the order book bus has drained.
func (e *Engine) Wait() {
	e.wg.Wait()
}

var _ bus.Handler[domain.OrderBookSnapshot] = (*Engine)(nil)

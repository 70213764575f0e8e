// Package publisher consumes matched trade pairs, sizes them against live
// balances, and dispatches both legs to their exchanges.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/quanthawk/arbot/internal/bus"
	"github.com/quanthawk/arbot/internal/domain"
	"github.com/quanthawk/arbot/internal/exchange"
)

// Publisher is the TradeBus handler. For each (buy, sell) pair it computes
// the maximum balance- and precision-constrained actionable amount, rewrites
// both leg amounts once, and submits the legs concurrently on a bounded
// worker pool.
//
// Dispatch is deliberately non-transactional: a failed leg is logged and
// abandoned, never rolled back against the other. The resulting one-legged
// exposure is an accepted business risk of this design.
type Publisher struct {
	meta     domain.MetadataReader
	registry *exchange.Registry
	sem      chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// New creates a Publisher with a submission pool of the given size.
func New(meta domain.MetadataReader, registry *exchange.Registry, workers int, logger *slog.Logger) *Publisher {
	if workers <= 0 {
		workers = 2
	}
	return &Publisher{
		meta:     meta,
		registry: registry,
		sem:      make(chan struct{}, workers),
		logger:   logger.With(slog.String("component", "trade_publisher")),
	}
}

// Name implements bus.Handler.
func (p *Publisher) Name() string { return "trade_publisher" }

// OnEvent processes one matched pair.
func (p *Publisher) OnEvent(ctx context.Context, ev bus.Event[domain.TradePair]) {
	buy, sell := ev.Payload.Buy, ev.Payload.Sell

	amount, err := p.MaxActionableAmount(buy, sell)
	if err != nil {
		p.logger.Warn("cannot size opportunity, abandoning",
			slog.String("pair", buy.Pair.String()),
			slog.String("buy_exchange", string(buy.Exchange)),
			slog.String("sell_exchange", string(sell.Exchange)),
			slog.String("error", err.Error()),
		)
		return
	}
	if !amount.IsPositive() {
		p.logger.Info("opportunity not actionable at current balances, abandoning",
			slog.String("pair", buy.Pair.String()),
			slog.String("buy_exchange", string(buy.Exchange)),
			slog.String("sell_exchange", string(sell.Exchange)),
		)
		return
	}

	// The single permitted amount rewrite before dispatch.
	buy.Amount = amount
	sell.Amount = amount

	p.submit(ctx, buy)
	p.submit(ctx, sell)
}

// MaxActionableAmount returns the largest base amount both legs can execute
// given available balances, exchange price scales, and minimum order
// amounts. Zero means the opportunity must be abandoned.
func (p *Publisher) MaxActionableAmount(buy, sell domain.Trade) (decimal.Decimal, error) {
	counterBalance, err := p.meta.Balance(buy.Exchange, buy.RequiredCurrency())
	if err != nil {
		return decimal.Zero, err
	}
	baseBalance, err := p.meta.Balance(sell.Exchange, sell.RequiredCurrency())
	if err != nil {
		return decimal.Zero, err
	}
	buyScale, err := p.meta.PriceScale(buy.Exchange, buy.Pair)
	if err != nil {
		return decimal.Zero, err
	}
	sellScale, err := p.meta.PriceScale(sell.Exchange, sell.Pair)
	if err != nil {
		return decimal.Zero, err
	}
	buyMin, err := p.meta.MinOrderAmount(buy.Exchange, buy.Pair)
	if err != nil {
		return decimal.Zero, err
	}
	sellMin, err := p.meta.MinOrderAmount(sell.Exchange, sell.Pair)
	if err != nil {
		return decimal.Zero, err
	}

	// Amounts the exchanges accept are bounded by the coarser scale.
	coarserScale := buyScale
	if sellScale < coarserScale {
		coarserScale = sellScale
	}

	// Counter cost to buy the full proposed amount, fee inclusive.
	maxBase := buy.Amount // buy.Amount and sell.Amount are equal by construction
	requiredCounter := buy.Price.Mul(maxBase)
	requiredCounter = requiredCounter.Add(requiredCounter.Mul(buy.FeeRate))

	if counterBalance.GreaterThanOrEqual(requiredCounter) && baseBalance.GreaterThanOrEqual(maxBase) {
		return maxBase.RoundDown(coarserScale), nil
	}

	// Largest base amount whose fee-inclusive cost fits the counter balance.
	one := decimal.NewFromInt(1)
	maxBuyable := counterBalance.
		Div(buy.Price.Mul(one.Add(buy.FeeRate))).
		RoundDown(buyScale)
	maxSellable := decimal.Min(baseBalance, maxBase).RoundDown(sellScale)

	p.logger.Info("balances insufficient for full amount, clamping",
		slog.String("pair", buy.Pair.String()),
		slog.String("proposed", maxBase.String()),
		slog.String("max_buyable", maxBuyable.String()),
		slog.String("max_sellable", maxSellable.String()),
	)

	if maxBuyable.LessThan(buyMin) {
		p.logger.Info("max buyable below exchange minimum, abandoning",
			slog.String("exchange", string(buy.Exchange)),
			slog.String("max_buyable", maxBuyable.String()),
			slog.String("minimum", buyMin.String()),
		)
		return decimal.Zero, nil
	}
	if maxSellable.LessThan(sellMin) {
		p.logger.Info("max sellable below exchange minimum, abandoning",
			slog.String("exchange", string(sell.Exchange)),
			slog.String("max_sellable", maxSellable.String()),
			slog.String("minimum", sellMin.String()),
		)
		return decimal.Zero, nil
	}

	return decimal.Min(maxBuyable, maxSellable), nil
}

// submit dispatches one leg on the worker pool, fire-and-forget. Failures are
// logged with full trade context and never retried.
func (p *Publisher) submit(ctx context.Context, trade domain.Trade) {
	client, ok := p.registry.Client(trade.Exchange)
	if !ok {
		p.logger.Error("no client registered for exchange, dropping leg",
			slog.String("exchange", string(trade.Exchange)),
			slog.String("trade_id", trade.ID),
		)
		return
	}

	p.sem <- struct{}{}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()
		orderID, err := client.SubmitOrder(ctx, trade)
		if err != nil {
			p.logger.Error("leg submission failed",
				slog.String("trade_id", trade.ID),
				slog.String("exchange", string(trade.Exchange)),
				slog.String("pair", trade.Pair.String()),
				slog.String("side", string(trade.Side)),
				slog.String("price", trade.Price.String()),
				slog.String("amount", trade.Amount.String()),
				slog.String("error", err.Error()),
			)
			return
		}
		p.logger.Info("leg submitted",
			slog.String("trade_id", trade.ID),
			slog.String("exchange", string(trade.Exchange)),
			slog.String("pair", trade.Pair.String()),
			slog.String("side", string(trade.Side)),
			slog.String("order_id", orderID),
		)
	}()
}

// Wait blocks until all in-flight submissions complete. Called during
// shutdown after the trade bus has drained.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

var _ bus.Handler[domain.TradePair] = (*Publisher)(nil)

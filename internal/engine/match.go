package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quanthawk/arbot/internal/domain"
)

// gainScale is the fractional precision for the gain-ratio comparison; the
// ratio is rounded half-to-even before being tested against MinGain.
const gainScale = 5

type pairingResult int

const (
	// pairingEmitted: at least one trade pair came out of the pairing.
	pairingEmitted pairingResult = iota
	// pairingUnprofitable: the pairing's best levels already fail the gain
	// test; every pairing deeper in the same direction is worse.
	pairingUnprofitable
	// pairingSkipped: no judgement possible (missing metadata, sub-minimum
	// volume, duplicate in flight).
	pairingSkipped
)

// matchPass walks the Cartesian pairings of (ask-side exchange, bid-side
// exchange) in order of decreasing theoretical spread. Views are copies; the
// pass never touches shared state besides the opportunity cache and the
// trade sink.
func (e *Engine) matchPass(ctx context.Context, pair domain.Pair, asksAsc, bidsDesc []domain.OrderBookSnapshot) {
	for i := range asksAsc {
		for j := range bidsDesc {
			if asksAsc[i].Exchange == bidsDesc[j].Exchange {
				continue
			}
			res := e.matchPairing(ctx, pair, asksAsc[i], bidsDesc[j])
			if res != pairingUnprofitable {
				continue
			}
			if j == 0 {
				// Cheapest remaining ask cannot beat the best bid of all;
				// every later ask is more expensive.
				return
			}
			// Later bids in this row are lower still.
			break
		}
	}
}

// matchPairing greedily walks the full depth ladders of one (ask exchange,
// bid exchange) pairing, emitting a trade pair per profitable level. Any
// panic inside a single pairing is logged and contained so the pass continues
// with the next candidate.
func (e *Engine) matchPairing(ctx context.Context, pair domain.Pair, askBook, bidBook domain.OrderBookSnapshot) (res pairingResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("matching pairing panicked, skipping",
				slog.String("pair", pair.String()),
				slog.String("ask_exchange", string(askBook.Exchange)),
				slog.String("bid_exchange", string(bidBook.Exchange)),
				slog.Any("panic", r),
			)
			res = pairingSkipped
		}
	}()

	askFees, err := e.meta.Fees(askBook.Exchange, pair)
	if err != nil {
		return e.skip(pair, askBook.Exchange, err)
	}
	bidFees, err := e.meta.Fees(bidBook.Exchange, pair)
	if err != nil {
		return e.skip(pair, bidBook.Exchange, err)
	}
	askMin, err := e.meta.MinOrderAmount(askBook.Exchange, pair)
	if err != nil {
		return e.skip(pair, askBook.Exchange, err)
	}
	bidMin, err := e.meta.MinOrderAmount(bidBook.Exchange, pair)
	if err != nil {
		return e.skip(pair, bidBook.Exchange, err)
	}
	askScale, err := e.meta.PriceScale(askBook.Exchange, pair)
	if err != nil {
		return e.skip(pair, askBook.Exchange, err)
	}
	bidScale, err := e.meta.PriceScale(bidBook.Exchange, pair)
	if err != nil {
		return e.skip(pair, bidBook.Exchange, err)
	}

	// Order amounts are rounded down to the finer of the two scales.
	amountScale := askScale
	if bidScale > amountScale {
		amountScale = bidScale
	}

	var (
		i, j     int
		remAsk   = askBook.Asks[0].Volume
		remBid   = bidBook.Bids[0].Volume
		emitted  = 0
		topLevel = true
	)

	for i < len(askBook.Asks) && j < len(bidBook.Bids) {
		askLvl := askBook.Asks[i]
		bidLvl := bidBook.Bids[j]

		effVol := decimal.Min(remAsk, remBid)
		if effVol.LessThan(askMin) || effVol.LessThan(bidMin) {
			if emitted > 0 {
				return pairingEmitted
			}
			return pairingSkipped
		}

		cost := askLvl.Price.Mul(effVol)
		cost = cost.Add(cost.Mul(askFees.Taker))
		proceeds := bidLvl.Price.Mul(effVol)
		proceeds = proceeds.Sub(proceeds.Mul(bidFees.Taker))

		if !proceeds.GreaterThan(cost) ||
			proceeds.Sub(cost).Div(cost).RoundBank(gainScale).LessThan(e.cfg.MinGain) {
			// Asks only rise and bids only fall deeper in the ladders, so the
			// rest of this pairing cannot recover.
			if emitted > 0 {
				return pairingEmitted
			}
			if topLevel {
				return pairingUnprofitable
			}
			return pairingSkipped
		}

		if amount := effVol.RoundDown(amountScale); amount.IsPositive() {
			e.emit(pair, askBook.Exchange, bidBook.Exchange, askLvl.Price, bidLvl.Price, amount, askFees.Taker, bidFees.Taker, cost, proceeds)
			emitted++
		}

		topLevel = false
		remAsk = remAsk.Sub(effVol)
		remBid = remBid.Sub(effVol)
		if remAsk.IsZero() {
			if i++; i < len(askBook.Asks) {
				remAsk = askBook.Asks[i].Volume
			}
		}
		if remBid.IsZero() {
			if j++; j < len(bidBook.Bids) {
				remBid = bidBook.Bids[j].Volume
			}
		}
	}

	if emitted > 0 {
		return pairingEmitted
	}
	return pairingSkipped
}

// emit builds the two legs, runs them through the opportunity cache, and
// publishes the pair to the trade bus unless either leg is still in flight.
func (e *Engine) emit(pair domain.Pair, askExchange, bidExchange domain.Exchange, askPrice, bidPrice, amount, askFee, bidFee, cost, proceeds decimal.Decimal) {
	now := e.now()
	buy := domain.Trade{
		ID:           uuid.NewString(),
		Exchange:     askExchange,
		Pair:         pair,
		Side:         domain.SideBid,
		Kind:         domain.OrderKindLimit,
		Price:        askPrice,
		Amount:       amount,
		FeeRate:      askFee,
		DiscoveredAt: now,
	}
	sell := domain.Trade{
		ID:           uuid.NewString(),
		Exchange:     bidExchange,
		Pair:         pair,
		Side:         domain.SideAsk,
		Kind:         domain.OrderKindLimit,
		Price:        bidPrice,
		Amount:       amount,
		FeeRate:      bidFee,
		DiscoveredAt: now,
	}

	if !e.cache.TryInsertPair(buy, sell) {
		e.logger.Debug("opportunity still in flight, suppressed",
			slog.String("pair", pair.String()),
			slog.String("buy_exchange", string(askExchange)),
			slog.String("sell_exchange", string(bidExchange)),
		)
		return
	}

	e.logger.Info("arbitrage opportunity detected",
		slog.String("pair", pair.String()),
		slog.String("buy_exchange", string(askExchange)),
		slog.String("buy_price", askPrice.String()),
		slog.String("sell_exchange", string(bidExchange)),
		slog.String("sell_price", bidPrice.String()),
		slog.String("amount", amount.String()),
		slog.String("cost", cost.String()),
		slog.String("proceeds", proceeds.String()),
	)

	if err := e.trades.Publish(domain.TradePair{Buy: buy, Sell: sell}); err != nil {
		e.logger.Error("publish trade pair failed",
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) skip(pair domain.Pair, exchange domain.Exchange, err error) pairingResult {
	if errors.Is(err, domain.ErrMetadataUnavailable) {
		e.logger.Warn("metadata unavailable, skipping exchange for this pass",
			slog.String("exchange", string(exchange)),
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
	} else {
		e.logger.Warn("metadata read failed, skipping exchange for this pass",
			slog.String("exchange", string(exchange)),
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
	}
	return pairingSkipped
}

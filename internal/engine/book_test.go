package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanthawk/arbot/internal/domain"
	"github.com/quanthawk/arbot/internal/engine"
)

func topSnap(exchange domain.Exchange, ask, bid string) domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Exchange: exchange,
		Pair:     btcusd,
		Asks: []domain.PriceLevel{{
			Price:  decimal.RequireFromString(ask),
			Volume: decimal.NewFromInt(1),
		}},
		Bids: []domain.PriceLevel{{
			Price:  decimal.RequireFromString(bid),
			Volume: decimal.NewFromInt(1),
		}},
		Timestamp: time.Now(),
	}
}

func TestAggregatedBookViewsSorted(t *testing.T) {
	b := engine.NewAggregatedBook()
	b.Upsert(topSnap(domain.ExchangeKraken, "101", "100"))
	b.Upsert(topSnap(domain.ExchangeCoinbase, "99", "98"))
	b.Upsert(topSnap(domain.ExchangeGemini, "100", "99.5"))

	require.Equal(t, 3, b.Exchanges(btcusd))

	asks, bids := b.Views(btcusd)
	require.Len(t, asks, 3)
	require.Len(t, bids, 3)

	assert.Equal(t, domain.ExchangeCoinbase, asks[0].Exchange)
	assert.Equal(t, domain.ExchangeGemini, asks[1].Exchange)
	assert.Equal(t, domain.ExchangeKraken, asks[2].Exchange)

	assert.Equal(t, domain.ExchangeKraken, bids[0].Exchange)
	assert.Equal(t, domain.ExchangeGemini, bids[1].Exchange)
	assert.Equal(t, domain.ExchangeCoinbase, bids[2].Exchange)
}

func TestAggregatedBookLastWriteWins(t *testing.T) {
	b := engine.NewAggregatedBook()
	b.Upsert(topSnap(domain.ExchangeKraken, "101", "100"))
	b.Upsert(topSnap(domain.ExchangeCoinbase, "99", "98"))

	// Kraken's replacement book undercuts Coinbase; the views must re-sort and
	// the exchange count must not grow.
	b.Upsert(topSnap(domain.ExchangeKraken, "98.5", "97"))
	assert.Equal(t, 2, b.Exchanges(btcusd))

	asks, _ := b.Views(btcusd)
	assert.Equal(t, domain.ExchangeKraken, asks[0].Exchange)
	assert.Equal(t, "98.5", asks[0].Asks[0].Price.String())

	snap, ok := b.Snapshot(btcusd, domain.ExchangeKraken)
	require.True(t, ok)
	assert.Equal(t, "98.5", snap.Asks[0].Price.String())
}

func TestAggregatedBookViewsAreCopies(t *testing.T) {
	b := engine.NewAggregatedBook()
	b.Upsert(topSnap(domain.ExchangeKraken, "101", "100"))
	b.Upsert(topSnap(domain.ExchangeCoinbase, "99", "98"))

	asks, _ := b.Views(btcusd)
	asks[0] = topSnap(domain.ExchangeGemini, "1", "0.5")

	again, _ := b.Views(btcusd)
	assert.Equal(t, domain.ExchangeCoinbase, again[0].Exchange, "caller mutation must not leak into the book")
}

func TestAggregatedBookTieBreaksByExchange(t *testing.T) {
	b := engine.NewAggregatedBook()
	b.Upsert(topSnap(domain.ExchangeKraken, "100", "99"))
	b.Upsert(topSnap(domain.ExchangeCoinbase, "100", "99"))

	asks, bids := b.Views(btcusd)
	assert.Equal(t, domain.ExchangeCoinbase, asks[0].Exchange)
	assert.Equal(t, domain.ExchangeCoinbase, bids[0].Exchange)
}

package cache_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanthawk/arbot/internal/cache"
	"github.com/quanthawk/arbot/internal/domain"
)

var testPair = domain.Pair{Base: "BTC", Counter: "USD"}

func makeTrade(exchange domain.Exchange, side domain.Side, price string, at time.Time) domain.Trade {
	return domain.Trade{
		ID:           "id-" + price,
		Exchange:     exchange,
		Pair:         testPair,
		Side:         side,
		Kind:         domain.OrderKindLimit,
		Price:        decimal.RequireFromString(price),
		Amount:       decimal.NewFromInt(1),
		DiscoveredAt: at,
	}
}

func TestOpportunityCacheDedup(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := base
	c := cache.NewOpportunityCache(3 * time.Second)
	c.SetNow(func() time.Time { return clock })

	trade := makeTrade(domain.ExchangeKraken, domain.SideBid, "100", base)

	require.True(t, c.Insert(trade))
	assert.True(t, c.Contains(trade))
	assert.False(t, c.Insert(trade), "duplicate inside the window must be rejected")

	// Same fingerprint but a different ID is still the same opportunity.
	dup := trade
	dup.ID = "other-id"
	assert.True(t, c.Contains(dup))

	// A different price is a different opportunity.
	other := makeTrade(domain.ExchangeKraken, domain.SideBid, "101", base)
	assert.False(t, c.Contains(other))
	assert.True(t, c.Insert(other))
}

func TestOpportunityCacheExpiry(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := base
	c := cache.NewOpportunityCache(3 * time.Second)
	c.SetNow(func() time.Time { return clock })

	trade := makeTrade(domain.ExchangeKraken, domain.SideBid, "100", base)
	require.True(t, c.Insert(trade))

	// Exactly at the window boundary the entry is still live.
	clock = base.Add(3 * time.Second)
	assert.True(t, c.Contains(trade))

	// Past the window it expires and the fingerprint is insertable again.
	clock = base.Add(3*time.Second + time.Millisecond)
	assert.False(t, c.Contains(trade))

	trade.DiscoveredAt = clock
	assert.True(t, c.Insert(trade))
}

func TestOpportunityCacheEvictsFromFrontOnly(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := base
	c := cache.NewOpportunityCache(3 * time.Second)
	c.SetNow(func() time.Time { return clock })

	old := makeTrade(domain.ExchangeKraken, domain.SideBid, "100", base)
	require.True(t, c.Insert(old))

	clock = base.Add(2 * time.Second)
	fresh := makeTrade(domain.ExchangeKraken, domain.SideBid, "101", clock)
	require.True(t, c.Insert(fresh))
	assert.Equal(t, 2, c.Len())

	// Only the older entry crosses the window.
	clock = base.Add(4 * time.Second)
	assert.False(t, c.Contains(old))
	assert.True(t, c.Contains(fresh))
	assert.Equal(t, 1, c.Len())
}

func TestOpportunityCacheTryInsertPair(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := cache.NewOpportunityCache(3 * time.Second)
	c.SetNow(func() time.Time { return base })

	buy := makeTrade(domain.ExchangeKraken, domain.SideBid, "100", base)
	sell := makeTrade(domain.ExchangeCoinbase, domain.SideAsk, "102", base)

	require.True(t, c.TryInsertPair(buy, sell))
	assert.Equal(t, 2, c.Len())

	// Either leg still in flight blocks the whole pair, and the miss must not
	// insert the other leg.
	otherSell := makeTrade(domain.ExchangeGemini, domain.SideAsk, "103", base)
	assert.False(t, c.TryInsertPair(buy, otherSell))
	assert.False(t, c.Contains(otherSell))

	otherBuy := makeTrade(domain.ExchangeGemini, domain.SideBid, "99", base)
	assert.False(t, c.TryInsertPair(otherBuy, sell))
	assert.False(t, c.Contains(otherBuy))

	assert.True(t, c.TryInsertPair(otherBuy, otherSell))
}

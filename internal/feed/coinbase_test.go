package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanthawk/arbot/internal/domain"
)

func TestCoinbaseSubscribeMessage(t *testing.T) {
	d := NewCoinbaseDialect()
	msgs, err := d.SubscribeMessages([]domain.Pair{{Base: "BTC", Counter: "USD"}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var sub struct {
		Type       string   `json:"type"`
		ProductIDs []string `json:"product_ids"`
		Channels   []string `json:"channels"`
	}
	require.NoError(t, json.Unmarshal(msgs[0], &sub))
	assert.Equal(t, "subscribe", sub.Type)
	assert.Equal(t, []string{"BTC-USD"}, sub.ProductIDs)
	assert.Equal(t, []string{"level2"}, sub.Channels)
}

func TestCoinbaseSnapshotThenUpdate(t *testing.T) {
	d := NewCoinbaseDialect()

	snap, err := d.Handle([]byte(`{
		"type": "snapshot",
		"product_id": "BTC-USD",
		"asks": [["100.5", "1"], ["101", "2"]],
		"bids": [["100", "3"]]
	}`))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, domain.ExchangeCoinbase, snap.Exchange)
	assert.Equal(t, "BTC/USD", snap.Pair.String())
	require.Len(t, snap.Asks, 2)
	assert.Equal(t, "100.5", snap.Asks[0].Price.String())

	snap, err = d.Handle([]byte(`{
		"type": "l2update",
		"product_id": "BTC-USD",
		"changes": [["buy", "100", "0"], ["sell", "100.5", "0.7"]]
	}`))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Empty(t, snap.Bids, "zero size removes the level")
	require.Len(t, snap.Asks, 2)
	assert.Equal(t, "0.7", snap.Asks[0].Volume.String())
}

func TestCoinbaseUpdateBeforeSnapshotIsDropped(t *testing.T) {
	d := NewCoinbaseDialect()
	snap, err := d.Handle([]byte(`{
		"type": "l2update",
		"product_id": "BTC-USD",
		"changes": [["buy", "100", "1"]]
	}`))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestCoinbaseIgnoresOtherTraffic(t *testing.T) {
	d := NewCoinbaseDialect()
	for _, raw := range []string{
		`{"type": "subscriptions"}`,
		`{"type": "heartbeat", "product_id": "BTC-USD"}`,
	} {
		snap, err := d.Handle([]byte(raw))
		require.NoError(t, err)
		assert.Nil(t, snap)
	}
}

func TestLocalBookSnapshotOrderingAndDepth(t *testing.T) {
	b := newLocalBook()
	one := decimal.NewFromInt(1)
	for i := 0; i < maxDepth+10; i++ {
		b.apply(domain.SideAsk, decimal.NewFromInt(int64(1000+i)), one)
		b.apply(domain.SideBid, decimal.NewFromInt(int64(999-i)), one)
	}

	snap := b.snapshot(domain.ExchangeKraken, domain.Pair{Base: "BTC", Counter: "USD"}, time.Now())
	require.Len(t, snap.Asks, maxDepth)
	require.Len(t, snap.Bids, maxDepth)
	assert.Equal(t, "1000", snap.Asks[0].Price.String())
	assert.Equal(t, "999", snap.Bids[0].Price.String())
	assert.True(t, snap.Asks[1].Price.GreaterThan(snap.Asks[0].Price))
	assert.True(t, snap.Bids[1].Price.LessThan(snap.Bids[0].Price))
}

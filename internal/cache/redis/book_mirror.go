package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/quanthawk/arbot/internal/domain"
)

// BookMirror publishes the latest top-of-book per (exchange, pair) to Redis
// so external consoles can watch the aggregated view without touching the
// pipeline.
//
// Key schema:
//
//	tob:{exchange}:{pair} - hash with fields ask, ask_vol, bid, bid_vol, ts
type BookMirror struct {
	rdb *redis.Client
}

// NewBookMirror creates a BookMirror backed by the given Client.
func NewBookMirror(c *Client) *BookMirror {
	return &BookMirror{rdb: c.Underlying()}
}

func tobKey(exchange domain.Exchange, pair domain.Pair) string {
	return "tob:" + string(exchange) + ":" + pair.String()
}

// SetTopOfBook writes the snapshot's best levels.
func (m *BookMirror) SetTopOfBook(ctx context.Context, snap domain.OrderBookSnapshot) error {
	ask, okAsk := snap.BestAsk()
	bid, okBid := snap.BestBid()
	if !okAsk || !okBid {
		return nil
	}
	fields := map[string]any{
		"ask":     ask.Price.String(),
		"ask_vol": ask.Volume.String(),
		"bid":     bid.Price.String(),
		"bid_vol": bid.Volume.String(),
		"ts":      strconv.FormatInt(snap.Timestamp.UnixNano(), 10),
	}
	if err := m.rdb.HSet(ctx, tobKey(snap.Exchange, snap.Pair), fields).Err(); err != nil {
		return fmt.Errorf("redis: set top of book %s %s: %w", snap.Exchange, snap.Pair, err)
	}
	return nil
}

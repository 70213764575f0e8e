// Package feed contains the WebSocket market-data adapters. Each adapter
// normalizes one venue's book stream into OrderBookSnapshots and publishes
// them into the order book bus. Adapters reconnect on disconnect and never
// publish one-sided books.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/quanthawk/arbot/internal/domain"
)

// Sink receives normalized snapshots. Implemented by the order book bus.
type Sink interface {
	Publish(snap domain.OrderBookSnapshot) error
}

// Dialect is the venue-specific part of a feed: subscription framing and
// message translation. Dialects may keep per-pair depth state across messages
// (delta streams); Reset clears it on reconnect.
type Dialect interface {
	Exchange() domain.Exchange
	SubscribeMessages(pairs []domain.Pair) ([][]byte, error)
	Handle(message []byte) (*domain.OrderBookSnapshot, error)
	Reset()
}

// Feed runs one venue's WebSocket connection, feeding translated snapshots
// into the sink.
type Feed struct {
	url     string
	pairs   []domain.Pair
	dialect Dialect
	sink    Sink
	logger  *slog.Logger
}

// NewFeed creates a Feed for the given dialect and pairs.
func NewFeed(url string, pairs []domain.Pair, dialect Dialect, sink Sink, logger *slog.Logger) *Feed {
	return &Feed{
		url:     url,
		pairs:   pairs,
		dialect: dialect,
		sink:    sink,
		logger: logger.With(
			slog.String("component", "feed"),
			slog.String("exchange", string(dialect.Exchange())),
		),
	}
}

// Run connects, subscribes, and pumps messages until ctx is cancelled.
// Reconnects with a short backoff on disconnect.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("feed disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *Feed) runConnection(ctx context.Context) error {
	f.dialect.Reset()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// gorilla reads do not take a context; closing the connection is how the
	// read loop gets unblocked on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	msgs, err := f.dialect.SubscribeMessages(f.pairs)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return err
		}
	}
	f.logger.Info("feed subscribed", slog.Int("pairs", len(f.pairs)))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		snap, err := f.dialect.Handle(raw)
		if err != nil {
			f.logger.Debug("feed message dropped",
				slog.String("error", err.Error()),
				slog.Int("payload_len", len(raw)),
			)
			continue
		}
		if snap == nil || len(snap.Asks) == 0 || len(snap.Bids) == 0 {
			continue
		}
		if err := f.sink.Publish(*snap); err != nil {
			return err
		}
	}
}

// maxDepth caps the ladder depth adapters publish; deeper levels never move
// the matching outcome before shallower ones fail.
const maxDepth = 25

// localBook accumulates a delta book stream into full-depth state so the
// adapter can emit complete snapshots.
type localBook struct {
	asks map[string]domain.PriceLevel
	bids map[string]domain.PriceLevel
}

func newLocalBook() *localBook {
	return &localBook{
		asks: make(map[string]domain.PriceLevel),
		bids: make(map[string]domain.PriceLevel),
	}
}

func (b *localBook) reset() {
	b.asks = make(map[string]domain.PriceLevel)
	b.bids = make(map[string]domain.PriceLevel)
}

// apply sets or removes one level; zero volume removes.
func (b *localBook) apply(side domain.Side, price, volume decimal.Decimal) {
	levels := b.asks
	if side == domain.SideBid {
		levels = b.bids
	}
	key := price.String()
	if volume.IsZero() {
		delete(levels, key)
		return
	}
	levels[key] = domain.PriceLevel{Price: price, Volume: volume}
}

// snapshot renders the current state with asks ascending and bids descending,
// truncated to maxDepth.
func (b *localBook) snapshot(exchange domain.Exchange, pair domain.Pair, ts time.Time) *domain.OrderBookSnapshot {
	asks := make([]domain.PriceLevel, 0, len(b.asks))
	for _, lvl := range b.asks {
		asks = append(asks, lvl)
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	if len(asks) > maxDepth {
		asks = asks[:maxDepth]
	}

	bids := make([]domain.PriceLevel, 0, len(b.bids))
	for _, lvl := range b.bids {
		bids = append(bids, lvl)
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	if len(bids) > maxDepth {
		bids = bids[:maxDepth]
	}

	return &domain.OrderBookSnapshot{
		Exchange:  exchange,
		Pair:      pair,
		Asks:      asks,
		Bids:      bids,
		Timestamp: ts,
	}
}

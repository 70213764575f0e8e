package engine

import (
	"sort"

	"github.com/quanthawk/arbot/internal/domain"
)

// AggregatedBook holds the latest order book snapshot per (exchange, pair)
// together with two derived views per pair: exchanges sorted ascending by
// best ask and descending by best bid. Both views always contain exactly the
// same set of exchanges.
//
// AggregatedBook is not safe for concurrent use. It is owned exclusively by
// the engine's bus goroutine; matching workers only ever receive copies of
// the view slices.
type AggregatedBook struct {
	books    map[domain.Pair]map[domain.Exchange]domain.OrderBookSnapshot
	asksAsc  map[domain.Pair][]domain.OrderBookSnapshot
	bidsDesc map[domain.Pair][]domain.OrderBookSnapshot
}

// NewAggregatedBook creates an empty AggregatedBook.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		books:    make(map[domain.Pair]map[domain.Exchange]domain.OrderBookSnapshot),
		asksAsc:  make(map[domain.Pair][]domain.OrderBookSnapshot),
		bidsDesc: make(map[domain.Pair][]domain.OrderBookSnapshot),
	}
}

// Upsert replaces the live snapshot for (snap.Exchange, snap.Pair) and
// rebuilds both derived views for the pair. Last write wins; partial depth is
// never merged.
func (b *AggregatedBook) Upsert(snap domain.OrderBookSnapshot) {
	perExchange, ok := b.books[snap.Pair]
	if !ok {
		perExchange = make(map[domain.Exchange]domain.OrderBookSnapshot)
		b.books[snap.Pair] = perExchange
	}
	perExchange[snap.Exchange] = snap
	b.rebuildViews(snap.Pair)
}

// Exchanges returns the number of exchanges with a live snapshot for pair.
func (b *AggregatedBook) Exchanges(pair domain.Pair) int {
	return len(b.books[pair])
}

// Snapshot returns the live snapshot for (exchange, pair), if any.
func (b *AggregatedBook) Snapshot(pair domain.Pair, exchange domain.Exchange) (domain.OrderBookSnapshot, bool) {
	snap, ok := b.books[pair][exchange]
	return snap, ok
}

// Views returns copies of the derived views for pair, safe to hand to a
// matching worker while the book keeps mutating. The snapshots themselves are
// immutable once published, so a shallow copy suffices.
func (b *AggregatedBook) Views(pair domain.Pair) (asksAsc, bidsDesc []domain.OrderBookSnapshot) {
	asksAsc = append([]domain.OrderBookSnapshot(nil), b.asksAsc[pair]...)
	bidsDesc = append([]domain.OrderBookSnapshot(nil), b.bidsDesc[pair]...)
	return asksAsc, bidsDesc
}

// rebuildViews re-sorts both views for pair. O(n log n) in the number of live
// exchanges, which is bounded by the configured exchange count.
func (b *AggregatedBook) rebuildViews(pair domain.Pair) {
	snaps := make([]domain.OrderBookSnapshot, 0, len(b.books[pair]))
	for _, snap := range b.books[pair] {
		snaps = append(snaps, snap)
	}

	asks := append([]domain.OrderBookSnapshot(nil), snaps...)
	sort.Slice(asks, func(i, j int) bool {
		a, _ := asks[i].BestAsk()
		c, _ := asks[j].BestAsk()
		if cmp := a.Price.Cmp(c.Price); cmp != 0 {
			return cmp < 0
		}
		return asks[i].Exchange < asks[j].Exchange
	})

	bids := snaps
	sort.Slice(bids, func(i, j int) bool {
		a, _ := bids[i].BestBid()
		c, _ := bids[j].BestBid()
		if cmp := a.Price.Cmp(c.Price); cmp != 0 {
			return cmp > 0
		}
		return bids[i].Exchange < bids[j].Exchange
	})

	b.asksAsc[pair] = asks
	b.bidsDesc[pair] = bids
}

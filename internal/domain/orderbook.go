package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+volume entry in an order book ladder.
type PriceLevel struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// OrderBookSnapshot is a full snapshot of one exchange's book for one pair.
// Asks are ordered ascending by price, bids descending. Feed adapters must
// only publish snapshots with at least one level on each side.
//
// A snapshot is owned by the matching engine once published and is never
// mutated afterwards; a newer snapshot for the same (exchange, pair) replaces
// it wholesale.
type OrderBookSnapshot struct {
	Exchange  Exchange
	Pair      Pair
	Asks      []PriceLevel
	Bids      []PriceLevel
	Timestamp time.Time
}

// BestAsk returns the lowest ask level.
func (s OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// BestBid returns the highest bid level.
func (s OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one proposed order leg of an arbitrage opportunity. It is created
// by the matching engine and consumed exactly once by the trade publisher,
// which may rewrite Amount downward a single time before dispatch.
type Trade struct {
	ID           string // UUID, for log correlation
	Exchange     Exchange
	Pair         Pair
	Side         Side
	Kind         OrderKind
	Price        decimal.Decimal
	Amount       decimal.Decimal
	FeeRate      decimal.Decimal // taker fee fraction applied at discovery
	DiscoveredAt time.Time
}

// Fingerprint is the identity tuple used to recognise "the same" opportunity
// across repeated detections. Deliberately excludes ID, FeeRate and
// DiscoveredAt: two legs with equal venue, pair, side, kind, price and amount
// are the same opportunity.
func (t Trade) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		t.Exchange, t.Pair, t.Side, t.Kind, t.Price.String(), t.Amount.String())
}

// RequiredCurrency returns which currency of the pair must be available on
// the leg's exchange to execute it: the counter currency when buying, the
// base currency when selling.
func (t Trade) RequiredCurrency() string {
	if t.Side == SideBid {
		return t.Pair.Counter
	}
	return t.Pair.Base
}

// TradePair is a matched spatial-arbitrage opportunity: a buy leg on the
// cheap exchange and a sell leg on the expensive one, same pair, same amount.
type TradePair struct {
	Buy  Trade
	Sell Trade
}

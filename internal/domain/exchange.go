// Package domain holds the core types shared across the arbitrage pipeline:
// exchanges, pairs, order books, trades, and the interfaces the engine and
// publisher consume.
package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Exchange identifies a trading venue, e.g. "KRAKEN".
type Exchange string

const (
	ExchangeKraken   Exchange = "KRAKEN"
	ExchangeCoinbase Exchange = "COINBASE"
	ExchangeGemini   Exchange = "GEMINI"
	ExchangeBinance  Exchange = "BINANCE"
)

// Side is the order side from the submitting account's perspective.
type Side string

const (
	SideBid Side = "BID" // buy
	SideAsk Side = "ASK" // sell
)

// OrderKind is the order type. Only limit orders are produced today.
type OrderKind string

const OrderKindLimit OrderKind = "LIMIT"

// Pair is a currency pair, base priced in counter.
type Pair struct {
	Base    string
	Counter string
}

// ParsePair parses "BASE/COUNTER" notation, e.g. "BTC/USD".
func ParsePair(s string) (Pair, error) {
	base, counter, ok := strings.Cut(s, "/")
	if !ok || base == "" || counter == "" {
		return Pair{}, fmt.Errorf("invalid pair %q (want BASE/COUNTER)", s)
	}
	return Pair{Base: base, Counter: counter}, nil
}

func (p Pair) String() string { return p.Base + "/" + p.Counter }

// Fees is an exchange's fee schedule for one pair, as fractions (0.0026 means
// 26 bps).
type Fees struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// PairMetadata holds the order constraints an exchange enforces for one pair.
type PairMetadata struct {
	// MinOrderAmount is the smallest accepted order amount in base currency.
	MinOrderAmount decimal.Decimal
	// PriceScale is the number of decimal digits accepted for prices and
	// amounts on this pair.
	PriceScale int32
}

// Balance is an available (unreserved) account balance in one currency.
type Balance struct {
	Currency  string
	Available decimal.Decimal
}

// MetadataReader is the read side of the metadata store. All methods return
// an error wrapping ErrMetadataUnavailable when the value is not known;
// callers treat that as "skip, do not trade".
type MetadataReader interface {
	Fees(exchange Exchange, pair Pair) (Fees, error)
	MinOrderAmount(exchange Exchange, pair Pair) (decimal.Decimal, error)
	PriceScale(exchange Exchange, pair Pair) (int32, error)
	Balance(exchange Exchange, currency string) (decimal.Decimal, error)
}

// ExchangeClient is the capability surface a venue integration must provide.
// Implementations are safe for concurrent use.
type ExchangeClient interface {
	Exchange() Exchange
	SubmitOrder(ctx context.Context, trade Trade) (orderID string, err error)
	FetchFees(ctx context.Context, pair Pair) (Fees, error)
	FetchPairMetadata(ctx context.Context, pair Pair) (PairMetadata, error)
	FetchBalances(ctx context.Context) ([]Balance, error)
}

package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quanthawk/arbot/internal/domain"
)

// KrakenDialect speaks the Kraken v2 WebSocket book channel. Kraken sends a
// full snapshot on subscribe followed by deltas; the dialect folds both into
// a localBook per pair.
type KrakenDialect struct {
	depth int
	books map[string]*localBook // keyed by Kraken symbol, e.g. "BTC/USD"
}

// NewKrakenDialect creates the dialect with the given subscription depth.
func NewKrakenDialect(depth int) *KrakenDialect {
	if depth <= 0 {
		depth = 10
	}
	return &KrakenDialect{
		depth: depth,
		books: make(map[string]*localBook),
	}
}

// Exchange implements Dialect.
func (d *KrakenDialect) Exchange() domain.Exchange { return domain.ExchangeKraken }

// Reset implements Dialect.
func (d *KrakenDialect) Reset() {
	d.books = make(map[string]*localBook)
}

// SubscribeMessages returns one book subscription covering all pairs.
func (d *KrakenDialect) SubscribeMessages(pairs []domain.Pair) ([][]byte, error) {
	symbols := make([]string, 0, len(pairs))
	for _, p := range pairs {
		symbols = append(symbols, p.String())
	}
	msg, err := json.Marshal(map[string]any{
		"method": "subscribe",
		"params": map[string]any{
			"channel": "book",
			"symbol":  symbols,
			"depth":   d.depth,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("kraken: encode subscribe: %w", err)
	}
	return [][]byte{msg}, nil
}

type krakenLevel struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

type krakenBookMessage struct {
	Channel string `json:"channel"`
	Type    string `json:"type"`
	Data    []struct {
		Symbol string        `json:"symbol"`
		Asks   []krakenLevel `json:"asks"`
		Bids   []krakenLevel `json:"bids"`
	} `json:"data"`
}

// Handle folds one message into the local book and returns the resulting
// snapshot, or nil for non-book traffic (heartbeats, subscription acks).
func (d *KrakenDialect) Handle(message []byte) (*domain.OrderBookSnapshot, error) {
	var msg krakenBookMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return nil, fmt.Errorf("kraken: decode message: %w", err)
	}
	if msg.Channel != "book" || len(msg.Data) == 0 {
		return nil, nil
	}
	if msg.Type != "snapshot" && msg.Type != "update" {
		return nil, nil
	}

	data := msg.Data[0]
	pair, err := domain.ParsePair(data.Symbol)
	if err != nil {
		return nil, fmt.Errorf("kraken: %w", err)
	}

	book, ok := d.books[data.Symbol]
	if !ok || msg.Type == "snapshot" {
		book = newLocalBook()
		d.books[data.Symbol] = book
	}
	for _, lvl := range data.Asks {
		book.apply(domain.SideAsk, lvl.Price, lvl.Qty)
	}
	for _, lvl := range data.Bids {
		book.apply(domain.SideBid, lvl.Price, lvl.Qty)
	}

	return book.snapshot(domain.ExchangeKraken, pair, time.Now()), nil
}

var _ Dialect = (*KrakenDialect)(nil)

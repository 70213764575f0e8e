package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quanthawk/arbot/internal/domain"
)

// CoinbaseDialect speaks the Coinbase Exchange level2 channel: a snapshot per
// product on subscribe followed by l2update deltas.
type CoinbaseDialect struct {
	books map[string]*localBook // keyed by product id, e.g. "BTC-USD"
}

// NewCoinbaseDialect creates the dialect.
func NewCoinbaseDialect() *CoinbaseDialect {
	return &CoinbaseDialect{books: make(map[string]*localBook)}
}

// Exchange implements Dialect.
func (d *CoinbaseDialect) Exchange() domain.Exchange { return domain.ExchangeCoinbase }

// Reset implements Dialect.
func (d *CoinbaseDialect) Reset() {
	d.books = make(map[string]*localBook)
}

func productID(p domain.Pair) string { return p.Base + "-" + p.Counter }

func parseProductID(id string) (domain.Pair, error) {
	return domain.ParsePair(strings.Replace(id, "-", "/", 1))
}

// SubscribeMessages returns one level2 subscription covering all pairs.
func (d *CoinbaseDialect) SubscribeMessages(pairs []domain.Pair) ([][]byte, error) {
	products := make([]string, 0, len(pairs))
	for _, p := range pairs {
		products = append(products, productID(p))
	}
	msg, err := json.Marshal(map[string]any{
		"type":        "subscribe",
		"product_ids": products,
		"channels":    []string{"level2"},
	})
	if err != nil {
		return nil, fmt.Errorf("coinbase: encode subscribe: %w", err)
	}
	return [][]byte{msg}, nil
}

type coinbaseMessage struct {
	Type      string     `json:"type"`
	ProductID string     `json:"product_id"`
	Bids      [][]string `json:"bids"`    // snapshot: [price, size]
	Asks      [][]string `json:"asks"`    // snapshot: [price, size]
	Changes   [][]string `json:"changes"` // l2update: [side, price, size]
}

// Handle folds one message into the local book and returns the resulting
// snapshot, or nil for non-book traffic.
func (d *CoinbaseDialect) Handle(message []byte) (*domain.OrderBookSnapshot, error) {
	var msg coinbaseMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return nil, fmt.Errorf("coinbase: decode message: %w", err)
	}

	switch msg.Type {
	case "snapshot":
		book := newLocalBook()
		d.books[msg.ProductID] = book
		if err := applyPairs(book, domain.SideAsk, msg.Asks); err != nil {
			return nil, err
		}
		if err := applyPairs(book, domain.SideBid, msg.Bids); err != nil {
			return nil, err
		}
	case "l2update":
		book, ok := d.books[msg.ProductID]
		if !ok {
			// Delta before snapshot; wait for the snapshot.
			return nil, nil
		}
		for _, change := range msg.Changes {
			if len(change) != 3 {
				return nil, fmt.Errorf("coinbase: malformed change %v", change)
			}
			side := domain.SideAsk
			if change[0] == "buy" {
				side = domain.SideBid
			}
			price, err := decimal.NewFromString(change[1])
			if err != nil {
				return nil, fmt.Errorf("coinbase: parse change price: %w", err)
			}
			size, err := decimal.NewFromString(change[2])
			if err != nil {
				return nil, fmt.Errorf("coinbase: parse change size: %w", err)
			}
			book.apply(side, price, size)
		}
	default:
		return nil, nil
	}

	pair, err := parseProductID(msg.ProductID)
	if err != nil {
		return nil, fmt.Errorf("coinbase: %w", err)
	}
	return d.books[msg.ProductID].snapshot(domain.ExchangeCoinbase, pair, time.Now()), nil
}

func applyPairs(book *localBook, side domain.Side, levels [][]string) error {
	for _, lvl := range levels {
		if len(lvl) < 2 {
			return fmt.Errorf("coinbase: malformed level %v", lvl)
		}
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return fmt.Errorf("coinbase: parse level price: %w", err)
		}
		size, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return fmt.Errorf("coinbase: parse level size: %w", err)
		}
		book.apply(side, price, size)
	}
	return nil
}

var _ Dialect = (*CoinbaseDialect)(nil)

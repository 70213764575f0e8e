package metadata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	cacheredis "github.com/quanthawk/arbot/internal/cache/redis"
	"github.com/quanthawk/arbot/internal/domain"
)

// Mirror is a best-effort Redis copy of the fee/constraint part of the Store.
// On startup it lets the engine evaluate venues before the first REST refresh
// completes. Balances are deliberately not mirrored; stale balances are worse
// than missing ones.
//
// Key schema:
//
//	meta:{exchange}:{pair} - hash with fields maker, taker, min_amount, price_scale
type Mirror struct {
	client *cacheredis.Client
	ttl    time.Duration
}

// NewMirror creates a Mirror with the given entry TTL.
func NewMirror(client *cacheredis.Client, ttl time.Duration) *Mirror {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Mirror{client: client, ttl: ttl}
}

func metaKey(exchange domain.Exchange, pair domain.Pair) string {
	return "meta:" + string(exchange) + ":" + pair.String()
}

// Save writes every complete (exchange, pair) record from the store.
func (m *Mirror) Save(ctx context.Context, store *Store) error {
	rdb := m.client.Underlying()
	pipe := rdb.Pipeline()
	for _, e := range store.PairEntries() {
		key := metaKey(e.Exchange, e.Pair)
		pipe.HSet(ctx, key, map[string]any{
			"maker":       e.Fees.Maker.String(),
			"taker":       e.Fees.Taker.String(),
			"min_amount":  e.Meta.MinOrderAmount.String(),
			"price_scale": strconv.FormatInt(int64(e.Meta.PriceScale), 10),
		})
		pipe.Expire(ctx, key, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("metadata mirror: save: %w", err)
	}
	return nil
}

// Restore loads every mirrored record into the store. Individual malformed
// entries are skipped.
func (m *Mirror) Restore(ctx context.Context, store *Store) error {
	rdb := m.client.Underlying()
	iter := rdb.Scan(ctx, 0, "meta:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		exchange, pair, err := parseMetaKey(key)
		if err != nil {
			continue
		}
		fields, err := rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("metadata mirror: read %s: %w", key, err)
		}
		maker, err1 := decimal.NewFromString(fields["maker"])
		taker, err2 := decimal.NewFromString(fields["taker"])
		minAmount, err3 := decimal.NewFromString(fields["min_amount"])
		scale, err4 := strconv.ParseInt(fields["price_scale"], 10, 32)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		store.UpsertFees(exchange, pair, domain.Fees{Maker: maker, Taker: taker})
		store.UpsertPairMetadata(exchange, pair, domain.PairMetadata{
			MinOrderAmount: minAmount,
			PriceScale:     int32(scale),
		})
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("metadata mirror: scan: %w", err)
	}
	return nil
}

func parseMetaKey(key string) (domain.Exchange, domain.Pair, error) {
	rest, ok := strings.CutPrefix(key, "meta:")
	if !ok {
		return "", domain.Pair{}, fmt.Errorf("metadata mirror: bad key %q", key)
	}
	exchange, pairStr, ok := strings.Cut(rest, ":")
	if !ok || exchange == "" || pairStr == "" {
		return "", domain.Pair{}, fmt.Errorf("metadata mirror: bad key %q", key)
	}
	pair, err := domain.ParsePair(pairStr)
	if err != nil {
		return "", domain.Pair{}, err
	}
	return domain.Exchange(exchange), pair, nil
}

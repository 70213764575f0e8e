// Package metadata implements the in-process cache of exchange trading fees,
// pair constraints, and account balances that the matching engine and trade
// publisher read on every decision. Writers are the periodic refresher and
// (optionally) a Redis warm-start mirror; readers never block each other.
package metadata

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/quanthawk/arbot/internal/domain"
)

type pairKey struct {
	Exchange domain.Exchange
	Pair     domain.Pair
}

type balanceKey struct {
	Exchange domain.Exchange
	Currency string
}

// Store is a concurrency-safe metadata cache. The zero value is not usable;
// call NewStore.
type Store struct {
	mu       sync.RWMutex
	fees     map[pairKey]domain.Fees
	pairMeta map[pairKey]domain.PairMetadata
	balances map[balanceKey]decimal.Decimal
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		fees:     make(map[pairKey]domain.Fees),
		pairMeta: make(map[pairKey]domain.PairMetadata),
		balances: make(map[balanceKey]decimal.Decimal),
	}
}

// UpsertFees replaces the fee schedule for (exchange, pair).
func (s *Store) UpsertFees(exchange domain.Exchange, pair domain.Pair, fees domain.Fees) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fees[pairKey{exchange, pair}] = fees
}

// UpsertPairMetadata replaces the order constraints for (exchange, pair).
func (s *Store) UpsertPairMetadata(exchange domain.Exchange, pair domain.Pair, meta domain.PairMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairMeta[pairKey{exchange, pair}] = meta
}

// UpsertBalance replaces the available balance for (exchange, currency).
func (s *Store) UpsertBalance(exchange domain.Exchange, currency string, available decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey{exchange, currency}] = available
}

// Fees returns the fee schedule, or ErrMetadataUnavailable if unknown.
func (s *Store) Fees(exchange domain.Exchange, pair domain.Pair) (domain.Fees, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fees[pairKey{exchange, pair}]
	if !ok {
		return domain.Fees{}, fmt.Errorf("fees for %s %s: %w", exchange, pair, domain.ErrMetadataUnavailable)
	}
	return f, nil
}

// MinOrderAmount returns the minimum order amount in base currency.
func (s *Store) MinOrderAmount(exchange domain.Exchange, pair domain.Pair) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.pairMeta[pairKey{exchange, pair}]
	if !ok {
		return decimal.Zero, fmt.Errorf("min order amount for %s %s: %w", exchange, pair, domain.ErrMetadataUnavailable)
	}
	return m.MinOrderAmount, nil
}

// PriceScale returns the number of decimal digits the exchange accepts for
// the pair's price and amount.
func (s *Store) PriceScale(exchange domain.Exchange, pair domain.Pair) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.pairMeta[pairKey{exchange, pair}]
	if !ok {
		return 0, fmt.Errorf("price scale for %s %s: %w", exchange, pair, domain.ErrMetadataUnavailable)
	}
	return m.PriceScale, nil
}

// Balance returns the available balance for (exchange, currency).
func (s *Store) Balance(exchange domain.Exchange, currency string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[balanceKey{exchange, currency}]
	if !ok {
		return decimal.Zero, fmt.Errorf("balance for %s %s: %w", exchange, currency, domain.ErrMetadataUnavailable)
	}
	return b, nil
}

// PairEntry is one (exchange, pair) metadata record, used when mirroring the
// store to an external cache.
type PairEntry struct {
	Exchange domain.Exchange
	Pair     domain.Pair
	Fees     domain.Fees
	Meta     domain.PairMetadata
}

// PairEntries returns a copy of every (exchange, pair) record that has both a
// fee schedule and constraints.
func (s *Store) PairEntries() []PairEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]PairEntry, 0, len(s.fees))
	for k, f := range s.fees {
		m, ok := s.pairMeta[k]
		if !ok {
			continue
		}
		entries = append(entries, PairEntry{Exchange: k.Exchange, Pair: k.Pair, Fees: f, Meta: m})
	}
	return entries
}

var _ domain.MetadataReader = (*Store)(nil)

package metadata_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanthawk/arbot/internal/domain"
	"github.com/quanthawk/arbot/internal/metadata"
)

var btcusd = domain.Pair{Base: "BTC", Counter: "USD"}

func TestStoreRoundTrip(t *testing.T) {
	s := metadata.NewStore()

	fees := domain.Fees{
		Maker: decimal.RequireFromString("0.0016"),
		Taker: decimal.RequireFromString("0.0026"),
	}
	s.UpsertFees(domain.ExchangeKraken, btcusd, fees)
	s.UpsertPairMetadata(domain.ExchangeKraken, btcusd, domain.PairMetadata{
		MinOrderAmount: decimal.RequireFromString("0.0001"),
		PriceScale:     5,
	})
	s.UpsertBalance(domain.ExchangeKraken, "USD", decimal.RequireFromString("1234.56"))

	got, err := s.Fees(domain.ExchangeKraken, btcusd)
	require.NoError(t, err)
	assert.True(t, got.Taker.Equal(fees.Taker))

	minAmount, err := s.MinOrderAmount(domain.ExchangeKraken, btcusd)
	require.NoError(t, err)
	assert.Equal(t, "0.0001", minAmount.String())

	scale, err := s.PriceScale(domain.ExchangeKraken, btcusd)
	require.NoError(t, err)
	assert.Equal(t, int32(5), scale)

	balance, err := s.Balance(domain.ExchangeKraken, "USD")
	require.NoError(t, err)
	assert.Equal(t, "1234.56", balance.String())
}

func TestStoreUnknownKeysReturnSentinel(t *testing.T) {
	s := metadata.NewStore()

	_, err := s.Fees(domain.ExchangeKraken, btcusd)
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)

	_, err = s.MinOrderAmount(domain.ExchangeKraken, btcusd)
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)

	_, err = s.PriceScale(domain.ExchangeKraken, btcusd)
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)

	_, err = s.Balance(domain.ExchangeKraken, "USD")
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)
}

func TestStoreUpsertReplaces(t *testing.T) {
	s := metadata.NewStore()
	s.UpsertBalance(domain.ExchangeKraken, "USD", decimal.NewFromInt(100))
	s.UpsertBalance(domain.ExchangeKraken, "USD", decimal.NewFromInt(75))

	balance, err := s.Balance(domain.ExchangeKraken, "USD")
	require.NoError(t, err)
	assert.Equal(t, "75", balance.String())
}

func TestStorePairEntriesRequireBothRecords(t *testing.T) {
	s := metadata.NewStore()
	s.UpsertFees(domain.ExchangeKraken, btcusd, domain.Fees{Taker: decimal.RequireFromString("0.002")})
	// No constraints for Kraken yet; entry must be withheld.
	assert.Empty(t, s.PairEntries())

	s.UpsertPairMetadata(domain.ExchangeKraken, btcusd, domain.PairMetadata{
		MinOrderAmount: decimal.RequireFromString("0.001"),
		PriceScale:     4,
	})
	entries := s.PairEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ExchangeKraken, entries[0].Exchange)
	assert.Equal(t, btcusd, entries[0].Pair)
}

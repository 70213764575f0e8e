package metadata_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanthawk/arbot/internal/domain"
	"github.com/quanthawk/arbot/internal/metadata"
)

type stubClient struct {
	exchange domain.Exchange
	feeErr   error
}

func (c *stubClient) Exchange() domain.Exchange { return c.exchange }

func (c *stubClient) SubmitOrder(context.Context, domain.Trade) (string, error) {
	return "", errors.New("not implemented")
}

func (c *stubClient) FetchFees(context.Context, domain.Pair) (domain.Fees, error) {
	if c.feeErr != nil {
		return domain.Fees{}, c.feeErr
	}
	return domain.Fees{
		Maker: decimal.RequireFromString("0.001"),
		Taker: decimal.RequireFromString("0.002"),
	}, nil
}

func (c *stubClient) FetchPairMetadata(context.Context, domain.Pair) (domain.PairMetadata, error) {
	return domain.PairMetadata{
		MinOrderAmount: decimal.RequireFromString("0.001"),
		PriceScale:     4,
	}, nil
}

func (c *stubClient) FetchBalances(context.Context) ([]domain.Balance, error) {
	return []domain.Balance{
		{Currency: "USD", Available: decimal.NewFromInt(5000)},
		{Currency: "BTC", Available: decimal.NewFromInt(2)},
	}, nil
}

func TestRefresherPopulatesStoreOnFirstPass(t *testing.T) {
	store := metadata.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := metadata.NewRefresher(
		store,
		[]domain.ExchangeClient{&stubClient{exchange: domain.ExchangeKraken}},
		[]domain.Pair{btcusd},
		time.Hour,
		nil,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := store.Fees(domain.ExchangeKraken, btcusd)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	balance, err := store.Balance(domain.ExchangeKraken, "USD")
	require.NoError(t, err)
	assert.Equal(t, "5000", balance.String())

	scale, err := store.PriceScale(domain.ExchangeKraken, btcusd)
	require.NoError(t, err)
	assert.Equal(t, int32(4), scale)
}

func TestRefresherOneVenueFailingDoesNotStallOthers(t *testing.T) {
	store := metadata.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := metadata.NewRefresher(
		store,
		[]domain.ExchangeClient{
			&stubClient{exchange: domain.ExchangeKraken, feeErr: errors.New("rate limited")},
			&stubClient{exchange: domain.ExchangeCoinbase},
		},
		[]domain.Pair{btcusd},
		time.Hour,
		nil,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := store.Fees(domain.ExchangeCoinbase, btcusd)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	// Kraken's fees never arrived, but its non-failing fetches still landed.
	_, err := store.Fees(domain.ExchangeKraken, btcusd)
	assert.ErrorIs(t, err, domain.ErrMetadataUnavailable)

	_, err = store.MinOrderAmount(domain.ExchangeKraken, btcusd)
	assert.NoError(t, err)
}

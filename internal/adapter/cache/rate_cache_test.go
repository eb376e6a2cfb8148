package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/pkg/logger"
)

func mustRate(t *testing.T, target model.Currency, value string) *model.Rate {
	t.Helper()
	rate, err := model.NewRate(target, decimal.RequireFromString(value), model.USD, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return rate
}

func TestRateCache_GetMissingIsHardFailure(t *testing.T) {
	c := NewRateCache(newTestMemoryCache(&fakeClock{now: time.Now()}), logger.NewNop())

	rate, err := c.Get(context.Background(), model.EUR)
	assert.Nil(t, rate)
	assert.ErrorIs(t, err, model.ErrRateNotCached)
}

func TestRateCache_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	c := NewRateCache(newTestMemoryCache(&fakeClock{now: time.Now()}), logger.NewNop())

	require.NoError(t, c.Put(ctx, mustRate(t, model.EUR, "0.85")))
	require.NoError(t, c.Put(ctx, mustRate(t, model.EUR, "0.91")))

	got, err := c.Get(ctx, model.EUR)
	require.NoError(t, err)
	assert.True(t, got.Equal(mustRate(t, model.EUR, "0.91")))

	keys, err := c.ListKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Currency{model.EUR}, keys)
}

func TestRateCache_PutRejectsInvalid(t *testing.T) {
	c := NewRateCache(newTestMemoryCache(&fakeClock{now: time.Now()}), logger.NewNop())

	assert.ErrorIs(t, c.Put(context.Background(), nil), model.ErrInvalidRate)
	assert.ErrorIs(t, c.Put(context.Background(), &model.Rate{TargetCurrency: model.EUR}), model.ErrInvalidRate)
}

func TestRateCache_RemainingTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	c := NewRateCache(newTestMemoryCache(clock), logger.NewNop())

	_, err := c.RemainingTTL(ctx, model.GBP)
	assert.ErrorIs(t, err, model.ErrRateNotCached)

	require.NoError(t, c.Put(ctx, mustRate(t, model.GBP, "0.75")))
	clock.Advance(time.Hour)

	ttl, err := c.RemainingTTL(ctx, model.GBP)
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Duration(0))
}

func TestStatusStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStatusStore(newTestMemoryCache(&fakeClock{now: time.Now()}))

	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := model.RefreshStatus{State: model.RefreshIdle, Stored: 3, Fetched: 4, Skipped: 1}
	require.NoError(t, s.Save(ctx, want))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

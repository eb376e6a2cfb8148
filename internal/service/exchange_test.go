package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/metrics"
	"currency-rate-service/pkg/logger"
)

type MockConverter struct {
	ConvertFunc func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error)
}

func (m *MockConverter) Convert(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	return m.ConvertFunc(ctx, from, to, amount)
}

type MockRefresher struct {
	UpdateFunc func(ctx context.Context) (model.RefreshStatus, error)
	StatusFunc func() model.RefreshStatus
}

func (m *MockRefresher) UpdateRatesFromProvider(ctx context.Context) (model.RefreshStatus, error) {
	return m.UpdateFunc(ctx)
}

func (m *MockRefresher) Status() model.RefreshStatus {
	return m.StatusFunc()
}

func TestExchangeService_Convert(t *testing.T) {
	log := logger.NewNop()

	testCases := []struct {
		name          string
		from          model.Currency
		to            model.Currency
		amount        string
		converter     MockConverter
		expected      string
		expectedError error
		outcome       string
	}{
		{
			name:   "Success",
			from:   "eur",
			to:     model.GBP,
			amount: "100",
			converter: MockConverter{
				ConvertFunc: func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
					if from != model.EUR || to != model.GBP {
						return decimal.Decimal{}, fmt.Errorf("unexpected pair %s/%s", from, to)
					}
					return decimal.RequireFromString("88.24"), nil
				},
			},
			expected: "88.24",
			outcome:  "ok",
		},
		{
			name:          "Invalid Currency",
			from:          "EURO",
			to:            model.GBP,
			amount:        "100",
			expectedError: model.ErrInvalidCurrency,
			outcome:       "invalid",
		},
		{
			name:          "Invalid Amount",
			from:          model.EUR,
			to:            model.GBP,
			amount:        "-5",
			expectedError: model.ErrInvalidAmount,
			outcome:       "invalid",
		},
		{
			name:   "Rate Unavailable",
			from:   model.EUR,
			to:     model.INR,
			amount: "1",
			converter: MockConverter{
				ConvertFunc: func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
					return decimal.Decimal{}, &model.RateUnavailableError{Code: model.INR, Cause: model.ErrRateNotCached}
				},
			},
			expectedError: model.ErrCurrencyRateUnavailable,
			outcome:       "rate_unavailable",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := metrics.NewNop()
			converter := tc.converter
			svc := NewExchangeService(&converter, &MockRefresher{}, newFakeRateCache(), m, log)

			got, err := svc.Convert(context.Background(), tc.from, tc.to, decimal.RequireFromString(tc.amount))

			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
			} else {
				require.NoError(t, err)
				assert.True(t, got.Equal(decimal.RequireFromString(tc.expected)), "got %s", got)
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(m.ConversionsTotal.WithLabelValues(tc.outcome)))
		})
	}
}

func TestExchangeService_GetRate(t *testing.T) {
	rc := newFakeRateCache()
	rc.seed(model.EUR, "0.85", time.Hour)
	svc := NewExchangeService(&MockConverter{}, &MockRefresher{}, rc, metrics.NewNop(), logger.NewNop())

	rate, err := svc.GetRate(context.Background(), "eur")
	require.NoError(t, err)
	assert.Equal(t, model.EUR, rate.TargetCurrency)

	_, err = svc.GetRate(context.Background(), model.JPY)
	assert.ErrorIs(t, err, model.ErrCurrencyRateUnavailable)

	_, err = svc.GetRate(context.Background(), "12")
	assert.ErrorIs(t, err, model.ErrInvalidCurrency)
}

func TestExchangeService_ListRates(t *testing.T) {
	rc := newFakeRateCache()
	rc.seed(model.GBP, "0.75", time.Hour)
	rc.seed(model.EUR, "0.85", time.Hour)
	svc := NewExchangeService(&MockConverter{}, &MockRefresher{}, rc, metrics.NewNop(), logger.NewNop())

	rates, err := svc.ListRates(context.Background())

	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, model.EUR, rates[0].TargetCurrency)
	assert.Equal(t, model.GBP, rates[1].TargetCurrency)

	rc.listErr = errors.New("scan failed")
	_, err = svc.ListRates(context.Background())
	assert.Error(t, err)
}

func TestExchangeService_DelegatesRefresh(t *testing.T) {
	want := model.RefreshStatus{State: model.RefreshIdle, Outcome: model.RefreshPartiallyPopulated, Stored: 4}
	refresher := &MockRefresher{
		UpdateFunc: func(ctx context.Context) (model.RefreshStatus, error) { return want, nil },
		StatusFunc: func() model.RefreshStatus { return want },
	}
	svc := NewExchangeService(&MockConverter{}, refresher, newFakeRateCache(), metrics.NewNop(), logger.NewNop())

	got, err := svc.UpdateRatesFromProvider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, want, svc.Status())
}

func TestConversionOutcome(t *testing.T) {
	assert.Equal(t, "ok", ConversionOutcome(nil))
	assert.Equal(t, "timeout", ConversionOutcome(fmt.Errorf("wrap: %w", model.ErrConversionRPCTimeout)))
	assert.Equal(t, "arithmetic", ConversionOutcome(model.ErrConversionArithmetic))
	assert.Equal(t, "error", ConversionOutcome(errors.New("boom")))
}

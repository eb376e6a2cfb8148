package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/metrics"
	"currency-rate-service/pkg/logger"
)

type MockExchangeService struct {
	ConvertFunc   func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error)
	GetRateFunc   func(ctx context.Context, code model.Currency) (*model.Rate, error)
	ListRatesFunc func(ctx context.Context) ([]*model.Rate, error)
	UpdateFunc    func(ctx context.Context) (model.RefreshStatus, error)
	StatusFunc    func() model.RefreshStatus
}

func (m *MockExchangeService) Convert(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	return m.ConvertFunc(ctx, from, to, amount)
}

func (m *MockExchangeService) GetRate(ctx context.Context, code model.Currency) (*model.Rate, error) {
	return m.GetRateFunc(ctx, code)
}

func (m *MockExchangeService) ListRates(ctx context.Context) ([]*model.Rate, error) {
	return m.ListRatesFunc(ctx)
}

func (m *MockExchangeService) UpdateRatesFromProvider(ctx context.Context) (model.RefreshStatus, error) {
	return m.UpdateFunc(ctx)
}

func (m *MockExchangeService) Status() model.RefreshStatus {
	return m.StatusFunc()
}

type decodedResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(svc *MockExchangeService) http.Handler {
	log := logger.NewNop()
	reg := prometheus.NewRegistry()
	return NewRouter(NewHandler(svc, log), log, metrics.NewMetrics(reg), reg).SetupRoutes()
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, decodedResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body decodedResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestConvertCurrencyHandler(t *testing.T) {
	testCases := []struct {
		name           string
		target         string
		convert        func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error)
		expectedStatus int
		expectedError  string
		expectedAmount string
	}{
		{
			name:   "Success",
			target: "/api/v1/convert?from=EUR&to=GBP&amount=100",
			convert: func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
				return decimal.RequireFromString("88.24"), nil
			},
			expectedStatus: http.StatusOK,
			expectedAmount: "88.24",
		},
		{
			name:   "Default Amount",
			target: "/api/v1/convert?from=USD&to=EUR",
			convert: func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
				return amount.Mul(decimal.RequireFromString("0.85")), nil
			},
			expectedStatus: http.StatusOK,
			expectedAmount: "0.85",
		},
		{
			name:           "Missing Parameters",
			target:         "/api/v1/convert?from=EUR",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "from and to are required",
		},
		{
			name:           "Invalid Currency",
			target:         "/api/v1/convert?from=DOLLAR&to=EUR",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid currency",
		},
		{
			name:           "Invalid Amount",
			target:         "/api/v1/convert?from=EUR&to=GBP&amount=abc",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "amount must be a decimal number",
		},
		{
			name:   "Rate Unavailable",
			target: "/api/v1/convert?from=EUR&to=INR&amount=1",
			convert: func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
				return decimal.Decimal{}, &model.RateUnavailableError{Code: model.INR}
			},
			expectedStatus: http.StatusNotFound,
			expectedError:  "currency rate unavailable: INR",
		},
		{
			name:   "Arithmetic",
			target: "/api/v1/convert?from=EUR&to=GBP&amount=1",
			convert: func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
				return decimal.Decimal{}, model.ErrConversionArithmetic
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedError:  "conversion could not be computed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&MockExchangeService{ConvertFunc: tc.convert})

			rec, body := do(t, srv, http.MethodGet, tc.target)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			if tc.expectedError != "" {
				assert.False(t, body.Success)
				assert.Equal(t, tc.expectedError, body.Error)
				return
			}

			assert.True(t, body.Success)
			var result model.ConversionResult
			require.NoError(t, json.Unmarshal(body.Data, &result))
			assert.True(t, result.ConvertedAmount.Equal(decimal.RequireFromString(tc.expectedAmount)), "got %s", result.ConvertedAmount)
		})
	}
}

func TestRateHandlers(t *testing.T) {
	eur := &model.Rate{TargetCurrency: model.EUR, Value: decimal.RequireFromString("0.85"), BaseCurrency: model.USD, ObservedAt: time.Now().UTC()}
	svc := &MockExchangeService{
		GetRateFunc: func(ctx context.Context, code model.Currency) (*model.Rate, error) {
			if code == "eur" || code == model.EUR {
				return eur, nil
			}
			return nil, &model.RateUnavailableError{Code: code}
		},
		ListRatesFunc: func(ctx context.Context) ([]*model.Rate, error) {
			return []*model.Rate{eur}, nil
		},
		StatusFunc: func() model.RefreshStatus {
			return model.RefreshStatus{State: model.RefreshIdle, Outcome: model.RefreshPartiallyPopulated, Stored: 1}
		},
	}
	srv := newTestServer(svc)

	rec, body := do(t, srv, http.MethodGet, "/api/v1/rates/eur")
	assert.Equal(t, http.StatusOK, rec.Code)
	var rate model.Rate
	require.NoError(t, json.Unmarshal(body.Data, &rate))
	assert.True(t, rate.Equal(eur))

	rec, _ = do(t, srv, http.MethodGet, "/api/v1/rates/JPY")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = do(t, srv, http.MethodGet, "/api/v1/rates")
	assert.Equal(t, http.StatusOK, rec.Code)
	var rates []model.Rate
	require.NoError(t, json.Unmarshal(body.Data, &rates))
	assert.Len(t, rates, 1)

	rec, body = do(t, srv, http.MethodGet, "/api/v1/rates/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	var status model.RefreshStatus
	require.NoError(t, json.Unmarshal(body.Data, &status))
	assert.Equal(t, model.RefreshPartiallyPopulated, status.Outcome)
}

func TestRefreshRatesHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := newTestServer(&MockExchangeService{
			UpdateFunc: func(ctx context.Context) (model.RefreshStatus, error) {
				return model.RefreshStatus{State: model.RefreshIdle, Stored: 5}, nil
			},
		})

		rec, body := do(t, srv, http.MethodPost, "/api/v1/rates/refresh")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, body.Success)
	})

	t.Run("provider exhausted", func(t *testing.T) {
		srv := newTestServer(&MockExchangeService{
			UpdateFunc: func(ctx context.Context) (model.RefreshStatus, error) {
				return model.RefreshStatus{}, model.ErrRetryExhausted
			},
		})

		rec, body := do(t, srv, http.MethodPost, "/api/v1/rates/refresh")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "rate provider unavailable", body.Error)
	})

	t.Run("wrong method", func(t *testing.T) {
		srv := newTestServer(&MockExchangeService{})
		rec, _ := do(t, srv, http.MethodDelete, "/api/v1/rates")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(&MockExchangeService{})

	rec, _ := do(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec, _ = do(t, srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "currency_rate_http_requests_total")
}

func TestConvertCurrencyHandler_NormalizesCodes(t *testing.T) {
	var gotFrom, gotTo model.Currency
	srv := newTestServer(&MockExchangeService{
		ConvertFunc: func(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
			gotFrom, gotTo = from, to
			return decimal.RequireFromString("0.88"), nil
		},
	})

	rec, body := do(t, srv, http.MethodGet, "/api/v1/convert?from=eur&to=%20gbp")

	require.Equal(t, http.StatusOK, rec.Code)
	var result model.ConversionResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.Equal(t, model.EUR, result.From)
	assert.Equal(t, model.GBP, result.To)
	assert.Equal(t, model.EUR, gotFrom)
	assert.Equal(t, model.GBP, gotTo)
}

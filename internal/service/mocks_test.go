package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"currency-rate-service/internal/domain/model"
)

type MockRateProvider struct {
	FetchRatesFunc func(ctx context.Context) (map[model.Currency]*model.Rate, error)
}

func (m *MockRateProvider) FetchRates(ctx context.Context) (map[model.Currency]*model.Rate, error) {
	return m.FetchRatesFunc(ctx)
}

// fakeRateCache is an in-memory ports.RateCache with a controllable remaining
// TTL per code.
type fakeRateCache struct {
	mu      sync.Mutex
	rates   map[model.Currency]*model.Rate
	ttls    map[model.Currency]time.Duration
	puts    int
	putErr  map[model.Currency]error
	getErr  error
	ttlErr  error
	listErr error
}

func newFakeRateCache() *fakeRateCache {
	return &fakeRateCache{
		rates:  make(map[model.Currency]*model.Rate),
		ttls:   make(map[model.Currency]time.Duration),
		putErr: make(map[model.Currency]error),
	}
}

func (f *fakeRateCache) seed(code model.Currency, value string, ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rates[code] = &model.Rate{
		TargetCurrency: code,
		Value:          decimal.RequireFromString(value),
		BaseCurrency:   model.USD,
		ObservedAt:     time.Now().UTC(),
	}
	f.ttls[code] = ttl
}

func (f *fakeRateCache) Get(_ context.Context, code model.Currency) (*model.Rate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rate, ok := f.rates[code]
	if !ok {
		return nil, model.ErrRateNotCached
	}
	return rate, nil
}

func (f *fakeRateCache) Put(_ context.Context, rate *model.Rate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.putErr[rate.TargetCurrency]; err != nil {
		return err
	}
	f.puts++
	f.rates[rate.TargetCurrency] = rate
	f.ttls[rate.TargetCurrency] = time.Hour
	return nil
}

func (f *fakeRateCache) ListKeys(_ context.Context) ([]model.Currency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	keys := make([]model.Currency, 0, len(f.rates))
	for code := range f.rates {
		keys = append(keys, code)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (f *fakeRateCache) RemainingTTL(_ context.Context, code model.Currency) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ttlErr != nil {
		return 0, f.ttlErr
	}
	ttl, ok := f.ttls[code]
	if !ok {
		return 0, model.ErrRateNotCached
	}
	return ttl, nil
}

func (f *fakeRateCache) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func ratesOf(values map[model.Currency]string) map[model.Currency]*model.Rate {
	out := make(map[model.Currency]*model.Rate, len(values))
	for code, v := range values {
		out[code] = &model.Rate{
			TargetCurrency: code,
			Value:          decimal.RequireFromString(v),
			BaseCurrency:   model.USD,
			ObservedAt:     time.Now().UTC(),
		}
	}
	return out
}

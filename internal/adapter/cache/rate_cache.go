package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/pkg/logger"
)

// RateCache stores one Rate per target currency in the currency_rates
// namespace of a KeyValueStore.
type RateCache struct {
	store ports.KeyValueStore
	log   *logger.Logger
}

func NewRateCache(store ports.KeyValueStore, log *logger.Logger) *RateCache {
	return &RateCache{
		store: store,
		log:   log,
	}
}

func (c *RateCache) Get(ctx context.Context, code model.Currency) (*model.Rate, error) {
	data, err := c.store.Get(ctx, NamespaceCurrencyRates, code.String())
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", model.ErrRateNotCached, code)
	}
	if err != nil {
		return nil, err
	}

	var rate model.Rate
	if err := json.Unmarshal(data, &rate); err != nil {
		return nil, fmt.Errorf("decode cached rate %s: %w", code, err)
	}

	return &rate, nil
}

func (c *RateCache) Put(ctx context.Context, rate *model.Rate) error {
	if rate == nil {
		return fmt.Errorf("%w: nil rate", model.ErrInvalidRate)
	}
	if !rate.Value.IsPositive() {
		return fmt.Errorf("%w: %s", model.ErrInvalidRate, rate)
	}

	data, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("encode rate %s: %w", rate.TargetCurrency, err)
	}

	return c.store.Set(ctx, NamespaceCurrencyRates, rate.TargetCurrency.String(), data)
}

func (c *RateCache) ListKeys(ctx context.Context) ([]model.Currency, error) {
	keys, err := c.store.Keys(ctx, NamespaceCurrencyRates)
	if err != nil {
		return nil, err
	}

	codes := make([]model.Currency, 0, len(keys))
	for _, key := range keys {
		codes = append(codes, model.Currency(key))
	}
	return codes, nil
}

func (c *RateCache) RemainingTTL(ctx context.Context, code model.Currency) (time.Duration, error) {
	ttl, err := c.store.TTL(ctx, NamespaceCurrencyRates, code.String())
	if errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", model.ErrRateNotCached, code)
	}
	return ttl, err
}

var _ ports.RateCache = (*RateCache)(nil)

const refreshStatusKey = "refresh_status"

// StatusStore persists the last refresh summary in the default namespace.
type StatusStore struct {
	store ports.KeyValueStore
}

func NewStatusStore(store ports.KeyValueStore) *StatusStore {
	return &StatusStore{store: store}
}

func (s *StatusStore) Save(ctx context.Context, status model.RefreshStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, NamespaceDefault, refreshStatusKey, data)
}

// Load returns ok=false when no status has been saved yet.
func (s *StatusStore) Load(ctx context.Context) (model.RefreshStatus, bool, error) {
	var status model.RefreshStatus

	data, err := s.store.Get(ctx, NamespaceDefault, refreshStatusKey)
	if errors.Is(err, ErrNotFound) {
		return status, false, nil
	}
	if err != nil {
		return status, false, err
	}

	if err := json.Unmarshal(data, &status); err != nil {
		return status, false, fmt.Errorf("decode refresh status: %w", err)
	}
	return status, true, nil
}

package ports

import (
	"context"
	"time"

	"currency-rate-service/internal/domain/model"
)

// RateCache is the single source of truth for conversion lookups.
type RateCache interface {
	// Get fails with model.ErrRateNotCached when code has no entry.
	Get(ctx context.Context, code model.Currency) (*model.Rate, error)
	// Put overwrites the entry for rate.TargetCurrency and resets its TTL.
	Put(ctx context.Context, rate *model.Rate) error
	ListKeys(ctx context.Context) ([]model.Currency, error)
	// RemainingTTL is <= 0 once the entry has expired.
	RemainingTTL(ctx context.Context, code model.Currency) (time.Duration, error)
}

// KeyValueStore is a byte store with per-namespace TTL policies.
type KeyValueStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Keys(ctx context.Context, namespace string) ([]string, error)
	TTL(ctx context.Context, namespace, key string) (time.Duration, error)
	Close() error
}

// RefreshStatusStore persists the last refresh summary across restarts.
type RefreshStatusStore interface {
	Save(ctx context.Context, status model.RefreshStatus) error
	// Load returns ok=false when nothing was saved yet.
	Load(ctx context.Context) (status model.RefreshStatus, ok bool, err error)
}

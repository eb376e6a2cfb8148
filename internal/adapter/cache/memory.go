package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/pkg/logger"
)

type MemoryCache struct {
	cacheMap map[string]map[string]*entry
	mutex    sync.RWMutex
	policy   TTLPolicy
	now      func() time.Time
	log      *logger.Logger
}

type entry struct {
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now as the cache's clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// NewMemoryCache keeps expired entries readable until they are overwritten, so
// callers see staleness through TTL rather than through absence.
func NewMemoryCache(policy TTLPolicy, log *logger.Logger, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		cacheMap: make(map[string]map[string]*entry),
		policy:   policy,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, found := c.cacheMap[namespace][key]
	if !found {
		c.log.Debug("Cache miss", "namespace", namespace, "key", key)
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}

	if c.now().Sub(e.insertedAt) >= e.ttl {
		c.log.Debug("Serving expired cache entry", "namespace", namespace, "key", key)
	}
	return e.value, nil
}

func (c *MemoryCache) Set(ctx context.Context, namespace, key string, value []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ns, ok := c.cacheMap[namespace]
	if !ok {
		ns = make(map[string]*entry)
		c.cacheMap[namespace] = ns
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	ns[key] = &entry{
		value:      stored,
		insertedAt: c.now(),
		ttl:        c.policy.For(namespace),
	}
	c.log.Debug("Cache set", "namespace", namespace, "key", key)

	return nil
}

func (c *MemoryCache) Keys(ctx context.Context, namespace string) ([]string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	keys := make([]string, 0, len(c.cacheMap[namespace]))
	for key := range c.cacheMap[namespace] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}

func (c *MemoryCache) TTL(ctx context.Context, namespace, key string) (time.Duration, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, found := c.cacheMap[namespace][key]
	if !found {
		return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}

	return e.ttl - c.now().Sub(e.insertedAt), nil
}

func (c *MemoryCache) Close() error {
	return nil
}

var _ ports.KeyValueStore = (*MemoryCache)(nil)

package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/pkg/logger"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache stores entries with native Redis expiry, so an expired entry is
// reported as absent.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	policy    TTLPolicy
	log       *logger.Logger
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func NewRedisCache(client *redis.Client, keyPrefix string, policy TTLPolicy, log *logger.Logger) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "rates:"
	}
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		policy:    policy,
		log:       log,
	}
}

func (r *RedisCache) key(namespace, key string) string {
	return r.keyPrefix + namespace + ":" + key
}

func (r *RedisCache) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debug("Redis cache miss", "namespace", namespace, "key", key)
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s/%s: %w", namespace, key, err)
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, namespace, key string, value []byte) error {
	ttl := r.policy.For(namespace)
	if err := r.client.Set(ctx, r.key(namespace, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s/%s: %w", namespace, key, err)
	}
	r.log.Debug("Redis cache set", "namespace", namespace, "key", key, "ttl", ttl)
	return nil
}

func (r *RedisCache) Keys(ctx context.Context, namespace string) ([]string, error) {
	prefix := r.key(namespace, "")

	var keys []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", namespace, err)
	}
	sort.Strings(keys)

	return keys, nil
}

func (r *RedisCache) TTL(ctx context.Context, namespace, key string) (time.Duration, error) {
	ttl, err := r.client.PTTL(ctx, r.key(namespace, key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl %s/%s: %w", namespace, key, err)
	}

	// -2: no such key, -1: key without expiry.
	switch ttl {
	case -2:
		return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, key)
	case -1:
		return r.policy.For(namespace), nil
	}
	return ttl, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

var _ ports.KeyValueStore = (*RedisCache)(nil)

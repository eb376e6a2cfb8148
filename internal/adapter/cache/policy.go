package cache

import (
	"errors"
	"time"
)

const (
	NamespaceDefault       = "default"
	NamespaceCurrencyRates = "currency_rates"
)

var ErrNotFound = errors.New("cache key not found")

// TTLPolicy maps namespaces to entry lifetimes. Namespaces without an
// override use Default.
type TTLPolicy struct {
	Default    time.Duration
	Namespaces map[string]time.Duration
}

// NewTTLPolicy builds the two policies the service uses: a long default and a
// shorter one for currency rates.
func NewTTLPolicy(defaultTTL, rateTTL time.Duration) TTLPolicy {
	return TTLPolicy{
		Default: defaultTTL,
		Namespaces: map[string]time.Duration{
			NamespaceCurrencyRates: rateTTL,
		},
	}
}

func (p TTLPolicy) For(namespace string) time.Duration {
	if ttl, ok := p.Namespaces[namespace]; ok {
		return ttl
	}
	return p.Default
}

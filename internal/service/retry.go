package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/pkg/logger"
)

// RetryConfig bounds an exponential backoff: the delay before attempt n+1 is
// min(InitialDelay * Multiplier^(n-1), MaxDelay).
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

type RetryPolicy struct {
	cfg RetryConfig
	log *logger.Logger
}

func NewRetryPolicy(cfg RetryConfig, log *logger.Logger) *RetryPolicy {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &RetryPolicy{cfg: cfg, log: log}
}

func (p *RetryPolicy) Config() RetryConfig {
	return p.cfg
}

func (p *RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialDelay
	b.Multiplier = p.cfg.Multiplier
	b.MaxInterval = p.cfg.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithMaxRetries(b, uint64(p.cfg.MaxAttempts-1))
}

// Schedule lists the sleeps between consecutive attempts.
func (p *RetryPolicy) Schedule() []time.Duration {
	b := p.newBackOff()
	delays := make([]time.Duration, 0, p.cfg.MaxAttempts-1)
	for {
		next := b.NextBackOff()
		if next == backoff.Stop {
			return delays
		}
		delays = append(delays, next)
	}
}

// Execute runs op until it succeeds or the policy gives up. Exhaustion is
// reported as model.ErrRetryExhausted wrapping the last failure; a cancelled
// ctx is returned as is.
func Execute[T any](ctx context.Context, p *RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	attempt := 0

	result, err := backoff.RetryNotifyWithData(
		func() (T, error) {
			attempt++
			return op(ctx)
		},
		backoff.WithContext(p.newBackOff(), ctx),
		func(err error, next time.Duration) {
			p.log.Warn("Attempt failed, backing off",
				"attempt", attempt,
				"max_attempts", p.cfg.MaxAttempts,
				"next_delay", next,
				"error", err,
			)
		},
	)
	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return result, err
	}

	return result, fmt.Errorf("%w after %d attempts: %w", model.ErrRetryExhausted, attempt, err)
}

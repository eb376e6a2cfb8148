package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/internal/metrics"
	"currency-rate-service/pkg/logger"
)

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerStartup   = "startup"
)

var errNothingStored = errors.New("no fetched rate could be stored")

// RefreshCoordinator is the only writer of the rate cache. Concurrent triggers
// share a single in-flight cycle, which runs under the coordinator's lifetime
// rather than any one caller's context.
type RefreshCoordinator struct {
	provider    ports.RateProvider
	cache       ports.RateCache
	statusStore ports.RefreshStatusStore
	retry       *RetryPolicy
	metrics     *metrics.Metrics
	log         *logger.Logger

	schedule string
	cron     *cron.Cron
	group    singleflight.Group
	now      func() time.Time

	lifetime context.Context
	shutdown context.CancelFunc

	mu     sync.RWMutex
	status model.RefreshStatus
}

func NewRefreshCoordinator(
	provider ports.RateProvider,
	cache ports.RateCache,
	statusStore ports.RefreshStatusStore,
	retry *RetryPolicy,
	schedule string,
	m *metrics.Metrics,
	log *logger.Logger,
) *RefreshCoordinator {
	lifetime, shutdown := context.WithCancel(context.Background())
	return &RefreshCoordinator{
		lifetime:    lifetime,
		shutdown:    shutdown,
		provider:    provider,
		cache:       cache,
		statusStore: statusStore,
		retry:       retry,
		metrics:     m,
		log:         log,
		schedule:    schedule,
		now:         func() time.Time { return time.Now().UTC() },
		status:      model.RefreshStatus{State: model.RefreshIdle},
	}
}

// Start registers the scheduled trigger. Cancelling ctx has the same effect on
// running cycles as Stop. An empty schedule disables the scheduler.
func (c *RefreshCoordinator) Start(ctx context.Context) error {
	context.AfterFunc(ctx, c.shutdown)

	if c.schedule == "" {
		c.log.Info("Scheduled refresh disabled")
		return nil
	}

	cl := cronLogger{log: c.log}
	c.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	_, err := c.cron.AddFunc(c.schedule, func() {
		if _, err := c.refresh(c.lifetime, TriggerScheduled); err != nil {
			c.log.Error("Scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", c.schedule, err)
	}

	c.cron.Start()
	c.log.Info("Scheduled refresh started", "schedule", c.schedule)
	return nil
}

// Stop cancels any running cycle, halts the scheduler and waits for a running
// scheduled job to return.
func (c *RefreshCoordinator) Stop() {
	c.shutdown()
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
	c.log.Info("Scheduled refresh stopped")
}

func (c *RefreshCoordinator) UpdateRatesFromProvider(ctx context.Context) (model.RefreshStatus, error) {
	return c.refresh(ctx, TriggerManual)
}

func (c *RefreshCoordinator) Status() model.RefreshStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// StartupCheck refreshes when the cache is empty or any cached rate has
// expired. Fresh caches are left alone. It reports whether a refresh ran.
func (c *RefreshCoordinator) StartupCheck(ctx context.Context) (bool, error) {
	c.restoreStatus(ctx)

	stale, reason := c.needsRefresh(ctx)
	if !stale {
		c.log.Info("Cached rates are fresh, skipping startup refresh")
		return false, nil
	}

	c.log.Info("Refreshing rates at startup", "reason", reason)
	_, err := c.refresh(ctx, TriggerStartup)
	return true, err
}

func (c *RefreshCoordinator) needsRefresh(ctx context.Context) (bool, string) {
	keys, err := c.cache.ListKeys(ctx)
	if err != nil {
		c.log.Warn("Could not list cached rates", "error", err)
		return true, "cache unreadable"
	}
	if len(keys) == 0 {
		return true, "cache empty"
	}
	// Stores that drop expired keys report expiry as absence.
	if expected := c.Status().Stored; len(keys) < expected {
		return true, fmt.Sprintf("%d of %d rates missing", expected-len(keys), expected)
	}

	for _, code := range keys {
		ttl, err := c.cache.RemainingTTL(ctx, code)
		if err != nil {
			c.log.Warn("Could not read remaining TTL", "code", code, "error", err)
			return true, "ttl unreadable for " + code.String()
		}
		if ttl <= 0 {
			return true, "expired rate for " + code.String()
		}
	}
	return false, ""
}

func (c *RefreshCoordinator) restoreStatus(ctx context.Context) {
	if c.statusStore == nil {
		return
	}

	saved, ok, err := c.statusStore.Load(ctx)
	if err != nil {
		c.log.Warn("Could not load refresh status", "error", err)
		return
	}
	if !ok {
		return
	}

	saved.State = model.RefreshIdle
	c.mu.Lock()
	c.status = saved
	c.mu.Unlock()
}

// refresh joins or starts the shared cycle. ctx only bounds how long this
// caller waits; the cycle itself keeps going for the other callers.
func (c *RefreshCoordinator) refresh(ctx context.Context, trigger string) (model.RefreshStatus, error) {
	ch := c.group.DoChan("refresh", func() (interface{}, error) {
		return c.runCycle(c.lifetime, trigger)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.log.Debug("Joined in-flight refresh", "trigger", trigger)
		}
		return res.Val.(model.RefreshStatus), res.Err
	case <-ctx.Done():
		c.log.Warn("Stopped waiting for refresh", "trigger", trigger, "error", ctx.Err())
		return c.Status(), ctx.Err()
	}
}

func (c *RefreshCoordinator) runCycle(ctx context.Context, trigger string) (model.RefreshStatus, error) {
	started := c.now()
	c.mu.Lock()
	c.status.State = model.RefreshFetching
	c.status.Trigger = trigger
	c.status.LastAttempt = started
	c.mu.Unlock()

	c.log.Info("Refreshing rates from provider", "trigger", trigger)

	rates, err := Execute(ctx, c.retry, func(ctx context.Context) (map[model.Currency]*model.Rate, error) {
		c.metrics.ProviderFetchAttempts.Inc()
		return c.provider.FetchRates(ctx)
	})
	if err != nil {
		c.log.Error("Refresh aborted, cache keeps prior values", "trigger", trigger, "error", err)
		return c.finish(ctx, trigger, model.RefreshFailed, 0, 0, 0, err), err
	}

	codes := make([]model.Currency, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	stored, skipped := 0, 0
	for _, code := range codes {
		if err := c.cache.Put(ctx, rates[code]); err != nil {
			c.log.Warn("Skipping rate that could not be cached", "code", code, "error", err)
			skipped++
			continue
		}
		stored++
	}

	c.metrics.RatesStoredTotal.Add(float64(stored))
	c.metrics.RatesSkippedTotal.Add(float64(skipped))
	if keys, err := c.cache.ListKeys(ctx); err == nil {
		c.metrics.CachedRates.Set(float64(len(keys)))
	}

	if stored == 0 {
		c.log.Error("Refresh stored no rates", "trigger", trigger, "fetched", len(rates))
		return c.finish(ctx, trigger, model.RefreshFailed, len(rates), 0, skipped, errNothingStored), errNothingStored
	}

	c.log.Info("Rates refreshed",
		"trigger", trigger,
		"fetched", len(rates),
		"stored", stored,
		"skipped", skipped,
		"duration", c.now().Sub(started),
	)
	return c.finish(ctx, trigger, model.RefreshPartiallyPopulated, len(rates), stored, skipped, nil), nil
}

func (c *RefreshCoordinator) finish(ctx context.Context, trigger string, outcome model.RefreshState, fetched, stored, skipped int, cause error) model.RefreshStatus {
	c.mu.Lock()
	c.status.State = model.RefreshIdle
	c.status.Outcome = outcome
	c.status.Trigger = trigger
	c.status.Fetched = fetched
	c.status.Stored = stored
	c.status.Skipped = skipped
	c.status.LastError = ""
	if cause != nil {
		c.status.LastError = cause.Error()
	} else {
		c.status.LastSuccess = c.now()
		c.metrics.LastRefreshSuccessTime.Set(float64(c.status.LastSuccess.Unix()))
	}
	status := c.status
	c.mu.Unlock()

	c.metrics.RefreshCyclesTotal.WithLabelValues(trigger, string(outcome)).Inc()

	if c.statusStore != nil {
		if err := c.statusStore.Save(context.WithoutCancel(ctx), status); err != nil {
			c.log.Warn("Could not persist refresh status", "error", err)
		}
	}
	return status
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

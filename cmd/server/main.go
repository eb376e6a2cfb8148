package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"currency-rate-service/internal/adapter/cache"
	httpRouter "currency-rate-service/internal/adapter/http"
	"currency-rate-service/internal/adapter/messaging"
	"currency-rate-service/internal/adapter/repository"
	"currency-rate-service/internal/adapter/rpc"
	"currency-rate-service/internal/config"
	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/internal/metrics"
	"currency-rate-service/internal/service"
	"currency-rate-service/pkg/logger"
	"currency-rate-service/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	log := logger.NewLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log = logger.NewLogger(cfg.Log.Level)
	defer func() { _ = log.Sync() }()
	log.Info("Starting currency rate service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)

	store, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize cache store", "error", err, "driver", cfg.Cache.Driver)
		os.Exit(1)
	}
	defer store.Close()

	rateCache := cache.NewRateCache(store, log)
	statusStore := cache.NewStatusStore(store)

	provider := repository.NewExchangeAPI(
		cfg.ExchangeAPI.BaseURL,
		cfg.ExchangeAPI.APIKey,
		model.Currency(cfg.ExchangeAPI.BaseCurrency),
		cfg.ExchangeAPI.Timeout,
		log,
	)

	retry := service.NewRetryPolicy(service.RetryConfig{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		Multiplier:   cfg.Retry.Multiplier,
		MaxDelay:     cfg.Retry.MaxDelay,
	}, log)

	engine := service.NewConversionEngine(rateCache, int32(cfg.Conversion.Scale), cfg.RoundingMode(), log)
	coordinator := service.NewRefreshCoordinator(provider, rateCache, statusStore, retry, cfg.Refresh.Schedule, appMetrics, log)
	exchangeService := service.NewExchangeService(engine, coordinator, rateCache, appMetrics, log)

	handler := httpRouter.NewHandler(exchangeService, log)
	router := httpRouter.NewRouter(handler, log, appMetrics, registry)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var workers sync.WaitGroup

	bus, err := newBus(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize message bus", "error", err, "driver", cfg.Bus.Driver)
		os.Exit(1)
	}
	defer bus.Close()

	if cfg.RPC.ResponderEnabled {
		responder := rpc.NewResponder(bus, engine, cfg.RPC.RequestTopic, cfg.RPC.GroupID, appMetrics, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := responder.Run(ctx); err != nil {
				log.Error("Conversion responder stopped", "error", err)
			}
		}()
	}

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	if cfg.Refresh.StartupCheck {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if _, err := coordinator.StartupCheck(ctx); err != nil {
				log.Error("Startup refresh failed", "error", err)
			}
		}()
	}

	if err := coordinator.Start(ctx); err != nil {
		log.Error("Failed to start scheduled refresh", "error", err)
		os.Exit(1)
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	cancel()
	coordinator.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	workers.Wait()

	log.Info("Server exited")
}

func newStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.KeyValueStore, error) {
	policy := cache.NewTTLPolicy(
		utils.HoursToDuration(cfg.Cache.DefaultTTLHours),
		utils.HoursToDuration(cfg.Cache.RateTTLHours),
	)

	switch cfg.Cache.Driver {
	case config.DriverRedis:
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		log.Info("Using redis cache", "addr", cfg.Cache.RedisAddr)
		return cache.NewRedisCache(client, cfg.Cache.RedisKeyPrefix, policy, log), nil
	default:
		log.Info("Using in-memory cache")
		return cache.NewMemoryCache(policy, log), nil
	}
}

func newBus(ctx context.Context, cfg *config.Config, log *logger.Logger) (ports.MessageBus, error) {
	switch cfg.Bus.Driver {
	case config.DriverKafka:
		bus, err := messaging.NewKafkaBus(messaging.KafkaConfig{Brokers: cfg.Bus.Brokers}, log)
		if err != nil {
			return nil, err
		}
		if err := bus.Ping(ctx); err != nil {
			_ = bus.Close()
			return nil, err
		}
		log.Info("Using kafka bus", "brokers", cfg.Bus.Brokers)
		return bus, nil
	default:
		log.Info("Using in-process bus")
		return messaging.NewMemoryBus(log), nil
	}
}

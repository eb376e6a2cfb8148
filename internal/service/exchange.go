package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/internal/metrics"
	"currency-rate-service/pkg/logger"
)

// ExchangeService is what the HTTP surface talks to. Reads go to the cache,
// writes only through the refresh coordinator.
type ExchangeService struct {
	converter ports.Converter
	refresher ports.RateRefresher
	cache     ports.RateCache
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewExchangeService(converter ports.Converter, refresher ports.RateRefresher, cache ports.RateCache, m *metrics.Metrics, log *logger.Logger) *ExchangeService {
	return &ExchangeService{
		converter: converter,
		refresher: refresher,
		cache:     cache,
		metrics:   m,
		log:       log,
	}
}

func (s *ExchangeService) Convert(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	from, err := model.ParseCurrency(from.String())
	if err != nil {
		s.metrics.ConversionsTotal.WithLabelValues("invalid").Inc()
		return decimal.Decimal{}, err
	}
	to, err = model.ParseCurrency(to.String())
	if err != nil {
		s.metrics.ConversionsTotal.WithLabelValues("invalid").Inc()
		return decimal.Decimal{}, err
	}

	if !amount.IsPositive() {
		s.metrics.ConversionsTotal.WithLabelValues("invalid").Inc()
		return decimal.Decimal{}, model.ErrInvalidAmount
	}

	converted, err := s.converter.Convert(ctx, from, to, amount)
	if err != nil {
		s.metrics.ConversionsTotal.WithLabelValues(ConversionOutcome(err)).Inc()
		s.log.Warn("Conversion failed", "from", from, "to", to, "amount", amount, "error", err)
		return decimal.Decimal{}, err
	}

	s.metrics.ConversionsTotal.WithLabelValues("ok").Inc()
	s.log.Debug("Converted amount", "from", from, "to", to, "amount", amount, "result", converted)
	return converted, nil
}

func (s *ExchangeService) GetRate(ctx context.Context, code model.Currency) (*model.Rate, error) {
	code, err := model.ParseCurrency(code.String())
	if err != nil {
		return nil, err
	}

	s.metrics.RateRequestsTotal.Inc()
	rate, err := s.cache.Get(ctx, code)
	if err != nil {
		return nil, &model.RateUnavailableError{Code: code, Cause: err}
	}
	return rate, nil
}

// ListRates returns every cached rate ordered by code. Entries that disappear
// between listing and reading are left out.
func (s *ExchangeService) ListRates(ctx context.Context) ([]*model.Rate, error) {
	codes, err := s.cache.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached rates: %w", err)
	}

	s.metrics.RateRequestsTotal.Inc()
	rates := make([]*model.Rate, 0, len(codes))
	for _, code := range codes {
		rate, err := s.cache.Get(ctx, code)
		if errors.Is(err, model.ErrRateNotCached) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read cached rate %s: %w", code, err)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

func (s *ExchangeService) UpdateRatesFromProvider(ctx context.Context) (model.RefreshStatus, error) {
	return s.refresher.UpdateRatesFromProvider(ctx)
}

func (s *ExchangeService) Status() model.RefreshStatus {
	return s.refresher.Status()
}

// ConversionOutcome labels a conversion error for metrics.
func ConversionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrCurrencyRateUnavailable):
		return "rate_unavailable"
	case errors.Is(err, model.ErrConversionArithmetic):
		return "arithmetic"
	case errors.Is(err, model.ErrConversionRPCTimeout):
		return "timeout"
	case errors.Is(err, model.ErrInvalidCurrency), errors.Is(err, model.ErrInvalidAmount):
		return "invalid"
	default:
		return "error"
	}
}

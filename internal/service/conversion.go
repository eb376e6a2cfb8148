package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/pkg/logger"
)

// guardDigits is how many places past the target scale the quotient is
// computed before rounding.
const guardDigits = 16

// ConversionEngine converts amounts through base-relative rates read from the
// cache. It never writes to the cache and never retries a lookup.
type ConversionEngine struct {
	cache ports.RateCache
	scale int32
	mode  model.RoundingMode
	log   *logger.Logger
}

func NewConversionEngine(cache ports.RateCache, scale int32, mode model.RoundingMode, log *logger.Logger) *ConversionEngine {
	return &ConversionEngine{
		cache: cache,
		scale: scale,
		mode:  mode,
		log:   log,
	}
}

// Convert returns amount * rate(to) / rate(from) rounded to the configured
// scale. Same-currency conversions return amount untouched.
func (e *ConversionEngine) Convert(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	if from.Same(to) {
		return amount, nil
	}

	fromRate, err := e.lookup(ctx, from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toRate, err := e.lookup(ctx, to)
	if err != nil {
		return decimal.Decimal{}, err
	}

	return e.compute(amount, fromRate.Value, toRate.Value)
}

func (e *ConversionEngine) lookup(ctx context.Context, code model.Currency) (*model.Rate, error) {
	normalized, err := model.ParseCurrency(code.String())
	if err != nil {
		return nil, &model.RateUnavailableError{Code: code, Cause: err}
	}

	rate, err := e.cache.Get(ctx, normalized)
	if err != nil {
		if !errors.Is(err, model.ErrRateNotCached) {
			e.log.Error("Rate lookup failed", "code", normalized, "error", err)
		}
		return nil, &model.RateUnavailableError{Code: normalized, Cause: err}
	}
	return rate, nil
}

func (e *ConversionEngine) compute(amount, fromRate, toRate decimal.Decimal) (result decimal.Decimal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", model.ErrConversionArithmetic, r)
		}
	}()

	if fromRate.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("%w: zero source rate", model.ErrConversionArithmetic)
	}

	numerator := amount.Mul(toRate)
	precision := e.scale + guardDigits
	quotient, remainder := numerator.QuoRem(fromRate, precision)

	// A non-zero remainder means the quotient was truncated; nudge it past the
	// truncation point so directed rounding modes see an inexact value.
	if !remainder.IsZero() {
		sticky := decimal.New(1, -(precision + 1))
		if numerator.Sign()*fromRate.Sign() < 0 {
			sticky = sticky.Neg()
		}
		quotient = quotient.Add(sticky)
	}

	return e.mode.Apply(quotient, e.scale), nil
}

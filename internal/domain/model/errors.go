package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRate             = errors.New("rate must be positive")
	ErrInvalidCurrency         = errors.New("invalid currency")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrProviderEmptyResponse   = errors.New("provider returned no rates")
	ErrRetryExhausted          = errors.New("retry attempts exhausted")
	ErrRateNotCached           = errors.New("rate not cached")
	ErrCurrencyRateUnavailable = errors.New("currency rate unavailable")
	ErrConversionArithmetic    = errors.New("conversion arithmetic error")
	ErrConversionRPCTimeout    = errors.New("conversion rpc timed out")
	ErrRemoteConversion        = errors.New("remote conversion failed")
)

// RateUnavailableError names the currency whose rate is missing.
type RateUnavailableError struct {
	Code  Currency
	Cause error
}

func (e *RateUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrCurrencyRateUnavailable, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s", ErrCurrencyRateUnavailable, e.Code)
}

func (e *RateUnavailableError) Is(target error) bool {
	return target == ErrCurrencyRateUnavailable
}

func (e *RateUnavailableError) Unwrap() error {
	return e.Cause
}

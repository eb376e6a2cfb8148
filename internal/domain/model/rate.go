package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is the multiplier from BaseCurrency to TargetCurrency. Values are
// immutable once built by NewRate.
type Rate struct {
	TargetCurrency Currency        `json:"target_currency"`
	Value          decimal.Decimal `json:"rate"`
	BaseCurrency   Currency        `json:"base_currency"`
	ObservedAt     time.Time       `json:"observed_at"`
}

func NewRate(target Currency, value decimal.Decimal, base Currency, observedAt time.Time) (*Rate, error) {
	if !value.IsPositive() {
		return nil, fmt.Errorf("%w: %s/%s = %s", ErrInvalidRate, base, target, value.String())
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: target %q", ErrInvalidCurrency, target)
	}
	if !base.IsValid() {
		return nil, fmt.Errorf("%w: base %q", ErrInvalidCurrency, base)
	}

	return &Rate{
		TargetCurrency: target,
		Value:          value,
		BaseCurrency:   base,
		ObservedAt:     observedAt,
	}, nil
}

// Equal compares target, value and base. ObservedAt is ignored.
func (r *Rate) Equal(other *Rate) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.TargetCurrency == other.TargetCurrency &&
		r.BaseCurrency == other.BaseCurrency &&
		r.Value.Equal(other.Value)
}

func (r *Rate) String() string {
	return fmt.Sprintf("%s/%s=%s", r.BaseCurrency, r.TargetCurrency, r.Value.String())
}

// ConversionRequest is the bus payload asking for a conversion. Correlation
// travels in message headers, not here.
type ConversionRequest struct {
	From   Currency        `json:"from"`
	To     Currency        `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// ConversionResponse answers a ConversionRequest. On failure ConvertedAmount is
// zero and Error/ErrorCode are set. Currency names the missing rate when the
// failure is an unavailable rate.
type ConversionResponse struct {
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	Error           string          `json:"error,omitempty"`
	ErrorCode       string          `json:"errorCode,omitempty"`
	Currency        Currency        `json:"currency,omitempty"`
}

type ConversionResult struct {
	From            Currency        `json:"from"`
	To              Currency        `json:"to"`
	Amount          decimal.Decimal `json:"amount"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
}

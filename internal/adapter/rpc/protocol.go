package rpc

import (
	"errors"
	"fmt"

	"currency-rate-service/internal/domain/model"
)

const (
	HeaderReplyTopic    = "reply-topic"
	HeaderCorrelationID = "correlation-id"
)

// Error codes carried in model.ConversionResponse.ErrorCode.
const (
	CodeRateUnavailable = "RATE_UNAVAILABLE"
	CodeArithmetic      = "ARITHMETIC"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInternal        = "INTERNAL"
)

func ErrorCode(err error) string {
	switch {
	case errors.Is(err, model.ErrCurrencyRateUnavailable):
		return CodeRateUnavailable
	case errors.Is(err, model.ErrConversionArithmetic):
		return CodeArithmetic
	case errors.Is(err, model.ErrInvalidCurrency), errors.Is(err, model.ErrInvalidAmount):
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

// responseError turns a failed response back into a local error.
func responseError(resp model.ConversionResponse) error {
	if resp.ErrorCode == "" && resp.Error == "" {
		return nil
	}

	switch resp.ErrorCode {
	case CodeRateUnavailable:
		if resp.Currency != "" {
			return &model.RateUnavailableError{Code: resp.Currency}
		}
		return fmt.Errorf("%w: %s", model.ErrCurrencyRateUnavailable, resp.Error)
	case CodeArithmetic:
		return fmt.Errorf("%w: %s", model.ErrConversionArithmetic, resp.Error)
	default:
		return fmt.Errorf("%w: %s: %s", model.ErrRemoteConversion, resp.ErrorCode, resp.Error)
	}
}

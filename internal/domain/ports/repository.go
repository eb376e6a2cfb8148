package ports

import (
	"context"

	"currency-rate-service/internal/domain/model"
)

// RateProvider fetches one snapshot of rates from an external source.
type RateProvider interface {
	FetchRates(ctx context.Context) (map[model.Currency]*model.Rate, error)
}

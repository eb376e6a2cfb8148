package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"currency-rate-service/internal/domain/model"
)

type Converter interface {
	Convert(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error)
}

type RateRefresher interface {
	UpdateRatesFromProvider(ctx context.Context) (model.RefreshStatus, error)
	Status() model.RefreshStatus
}

type ExchangeService interface {
	Converter
	RateRefresher
	GetRate(ctx context.Context, code model.Currency) (*model.Rate, error)
	ListRates(ctx context.Context) ([]*model.Rate, error)
}

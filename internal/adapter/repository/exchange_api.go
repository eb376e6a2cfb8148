package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/pkg/logger"
	"currency-rate-service/pkg/utils"
)

// ExchangeAPI fetches a rate snapshot from a single provider endpoint. It does
// not retry; callers wrap FetchRates in a retry policy.
type ExchangeAPI struct {
	providerURL  string
	apiKey       string
	baseCurrency model.Currency
	httpClient   *http.Client
	now          func() time.Time
	log          *logger.Logger
}

type exchangeAPIResponse struct {
	Date  string                     `json:"date"`
	Base  string                     `json:"base"`
	Rates map[string]json.RawMessage `json:"rates"`
}

func NewExchangeAPI(providerURL, apiKey string, baseCurrency model.Currency, timeout time.Duration, log *logger.Logger) *ExchangeAPI {
	return &ExchangeAPI{
		providerURL:  providerURL,
		apiKey:       apiKey,
		baseCurrency: baseCurrency,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
		log: log,
	}
}

func (e *ExchangeAPI) requestURL() (string, error) {
	u, err := url.Parse(e.providerURL)
	if err != nil {
		return "", fmt.Errorf("invalid provider url: %w", err)
	}

	q := u.Query()
	q.Set("apikey", e.apiKey)
	q.Set("base", e.baseCurrency.String())
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (e *ExchangeAPI) FetchRates(ctx context.Context) (map[model.Currency]*model.Rate, error) {
	reqURL, err := e.requestURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned non-OK status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, model.ErrProviderEmptyResponse
	}

	var apiResp exchangeAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(apiResp.Rates) == 0 {
		return nil, model.ErrProviderEmptyResponse
	}

	return e.parseRates(apiResp), nil
}

// parseRates skips entries that do not parse into a valid Rate.
func (e *ExchangeAPI) parseRates(apiResp exchangeAPIResponse) map[model.Currency]*model.Rate {
	base := e.baseCurrency
	if apiResp.Base != "" {
		if parsed, err := model.ParseCurrency(apiResp.Base); err == nil {
			base = parsed
		} else {
			e.log.Warn("Ignoring malformed base currency in provider response", "base", apiResp.Base)
		}
	}

	observedAt := e.now().UTC()
	if apiResp.Date != "" {
		if date, err := utils.ParseDate(apiResp.Date); err == nil {
			observedAt = date
		}
	}

	rates := make(map[model.Currency]*model.Rate, len(apiResp.Rates))
	for code, raw := range apiResp.Rates {
		target, err := model.ParseCurrency(code)
		if err != nil {
			e.log.Warn("Skipping rate with malformed currency code", "code", code)
			continue
		}

		value, err := parseDecimal(raw)
		if err != nil {
			e.log.Warn("Skipping unparseable rate", "code", code, "value", string(raw), "error", err)
			continue
		}

		rate, err := model.NewRate(target, value, base, observedAt)
		if err != nil {
			e.log.Warn("Skipping invalid rate", "code", code, "error", err)
			continue
		}
		rates[target] = rate
	}

	return rates
}

// parseDecimal accepts both "0.85" and 0.85.
func parseDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decimal.NewFromString(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

var _ ports.RateProvider = (*ExchangeAPI)(nil)

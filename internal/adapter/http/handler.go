package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/pkg/logger"
)

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type Handler struct {
	service ports.ExchangeService
	log     *logger.Logger
}

func NewHandler(service ports.ExchangeService, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) ConvertCurrencyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("from") == "" || q.Get("to") == "" {
		h.sendErrorResponse(w, http.StatusBadRequest, "from and to are required")
		return
	}
	from, err := model.ParseCurrency(q.Get("from"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	to, err := model.ParseCurrency(q.Get("to"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	// Amount defaults to one unit of the source currency.
	amount := decimal.NewFromInt(1)
	if raw := q.Get("amount"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			h.sendErrorResponse(w, http.StatusBadRequest, "amount must be a decimal number")
			return
		}
		amount = parsed
	}

	converted, err := h.service.Convert(r.Context(), from, to, amount)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendSuccessResponse(w, http.StatusOK, model.ConversionResult{
		From:            from,
		To:              to,
		Amount:          amount,
		ConvertedAmount: converted,
	})
}

func (h *Handler) ListRatesHandler(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.ListRates(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.sendSuccessResponse(w, http.StatusOK, rates)
}

func (h *Handler) GetRateHandler(w http.ResponseWriter, r *http.Request) {
	rate, err := h.service.GetRate(r.Context(), model.Currency(r.PathValue("code")))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.sendSuccessResponse(w, http.StatusOK, rate)
}

func (h *Handler) RefreshRatesHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.UpdateRatesFromProvider(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.sendSuccessResponse(w, http.StatusOK, status)
}

func (h *Handler) RefreshStatusHandler(w http.ResponseWriter, r *http.Request) {
	h.sendSuccessResponse(w, http.StatusOK, h.service.Status())
}

func (h *Handler) sendSuccessResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	h.writeJSON(w, statusCode, Response{Success: true, Data: data})
}

func (h *Handler) sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSON(w, statusCode, Response{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "error", err, "status_code", statusCode)
	}
}

// serviceErrors is checked in order. An empty message echoes the error text.
var serviceErrors = []struct {
	target  error
	status  int
	message string
}{
	{model.ErrInvalidCurrency, http.StatusBadRequest, "invalid currency"},
	{model.ErrInvalidAmount, http.StatusBadRequest, "invalid amount"},
	{model.ErrCurrencyRateUnavailable, http.StatusNotFound, ""},
	{model.ErrConversionArithmetic, http.StatusUnprocessableEntity, "conversion could not be computed"},
	{model.ErrRetryExhausted, http.StatusServiceUnavailable, "rate provider unavailable"},
	{model.ErrConversionRPCTimeout, http.StatusGatewayTimeout, "conversion timed out"},
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, "internal server error"
	for _, e := range serviceErrors {
		if errors.Is(err, e.target) {
			status, message = e.status, e.message
			if message == "" {
				message = err.Error()
			}
			break
		}
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("Service error", "error", err, "status_code", status)
	} else {
		h.log.Debug("Request rejected", "error", err, "status_code", status)
	}
	h.sendErrorResponse(w, status, message)
}

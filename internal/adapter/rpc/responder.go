package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/internal/metrics"
	"currency-rate-service/pkg/logger"
)

// Responder answers conversion requests from the bus. Every request that
// names a reply topic and correlation id gets exactly one reply, carrying an
// error code when the conversion failed.
type Responder struct {
	bus          ports.MessageBus
	converter    ports.Converter
	requestTopic string
	groupID      string
	metrics      *metrics.Metrics
	log          *logger.Logger
}

func NewResponder(bus ports.MessageBus, converter ports.Converter, requestTopic, groupID string, m *metrics.Metrics, log *logger.Logger) *Responder {
	return &Responder{
		bus:          bus,
		converter:    converter,
		requestTopic: requestTopic,
		groupID:      groupID,
		metrics:      m,
		log:          log.With("component", "rpc_responder"),
	}
}

// Run blocks until ctx is done.
func (r *Responder) Run(ctx context.Context) error {
	r.log.Info("Conversion responder started", "topic", r.requestTopic, "group_id", r.groupID)
	return r.bus.Subscribe(ctx, r.requestTopic, r.groupID, r.handle)
}

func (r *Responder) handle(ctx context.Context, msg ports.Message) error {
	replyTopic := msg.Headers[HeaderReplyTopic]
	id := msg.Headers[HeaderCorrelationID]
	if replyTopic == "" || id == "" {
		r.metrics.RPCRequestsTotal.WithLabelValues("responder", "dropped").Inc()
		r.log.Warn("Dropping request without reply headers", "topic", msg.Topic, "has_reply_topic", replyTopic != "", "has_correlation_id", id != "")
		return nil
	}

	resp := r.respond(ctx, msg.Value)
	if resp.ErrorCode != "" {
		r.metrics.RPCRequestsTotal.WithLabelValues("responder", resp.ErrorCode).Inc()
		r.log.Warn("Conversion request failed", "correlation_id", id, "code", resp.ErrorCode, "error", resp.Error)
	} else {
		r.metrics.RPCRequestsTotal.WithLabelValues("responder", "ok").Inc()
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode conversion response: %w", err)
	}

	err = r.bus.Publish(ctx, ports.Message{
		Topic:   replyTopic,
		Key:     []byte(id),
		Value:   payload,
		Headers: map[string]string{HeaderCorrelationID: id},
	})
	if err != nil {
		return fmt.Errorf("publish conversion response %s: %w", id, err)
	}
	return nil
}

func (r *Responder) respond(ctx context.Context, payload []byte) model.ConversionResponse {
	var req model.ConversionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return model.ConversionResponse{Error: "decode request: " + err.Error(), ErrorCode: CodeInvalidRequest}
	}

	from, err := model.ParseCurrency(req.From.String())
	if err != nil {
		return failure(err)
	}
	to, err := model.ParseCurrency(req.To.String())
	if err != nil {
		return failure(err)
	}

	converted, err := r.converter.Convert(ctx, from, to, req.Amount)
	if err != nil {
		return failure(err)
	}
	return model.ConversionResponse{ConvertedAmount: converted}
}

func failure(err error) model.ConversionResponse {
	resp := model.ConversionResponse{Error: err.Error(), ErrorCode: ErrorCode(err)}
	var unavailable *model.RateUnavailableError
	if errors.As(err, &unavailable) {
		resp.Currency = unavailable.Code
	}
	return resp
}

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"currency-rate-service/internal/domain/model"
	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/internal/metrics"
	"currency-rate-service/pkg/logger"
)

const DefaultTimeout = 10 * time.Second

type ClientConfig struct {
	RequestTopic string
	ReplyTopic   string
	// GroupID must be unique per client instance so every instance sees its
	// own replies.
	GroupID string
	Timeout time.Duration
}

// Client converts amounts by asking a remote responder over the bus. Replies
// are matched to calls by correlation id only.
type Client struct {
	bus     ports.MessageBus
	cfg     ClientConfig
	metrics *metrics.Metrics
	log     *logger.Logger
	newID   func() string

	mu      sync.Mutex
	pending map[string]chan model.ConversionResponse
}

func NewClient(bus ports.MessageBus, cfg ClientConfig, m *metrics.Metrics, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "conversion-client-" + uuid.NewString()
	}

	return &Client{
		bus:     bus,
		cfg:     cfg,
		metrics: m,
		log:     log.With("component", "rpc_client"),
		newID:   uuid.NewString,
		pending: make(map[string]chan model.ConversionResponse),
	}
}

// Listen consumes the reply topic until ctx is done. Convert calls only
// resolve while Listen is running.
func (c *Client) Listen(ctx context.Context) error {
	return c.bus.Subscribe(ctx, c.cfg.ReplyTopic, c.cfg.GroupID, c.handleReply)
}

func (c *Client) Convert(ctx context.Context, from, to model.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	started := time.Now()

	id, replies, err := c.register()
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer c.deregister(id)

	payload, err := json.Marshal(model.ConversionRequest{From: from, To: to, Amount: amount})
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("encode conversion request: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	err = c.bus.Publish(waitCtx, ports.Message{
		Topic: c.cfg.RequestTopic,
		Key:   []byte(id),
		Value: payload,
		Headers: map[string]string{
			HeaderReplyTopic:    c.cfg.ReplyTopic,
			HeaderCorrelationID: id,
		},
	})
	if err != nil {
		if ctxErr := c.waitError(ctx, waitCtx, id); ctxErr != nil {
			return decimal.Decimal{}, ctxErr
		}
		c.metrics.RPCRequestsTotal.WithLabelValues("caller", "publish_failed").Inc()
		return decimal.Decimal{}, fmt.Errorf("publish conversion request: %w", err)
	}

	select {
	case resp := <-replies:
		c.metrics.RPCLatency.Observe(time.Since(started).Seconds())
		if err := responseError(resp); err != nil {
			c.metrics.RPCRequestsTotal.WithLabelValues("caller", "remote_error").Inc()
			return decimal.Decimal{}, err
		}
		c.metrics.RPCRequestsTotal.WithLabelValues("caller", "ok").Inc()
		return resp.ConvertedAmount, nil
	case <-waitCtx.Done():
		return decimal.Decimal{}, c.waitError(ctx, waitCtx, id)
	}
}

// waitError distinguishes the caller giving up from the reply deadline.
func (c *Client) waitError(parent, waitCtx context.Context, id string) error {
	if err := parent.Err(); err != nil {
		c.metrics.RPCRequestsTotal.WithLabelValues("caller", "cancelled").Inc()
		return err
	}
	if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
		c.metrics.RPCRequestsTotal.WithLabelValues("caller", "timeout").Inc()
		c.log.Warn("Conversion reply timed out", "correlation_id", id, "timeout", c.cfg.Timeout)
		return fmt.Errorf("%w after %s (correlation id %s)", model.ErrConversionRPCTimeout, c.cfg.Timeout, id)
	}
	return nil
}

func (c *Client) register() (string, chan model.ConversionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.newID()
	if _, inFlight := c.pending[id]; inFlight {
		return "", nil, fmt.Errorf("correlation id %s already in flight", id)
	}
	ch := make(chan model.ConversionResponse, 1)
	c.pending[id] = ch
	return id, ch, nil
}

func (c *Client) deregister(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// take removes and returns the waiter for id.
func (c *Client) take(id string) (chan model.ConversionResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return ch, ok
}

func (c *Client) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) handleReply(_ context.Context, msg ports.Message) error {
	id := msg.Headers[HeaderCorrelationID]
	if id == "" {
		c.log.Warn("Dropping reply without correlation id", "topic", msg.Topic)
		return nil
	}

	ch, ok := c.take(id)
	if !ok {
		c.log.Debug("Dropping late or unknown reply", "correlation_id", id)
		return nil
	}

	var resp model.ConversionResponse
	if err := json.Unmarshal(msg.Value, &resp); err != nil {
		resp = model.ConversionResponse{Error: "malformed reply: " + err.Error(), ErrorCode: CodeInternal}
	}
	ch <- resp
	return nil
}

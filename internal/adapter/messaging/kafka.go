package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/pkg/logger"
)

var ErrBusClosed = errors.New("message bus closed")

type KafkaConfig struct {
	Brokers      []string
	WriteTimeout time.Duration
}

// KafkaBus publishes through a single shared writer and opens one reader per
// subscription.
type KafkaBus struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	dialer *kafka.Dialer
	log    *logger.Logger

	mu      sync.Mutex
	readers map[*kafka.Reader]struct{}
	closed  bool
}

func ParseBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafkaBus(cfg KafkaConfig, log *logger.Logger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka bus: brokers are required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           10 * time.Millisecond,
	}

	return &KafkaBus{
		cfg:     cfg,
		writer:  writer,
		dialer:  &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true},
		log:     log.With("bus", "kafka"),
		readers: make(map[*kafka.Reader]struct{}),
	}, nil
}

// Ping dials the first broker.
func (b *KafkaBus) Ping(ctx context.Context) error {
	conn, err := b.dialer.DialContext(ctx, "tcp", b.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka bus: connection failed: %w", err)
	}
	return conn.Close()
}

func (b *KafkaBus) Publish(ctx context.Context, msgs ...ports.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	km := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km = append(km, toKafkaMessage(m))
	}

	if err := b.writer.WriteMessages(ctx, km...); err != nil {
		return fmt.Errorf("kafka bus: publish failed: %w", err)
	}
	return nil
}

// readerConfig starts new groups at the beginning of the topic, so nothing
// published while the group is still joining is missed.
func (b *KafkaBus) readerConfig(topic, groupID string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		GroupID:     groupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     250 * time.Millisecond,
		Dialer:      b.dialer,
	}
}

func (b *KafkaBus) Subscribe(ctx context.Context, topic, groupID string, handler ports.Handler) error {
	if groupID == "" {
		return errors.New("kafka bus: group id is required")
	}

	reader := kafka.NewReader(b.readerConfig(topic, groupID))
	if !b.track(reader) {
		_ = reader.Close()
		return ErrBusClosed
	}
	defer b.untrack(reader)

	b.log.Info("Subscribed", "topic", topic, "group_id", groupID)

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("kafka bus: consume %s: %w", topic, err)
		}

		if err := handler(ctx, fromKafkaMessage(m)); err != nil {
			b.log.Error("Handler failed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
		}

		if err := reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			b.log.Warn("Commit failed", "topic", m.Topic, "offset", m.Offset, "error", err)
		}
	}
}

func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	readers := make([]*kafka.Reader, 0, len(b.readers))
	for r := range b.readers {
		readers = append(readers, r)
	}
	b.readers = make(map[*kafka.Reader]struct{})
	b.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *KafkaBus) track(r *kafka.Reader) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.readers[r] = struct{}{}
	return true
}

func (b *KafkaBus) untrack(r *kafka.Reader) {
	b.mu.Lock()
	_, ok := b.readers[r]
	delete(b.readers, r)
	b.mu.Unlock()
	if ok {
		_ = r.Close()
	}
}

func toKafkaMessage(m ports.Message) kafka.Message {
	headers := make([]kafka.Header, 0, len(m.Headers))
	for k, v := range m.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return kafka.Message{
		Topic:   m.Topic,
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
		Time:    time.Now(),
	}
}

// fromKafkaMessage keeps the last value when a header key repeats.
func fromKafkaMessage(m kafka.Message) ports.Message {
	headers := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return ports.Message{
		Topic:   m.Topic,
		Key:     m.Key,
		Value:   m.Value,
		Headers: headers,
	}
}

package messaging

import (
	"context"
	"sync"
	"time"

	"currency-rate-service/internal/domain/ports"
	"currency-rate-service/pkg/logger"
)

const memoryBufferSize = 128

// MemoryBus is an in-process bus with consumer group semantics: every group
// subscribed to a topic receives each message once, delivered round-robin to
// the group's subscribers. Messages published to a topic with no subscribers
// are dropped.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[string]*memoryGroup
	closed bool
	done   chan struct{}
	log    *logger.Logger
}

type memoryGroup struct {
	subs []*memorySub
	next int
}

// memorySub is one subscriber. gone is closed when it unregisters so that a
// publisher blocked on a full inbox gives up on it.
type memorySub struct {
	inbox chan ports.Message
	gone  chan struct{}
}

func NewMemoryBus(log *logger.Logger) *MemoryBus {
	return &MemoryBus{
		topics: make(map[string]map[string]*memoryGroup),
		done:   make(chan struct{}),
		log:    log.With("bus", "memory"),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, msgs ...ports.Message) error {
	for _, m := range msgs {
		targets, err := b.route(m.Topic)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			b.log.Debug("No subscribers, dropping message", "topic", m.Topic)
			continue
		}

		for _, sub := range targets {
			select {
			case sub.inbox <- cloneMessage(m):
			case <-sub.gone:
				b.log.Debug("Subscriber left, dropping message", "topic", m.Topic)
			case <-b.done:
				return ErrBusClosed
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// route picks one subscriber per group for topic.
func (b *MemoryBus) route(topic string) ([]*memorySub, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	groups := b.topics[topic]
	targets := make([]*memorySub, 0, len(groups))
	for _, g := range groups {
		if len(g.subs) == 0 {
			continue
		}
		targets = append(targets, g.subs[g.next%len(g.subs)])
		g.next++
	}
	return targets, nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic, groupID string, handler ports.Handler) error {
	sub := &memorySub{
		inbox: make(chan ports.Message, memoryBufferSize),
		gone:  make(chan struct{}),
	}
	if !b.register(topic, groupID, sub) {
		return ErrBusClosed
	}
	defer b.unregister(topic, groupID, sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case m := <-sub.inbox:
			if err := handler(ctx, m); err != nil {
				b.log.Error("Handler failed", "topic", topic, "group_id", groupID, "error", err)
			}
		}
	}
}

// WaitForSubscribers blocks until topic has at least n consumer groups.
func (b *MemoryBus) WaitForSubscribers(ctx context.Context, topic string, n int) error {
	for {
		b.mu.RLock()
		count := 0
		for _, g := range b.topics[topic] {
			if len(g.subs) > 0 {
				count++
			}
		}
		b.mu.RUnlock()
		if count >= n {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return ErrBusClosed
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

func (b *MemoryBus) register(topic, groupID string, sub *memorySub) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}

	groups, ok := b.topics[topic]
	if !ok {
		groups = make(map[string]*memoryGroup)
		b.topics[topic] = groups
	}
	g, ok := groups[groupID]
	if !ok {
		g = &memoryGroup{}
		groups[groupID] = g
	}
	g.subs = append(g.subs, sub)
	return true
}

func (b *MemoryBus) unregister(topic, groupID string, sub *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	close(sub.gone)

	g := b.topics[topic][groupID]
	if g == nil {
		return
	}
	for i, s := range g.subs {
		if s == sub {
			g.subs = append(g.subs[:i], g.subs[i+1:]...)
			break
		}
	}
	if len(g.subs) == 0 {
		delete(b.topics[topic], groupID)
	}
}

func cloneMessage(m ports.Message) ports.Message {
	out := ports.Message{
		Topic: m.Topic,
		Key:   append([]byte(nil), m.Key...),
		Value: append([]byte(nil), m.Value...),
	}
	if m.Headers != nil {
		out.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

package ports

import "context"

// Message is a bus record. Headers carry out-of-band metadata such as
// correlation ids.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Handler processes one inbound message. Returned errors are logged by the
// subscriber; the message is not redelivered.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
}

type Subscriber interface {
	// Subscribe blocks, dispatching messages from topic to handler until ctx
	// is done or the transport fails.
	Subscribe(ctx context.Context, topic, groupID string, handler Handler) error
}

type MessageBus interface {
	Publisher
	Subscriber
	Close() error
}

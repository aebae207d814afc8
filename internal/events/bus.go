package events

import "context"

type Bus interface {
	Publish(ctx context.Context, subject string, data []byte, msgID string) error
	Drain() error
}

// Handler processes one delivered message.
// If it returns nil, the message is Acknowledged (removed from queue).
// If it returns error, the message is Nacked (retried).
type Handler func(ctx context.Context, payload []byte) error

type Subscription struct {
	Unsubscribe func() error
}

// Subscriber delivers each message of subject to one member of the queue group.
type Subscriber interface {
	Subscribe(subject string, group string, handler Handler) (Subscription, error)
	Drain() error
}

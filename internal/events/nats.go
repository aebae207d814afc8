package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

var (
	_ Bus        = (*NATSBus)(nil)
	_ Subscriber = (*NATSBus)(nil)
)

// handlerTimeout bounds one message handler so a stuck handler can't hold the
// connection forever.
const handlerTimeout = 30 * time.Second

type NATSBus struct {
	nats *nats.Conn
	js   nats.JetStreamContext
	log  *slog.Logger
}

// NewNATSBus connects to addr. name identifies the client on the NATS dashboard.
func NewNATSBus(addr, name string, logger *slog.Logger) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name(name),

		// Never give up reconnecting, but don't spam the server.
		nats.MaxReconnects(-1),
		nats.ReconnectWait(3 * time.Second),

		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected! Buffering messages...", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected successfully!", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if err := nc.LastError(); err != nil {
				logger.Error("NATS connection closed", "error", err)
				return
			}
			logger.Info("NATS connection closed")
		}),
	}
	nc, err := nats.Connect(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create nats client: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &NATSBus{
		nats: nc,
		js:   js,
		log:  logger,
	}, nil
}

func (b *NATSBus) Publish(ctx context.Context, subject string, data []byte, msgID string) error {
	b.log.DebugContext(ctx, "Publishing event", "subject", subject, "data_size", len(data))

	opts := []nats.PubOpt{nats.MsgId(msgID)}
	if _, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Context(ctx))
	}
	_, err := b.js.Publish(subject, data, opts...)
	return err
}

// Subscribe joins group on subject with a durable JetStream consumer named after
// the group, acking manually once handler returns.
func (b *NATSBus) Subscribe(subject string, group string, handler Handler) (Subscription, error) {
	b.log.Info("Subscribing to subject", "subject", subject, "queue", group)

	opts := []nats.SubOpt{
		nats.Durable(group),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),      // If we crashed, catch up on what we missed
		nats.MaxAckPending(10), // Don't overwhelm the worker
	}

	sub, err := b.js.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if err := handler(ctx, msg.Data); err != nil {
			b.log.Error("Handler failed, Nacking message", "subject", subject, "error", err)
			if err := msg.Nak(); err != nil {
				b.log.Error("Failed to Nak message", "subject", subject, "error", err)
			}
			return
		}

		if err := msg.Ack(); err != nil {
			b.log.Error("Failed to Ack message", "subject", subject, "error", err)
		}
	}, opts...)
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	return Subscription{Unsubscribe: sub.Unsubscribe}, nil
}

func (b *NATSBus) Drain() error {
	b.log.Info("Draining events")
	return b.nats.Drain()
}

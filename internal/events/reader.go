package events

import (
	"context"
	"encoding/json"
	"log/slog"
)

// AuditQueue is the queue group shared by every audit worker replica.
const AuditQueue = "upload-audit"

type EventReader struct {
	subscriber Subscriber
	config     *EventConfig
	logger     *slog.Logger
}

func NewEventReader(subscriber Subscriber, config *EventConfig, logger *slog.Logger) *EventReader {
	return &EventReader{
		subscriber: subscriber,
		config:     config,
		logger:     logger,
	}
}

// SubscribeToUploadStatusEvents hands every decoded upload status event to
// handler. A handler error leaves the event for redelivery.
func (r *EventReader) SubscribeToUploadStatusEvents(handler func(ctx context.Context, evt UploadStatusEvent) error) (Subscription, error) {
	subject := r.config.UploadStatus
	r.logger.Info("Subscribing to upload status events", "subject", subject)

	return r.subscriber.Subscribe(subject, AuditQueue, func(ctx context.Context, payload []byte) error {
		var evt UploadStatusEvent
		if err := json.Unmarshal(payload, &evt); err != nil {
			// Ack malformed events, redelivery would loop forever
			r.logger.Error("Discarding malformed JSON event", "subject", subject, "error", err)
			return nil
		}
		return handler(ctx, evt)
	})
}

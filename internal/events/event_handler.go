package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"uploader/internal/upload"
)

type EventHandler struct {
	bus    Bus
	config *EventConfig
	logger *slog.Logger
}

func NewEventHandler(bus Bus, config *EventConfig, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		bus:    bus,
		config: config,
		logger: logger,
	}
}

// ForSession returns a notifier publishing the settled uploads of one session.
func (h *EventHandler) ForSession(sessionID, userID string) upload.Notifier {
	return upload.NotifierFunc(func(ctx context.Context, n upload.Notification) {
		if n.Key == "" || n.Kind == upload.KindLoading {
			return
		}
		evt := UploadStatusEvent{
			SessionID: sessionID,
			UserID:    userID,
			Status:    string(n.Kind),
			File:      n.File,
			Key:       n.Key,
			Bucket:    n.Bucket,
			Size:      n.Size,
			Reason:    n.Reason,
			At:        n.At,
		}
		if err := h.RaiseUploadStatusEvent(ctx, evt); err != nil {
			h.logger.ErrorContext(ctx, "Failed to publish upload status", "key", n.Key, "error", err)
		}
	})
}

func (h *EventHandler) RaiseUploadStatusEvent(ctx context.Context, evt UploadStatusEvent) error {
	// msgID dedupes publish retries of one attempt, the file span is unique per attempt.
	msgID := uuid.NewString()
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt.TraceID = sc.TraceID().String()
		msgID = sc.SpanID().String()
	}
	msgID = evt.Status + "." + msgID

	h.logger.InfoContext(ctx, "Raising upload status event",
		"session_id", evt.SessionID,
		"status", evt.Status,
		"key", evt.Key,
	)

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	if h.config.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.PublishTimeout)
		defer cancel()
	}
	return h.bus.Publish(ctx, h.config.UploadStatus, data, msgID)
}

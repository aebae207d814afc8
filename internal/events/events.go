package events

import "time"

// UploadStatusEvent is published once per file when its upload settles.
type UploadStatusEvent struct {
	SessionID string    `json:"session_id"` // Form session the file was staged in
	UserID    string    `json:"user_id,omitempty"`
	Status    string    `json:"status"`     // "success" | "error"
	File      string    `json:"file"`       // Original file name
	Key       string    `json:"key"`        // Object location in storage
	Bucket    string    `json:"bucket"`
	Size      int64     `json:"size"`
	Reason    string    `json:"reason,omitempty"` // Failure cause, error status only
	TraceID   string    `json:"trace_id,omitempty"`
	At        time.Time `json:"at"`
}

type EventConfig struct {
	UploadStatus   string        `env:"EVENT_UPLOAD_STATUS" default:"uploads.status" validate:"required"`
	PublishTimeout time.Duration `env:"EVENT_PUBLISH_TIMEOUT" default:"2s"`
}

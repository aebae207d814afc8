package upload

import (
	"context"
	"sync"
	"time"
)

// Kind is the lifecycle stage a notification reports.
type Kind string

const (
	KindLoading Kind = "loading"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

const (
	MsgUploading       = "Uploading files..."
	MsgUploaded        = "File uploaded successfully!"
	MsgUploadFailed    = "Error uploading file"
	MsgMissingFiles    = "Please select files to upload."
	MsgMissingRegion   = "Please select a region."
	MsgMissingBusiness = "Please select a business."
)

// Notification is one ephemeral, user facing status message. File related fields
// are empty for validation notifications.
type Notification struct {
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	File    string    `json:"file,omitempty"`
	Key     string    `json:"key,omitempty"`
	Bucket  string    `json:"bucket,omitempty"`
	Size    int64     `json:"size,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier receives status notifications. Notify is called concurrently from the
// upload goroutines and must not block for long; delivery failures are the
// notifier's own concern.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Notifiers fans a notification out to every non-nil notifier in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n Notification) {
	for _, notifier := range ns {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Recorder collects notifications, e.g. to hand them back to an HTTP client as toasts.
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.seen...)
}

// Count returns how many recorded notifications have the given kind.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, seen := range r.seen {
		if seen.Kind == kind {
			n++
		}
	}
	return n
}

// Package session keeps one selection.Form per browser session, the server side
// rendition of a single open upload page.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"uploader/internal/selection"
)

var (
	ErrNotFound = errors.New("session: not found")
	ErrConflict = errors.New("session: modified concurrently")
)

// DefaultTTL is how long an untouched session lives.
const DefaultTTL = 30 * time.Minute

// Store persists forms by session id. Update is the only way to mutate a form:
// fn sees a private copy and its changes are saved only when it returns nil.
type Store interface {
	Create(ctx context.Context) (string, error)
	Get(ctx context.Context, id string) (*selection.Form, error)
	Update(ctx context.Context, id string, fn func(*selection.Form) error) error
	Delete(ctx context.Context, id string) error
}

func newID() string {
	return uuid.NewString()
}

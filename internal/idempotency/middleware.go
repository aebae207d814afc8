package idempotency

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"uploader/internal/errors"
)

const HeaderKey = "Idempotency-Key"

type IdempotencyStore interface {
	Lock(ctx context.Context, key string) (bool, error)
	GetResponse(ctx context.Context, key string) (*IdempotencyResponse, bool, error)
	SaveResponse(ctx context.Context, key string, resp IdempotencyResponse) error
	Delete(ctx context.Context, key string) error
}

type IdempotencyResponse struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

var ignoredHeaders = map[string]bool{
	"Access-Control-Allow-Origin":      true,
	"Access-Control-Allow-Methods":     true,
	"Access-Control-Allow-Headers":     true,
	"Access-Control-Allow-Credentials": true,
	"Access-Control-Expose-Headers":    true,
	"Date":                             true,
	"Content-Length":                   true,
	"Connection":                       true,
}

// Idempotency replays the stored response of a request already served with the
// same Idempotency-Key on the same path, and answers 409 while the first one is
// still running. Keys are scoped by path so one key can't replay another
// session's submit.
func Idempotency(store IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get(HeaderKey)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := r.URL.Path + ":" + header

			// SETNX: only one request passes this line
			acquired, err := store.Lock(ctx, key)
			if err != nil {
				// Fail closed
				errors.RespondError(w, r, errors.New(errors.ErrUnavailable, "Idempotency Service Unavailable", err))
				return
			}

			if !acquired {
				cachedResp, found, err := store.GetResponse(ctx, key)
				if err != nil {
					errors.RespondError(w, r, errors.New(errors.ErrInternal, "Internal Cache Error", err))
					return
				}

				if found && cachedResp != nil {
					replay(w, cachedResp)
					return
				}

				// Locked but no response yet: a concurrent request is running.
				w.Header().Set("Retry-After", "1")
				errors.RespondError(w, r, errors.New(errors.ErrConflict, "Request is currently being processed", nil))
				return
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}

			next.ServeHTTP(recorder, r)

			if retryable(recorder.statusCode) {
				slog.WarnContext(ctx, "Idempotency: retryable status, deleting lock", "key", key, "status", recorder.statusCode)
				_ = store.Delete(context.WithoutCancel(ctx), key)
				return
			}

			resp := IdempotencyResponse{
				StatusCode: recorder.statusCode,
				Headers:    cleanHeaders(recorder.Header()),
				Body:       recorder.body.Bytes(),
			}
			go func() {
				saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()

				// Overwrites the lock with the real data
				if err := store.SaveResponse(saveCtx, key, resp); err != nil {
					slog.ErrorContext(saveCtx, "Failed to save idempotency response", "error", err)
				}
			}()
		})
	}
}

// retryable reports whether a response depends on state the client can still
// change, so the same key must run the handler again instead of replaying.
func retryable(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

func replay(w http.ResponseWriter, resp *IdempotencyResponse) {
	for k, v := range resp.Headers {
		if ignoredHeaders[k] {
			continue
		}
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set("X-Idempotency-Hit", "true")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func cleanHeaders(headers http.Header) http.Header {
	clean := make(http.Header, len(headers))
	for k, v := range headers {
		if !ignoredHeaders[k] {
			clean[k] = append([]string(nil), v...)
		}
	}
	return clean
}

// responseRecorder copies the response as it goes out.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uploader/internal/cache"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisClient(context.Background(), cache.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return NewStore(c), mr
}

func post(h http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func countingHandler(status int, calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func TestStore_LockAndSave(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	ok, err := store.Lock(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Lock(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveResponse(ctx, "k", IdempotencyResponse{StatusCode: 207, Body: []byte("x")}))
	resp, found, err := store.GetResponse(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 207, resp.StatusCode)

	// A saved response keeps the key locked for good.
	ok, err = store.Lock(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, "k"))
	ok, err = store.Lock(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotency_NoHeaderPassesThrough(t *testing.T) {
	store, _ := newStore(t)
	var calls atomic.Int32
	h := Idempotency(store)(countingHandler(http.StatusOK, &calls))

	post(h, "/sessions/a/submit", "")
	post(h, "/sessions/a/submit", "")

	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotency_ReplaysSavedResponse(t *testing.T) {
	store, _ := newStore(t)
	var calls atomic.Int32
	h := Idempotency(store)(countingHandler(http.StatusMultiStatus, &calls))

	first := post(h, "/sessions/a/submit", "key-1")
	assert.Equal(t, http.StatusMultiStatus, first.Code)

	require.Eventually(t, func() bool {
		_, found, _ := store.GetResponse(context.Background(), "/sessions/a/submit:key-1")
		return found
	}, 2*time.Second, 10*time.Millisecond)

	second := post(h, "/sessions/a/submit", "key-1")
	assert.Equal(t, http.StatusMultiStatus, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))
	assert.JSONEq(t, `{"ok":true}`, second.Body.String())
	assert.Equal(t, int32(1), calls.Load())

	// Same key on another session is a different request.
	post(h, "/sessions/b/submit", "key-1")
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotency_ConflictWhileRunning(t *testing.T) {
	store, _ := newStore(t)
	ok, err := store.Lock(context.Background(), "/sessions/a/submit:key-1")
	require.NoError(t, err)
	require.True(t, ok)

	var calls atomic.Int32
	h := Idempotency(store)(countingHandler(http.StatusOK, &calls))
	rec := post(h, "/sessions/a/submit", "key-1")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Zero(t, calls.Load())
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	store, _ := newStore(t)
	var calls atomic.Int32
	h := Idempotency(store)(countingHandler(http.StatusBadGateway, &calls))

	post(h, "/sessions/a/submit", "key-1")
	post(h, "/sessions/a/submit", "key-1")

	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotency_RejectedSubmitReleasesKey(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusConflict} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			store, _ := newStore(t)
			var calls atomic.Int32
			h := Idempotency(store)(countingHandler(status, &calls))

			first := post(h, "/sessions/a/submit", "key-1")
			second := post(h, "/sessions/a/submit", "key-1")

			assert.Equal(t, status, first.Code)
			assert.Equal(t, status, second.Code)
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestIdempotency_StoreDownFailsClosed(t *testing.T) {
	store, mr := newStore(t)
	mr.Close()

	var calls atomic.Int32
	h := Idempotency(store)(countingHandler(http.StatusOK, &calls))
	rec := post(h, "/sessions/a/submit", "key-1")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, calls.Load())
}

package storage

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

var _ Provider = (*MemoryProvider)(nil)

// StoredObject is what MemoryProvider keeps per key.
type StoredObject struct {
	Data        []byte
	ContentType string
}

// MemoryProvider is a thread-safe in-process Provider for local runs and tests.
// Objects live in store[bucket/key].
type MemoryProvider struct {
	mu       sync.RWMutex
	store    map[string]StoredObject
	failures map[string]error
	calls    atomic.Int64
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		store:    make(map[string]StoredObject),
		failures: make(map[string]error),
	}
}

// FailKey makes every upload to key return err.
func (m *MemoryProvider) FailKey(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key] = err
}

func (m *MemoryProvider) Upload(ctx context.Context, obj Object) (UploadInfo, error) {
	m.calls.Add(1)

	m.mu.RLock()
	failure, shouldFail := m.failures[obj.Key]
	m.mu.RUnlock()
	if shouldFail {
		return UploadInfo{}, fmt.Errorf("%w: %w", ErrUploadFailed, failure)
	}

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return UploadInfo{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return UploadInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[objectPath(obj.Bucket, obj.Key)] = StoredObject{
		Data:        data,
		ContentType: obj.ContentType,
	}

	return UploadInfo{Bucket: obj.Bucket, Key: obj.Key, Size: int64(len(data))}, nil
}

func (m *MemoryProvider) Ping(ctx context.Context, bucket Bucket) error {
	return nil
}

// --- Test Helper Methods (Not part of Provider interface) ---

func (m *MemoryProvider) Object(bucket Bucket, key string) (StoredObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.store[objectPath(bucket, key)]
	return obj, ok
}

// Paths lists stored objects as bucket/key, sorted.
func (m *MemoryProvider) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := lo.Keys(m.store)
	slices.Sort(paths)
	return paths
}

// Calls counts Upload invocations, failed ones included.
func (m *MemoryProvider) Calls() int {
	return int(m.calls.Load())
}

func objectPath(bucket Bucket, key string) string {
	return string(bucket) + "/" + key
}

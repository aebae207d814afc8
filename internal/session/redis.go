package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"uploader/internal/cache"
	"uploader/internal/selection"
)

var _ Store = (*RedisStore)(nil)

const keyPrefix = "upload-session:"

// RedisStore keeps JSON encoded forms in Redis so several gateway replicas can
// serve the same session. Every write refreshes the ttl.
type RedisStore struct {
	cache *cache.RedisClient
	ttl   time.Duration
}

func NewRedisStore(c *cache.RedisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{cache: c, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context) (string, error) {
	id := newID()
	ok, err := cache.SetNX(s.cache, ctx, keyPrefix+id, selection.New(), s.ttl)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("create session: id %s already taken", id)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*selection.Form, error) {
	form, found, err := cache.Get[selection.Form](s.cache, ctx, keyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return form, nil
}

// Update runs fn once. If the session changed in Redis while fn ran, nothing is
// written and ErrConflict is returned; fn is not re-run because it may already
// have uploaded files.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*selection.Form) error) error {
	err := cache.Update(s.cache, ctx, keyPrefix+id, s.ttl, fn)
	switch {
	case errors.Is(err, cache.ErrMiss):
		return ErrNotFound
	case errors.Is(err, cache.ErrConflict):
		return ErrConflict
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	exists, err := cache.Exists(s.cache, ctx, keyPrefix+id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return cache.Del(s.cache, ctx, keyPrefix+id)
}

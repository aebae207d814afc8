package idempotency

import (
	"context"
	"time"

	"uploader/internal/cache"
)

const (
	keyPrefix  = "idempotency:"
	lockSuffix = ":lock"
	dataSuffix = ":data"
	lockTTL    = 10 * time.Minute   // outlives the slowest submit the router allows
	dataTTL    = 24 * 7 * time.Hour // how long a finished response is replayed
)

var _ IdempotencyStore = (*Store)(nil)

type Store struct {
	cache *cache.RedisClient
}

func NewStore(c *cache.RedisClient) *Store {
	return &Store{cache: c}
}

func (s *Store) SaveResponse(ctx context.Context, key string, resp IdempotencyResponse) error {
	if err := cache.Set(s.cache, ctx, keyPrefix+key+dataSuffix, resp, dataTTL); err != nil {
		return err
	}

	// Once the data is saved the request is done; a stale lock only delays readers.
	_ = cache.Del(s.cache, ctx, keyPrefix+key+lockSuffix)
	return nil
}

func (s *Store) GetResponse(ctx context.Context, key string) (*IdempotencyResponse, bool, error) {
	return cache.Get[IdempotencyResponse](s.cache, ctx, keyPrefix+key+dataSuffix)
}

// Lock reports false when the key is already locked or already has a response, so
// the middleware falls through to replay or conflict.
func (s *Store) Lock(ctx context.Context, key string) (bool, error) {
	_, found, err := s.GetResponse(ctx, key)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	return cache.SetNX(s.cache, ctx, keyPrefix+key+lockSuffix, "1", lockTTL)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := cache.Del(s.cache, ctx, keyPrefix+key+lockSuffix); err != nil {
		return err
	}
	return cache.Del(s.cache, ctx, keyPrefix+key+dataSuffix)
}

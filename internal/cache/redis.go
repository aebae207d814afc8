package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrMiss is returned by Update when the key does not exist.
	ErrMiss = errors.New("cache: key not found")

	// ErrConflict is returned by Update when the key changed between read and write.
	ErrConflict = errors.New("cache: key modified concurrently")
)

// RedisClient wraps the raw Redis client
type RedisClient struct {
	rdb *redis.Client
}

type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

func NewRedisClient(ctx context.Context, cfg Config) (*RedisClient, error) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 100
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// Don't let a slow Redis hang requests waiting for a pool slot.
		PoolTimeout: 4 * time.Second,

		ConnMaxIdleTime: 5 * time.Minute,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &RedisClient{rdb: rdb}, nil
}

// Set stores any value by marshaling it to JSON.
func Set[T any](c *RedisClient, ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Get retrieves data and unmarshals it into a new T.
func Get[T any](c *RedisClient, ctx context.Context, key string) (*T, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result T
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, false, err
	}

	return &result, true, nil
}

func SetNX(c *RedisClient, ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	return c.rdb.SetNX(ctx, key, data, ttl).Result()
}

// Update reads key, applies fn and writes the result back with a fresh ttl, all
// under WATCH. fn runs at most once: if another client writes the key first the
// transaction is aborted and ErrConflict returned, never retried.
func Update[T any](c *RedisClient, ctx context.Context, key string, ttl time.Duration, fn func(*T) error) error {
	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		if err != nil {
			return err
		}

		var value T
		if err := json.Unmarshal(raw, &value); err != nil {
			return err
		}
		if err := fn(&value); err != nil {
			return err
		}

		data, err := json.Marshal(&value)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

func Del(c *RedisClient, ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Exists reports whether key is present.
func Exists(c *RedisClient, ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

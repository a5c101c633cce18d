package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time assertion that RedisStore satisfies the Store interface.
var _ Store = (*RedisStore)(nil)

// connectTimeout bounds the initial reachability probe in NewRedis.
const connectTimeout = 5 * time.Second

// RedisConfig holds connection settings for a [RedisStore].
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password is the optional AUTH password.
	Password string

	// DB selects the logical Redis database.
	DB int
}

// RedisStore implements [Store] on a Redis server. Counter atomicity is
// provided by INCR/DECR; lists use RPUSH/LRANGE.
type RedisStore struct {
	client *redis.Client
}

// NewRedis connects to the Redis server described by cfg and verifies
// reachability with a ping before returning.
func NewRedis(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisStore{client: client}, nil
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get %q: %w", key, err)
	}
	return val, nil
}

// Set implements [Store].
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %q: %w", key, err)
	}
	return nil
}

// Incr implements [Store].
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("store: incr %q: %w", key, err)
	}
	return n, nil
}

// Decr implements [Store].
func (s *RedisStore) Decr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("store: decr %q: %w", key, err)
	}
	return n, nil
}

// Append implements [Store]. The push and the expiry refresh are pipelined so
// a list never outlives its TTL by more than one round trip.
func (s *RedisStore) Append(ctx context.Context, key, value string, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, value)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: append %q: %w", key, err)
	}
	return nil
}

// Range implements [Store].
func (s *RedisStore) Range(ctx context.Context, key string) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: range %q: %w", key, err)
	}
	return vals, nil
}

// Ping implements [Store].
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements [Store].
func (s *RedisStore) Close() error {
	return s.client.Close()
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by a Redis store.
const DefaultPrefix = "bizreview:report:"

// Redis is a Store shared between processes. Values are JSON encoded.
type Redis[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// DialRedis parses url, connects and pings. A bare "host:port" is accepted.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	if !strings.Contains(url, "://") {
		url = "redis://" + url
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedis[T any](client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Redis[T] {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (r *Redis[T]) key(k string) string {
	return r.prefix + k
}

func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("Redis cache read failed", "key", key, "error", err)
		}
		return zero, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		r.logger.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		return zero, false
	}
	return value, true
}

func (r *Redis[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("Cache entry not encodable", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		r.logger.Warn("Redis cache write failed", "key", key, "error", err)
	}
}

// Purge deletes every key under the store's prefix.
func (r *Redis[T]) Purge(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan report cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("purge report cache: %w", err)
	}
	return nil
}

func (r *Redis[T]) Close() error {
	return r.client.Close()
}

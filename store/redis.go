package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"callbridge/models"
)

const redisKeyPrefix = "callbridge:route:"

// Redis is a ConfigStore backed by a Redis server. Records are stored as
// JSON under a namespaced key so the same instance can serve other
// consumers. Routes carry no expiry; they live until overwritten.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed store from a redis:// URL.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewRedisClient wraps an existing client, mainly for tests against
// miniredis-style servers.
func NewRedisClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (models.RouteConfig, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.RouteConfig{}, ErrNotFound
	}
	if err != nil {
		return models.RouteConfig{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var cfg models.RouteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return models.RouteConfig{}, fmt.Errorf("store: decode route %q: %w", key, err)
	}
	return cfg, nil
}

func (r *Redis) Put(ctx context.Context, key string, cfg models.RouteConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("store: encode route %q: %w", key, err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

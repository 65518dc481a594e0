// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

const defaultKeyPrefix = "bedrock-gw:emb:"

// RedisConfig configures a RedisCache.
type RedisConfig struct {
	Address   string
	Password  string
	Database  int
	TTL       time.Duration
	KeyPrefix string
}

// RedisCache is an EmbeddingCache stored in Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ EmbeddingCache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Address == "" {
		return nil, errdefs.Configf("redis cache: address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errdefs.Wrap(errdefs.KindStorage, err, "redis cache: ping %s", cfg.Address)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{client: client, ttl: cfg.TTL, prefix: prefix}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errdefs.Wrap(errdefs.KindStorage, err, "redis cache: get")
	}
	vec, err := DecodeVector(b)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	if err := c.client.Set(ctx, c.prefix+key, EncodeVector(vec), c.ttl).Err(); err != nil {
		return errdefs.Wrap(errdefs.KindStorage, err, "redis cache: set")
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

func newRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), RedisConfig{Address: mr.Addr(), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCacheRoundTrip(t *testing.T) {
	_, c := newRedis(t, 0)
	ctx := context.Background()
	key := Key("amazon.titan-embed-text-v1", "search_document", "hello")

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []float32{0.5, -1, 3.25}))
	vec, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.5, -1, 3.25}, vec)
}

func TestRedisCacheTTL(t *testing.T) {
	mr, c := newRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []float32{1}))
	assert.Equal(t, time.Minute, mr.TTL(defaultKeyPrefix+"k"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheCorruptValue(t *testing.T) {
	mr, c := newRedis(t, 0)
	require.NoError(t, mr.Set(defaultKeyPrefix+"bad", "abc"))

	_, _, err := c.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, errdefs.ErrStorage)
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), RedisConfig{Address: addr})
	assert.ErrorIs(t, err, errdefs.ErrStorage)
}

func TestKeyDistinguishesInputs(t *testing.T) {
	assert.NotEqual(t, Key("m", "search_query", "x"), Key("m", "search_document", "x"))
	assert.NotEqual(t, Key("m", "", "ab"), Key("m", "a", "b"))
	assert.Equal(t, Key("m", "q", "x"), Key("m", "q", "x"))
}

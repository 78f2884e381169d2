// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) WindowCache {
	t.Helper()
	srv := miniredis.RunT(t)

	c, err := NewRedisCache(RedisConfig{Addr: srv.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()
	key := Key("phil", "diary", "", 5)

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, testWindow("phil"), time.Minute)

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "phil", got[0].UserID)
	assert.InDelta(t, 0.02, got[1].DriftScore, 1e-9)

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Sets)
}

func TestRedisCacheInvalidateUser(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()

	c.Set(ctx, Key("phil", "diary", "", 5), testWindow("phil"), time.Minute)
	c.Set(ctx, Key("phil", "other", "", 3), testWindow("phil"), time.Minute)
	c.Set(ctx, Key("dave", "diary", "", 5), testWindow("dave"), time.Minute)

	c.InvalidateUser(ctx, "phil")

	_, ok := c.Get(ctx, Key("phil", "diary", "", 5))
	assert.False(t, ok)
	_, ok = c.Get(ctx, Key("phil", "other", "", 3))
	assert.False(t, ok)
	_, ok = c.Get(ctx, Key("dave", "diary", "", 5))
	assert.True(t, ok)
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	_, err := NewRedisCache(RedisConfig{Addr: "127.0.0.1:1"}, zerolog.Nop())
	assert.Error(t, err)
}

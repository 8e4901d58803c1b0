package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
)

type stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	var got stats
	ok, err := c.Get(ctx, "grades:stats:c1:t1:all", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "grades:stats:c1:t1:all", stats{Count: 3, Average: 12.5}))
	require.NoError(t, c.Set(ctx, "grades:stats:c1:t1:math", stats{Count: 1}))
	require.NoError(t, c.Set(ctx, "grades:stats:c2:t1:all", stats{Count: 2}))

	ok, err = c.Get(ctx, "grades:stats:c1:t1:all", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, stats{Count: 3, Average: 12.5}, got)

	require.NoError(t, c.DeletePrefix(ctx, "grades:stats:c1:"))
	ok, _ = c.Get(ctx, "grades:stats:c1:t1:math", &got)
	assert.False(t, ok)
	ok, _ = c.Get(ctx, "grades:stats:c2:t1:all", &got)
	assert.True(t, ok)
}

func TestMemoryCache_expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time { return now }
	defer func() { core.NowFunc = time.Now }()

	c := NewMemoryCache(time.Minute)
	require.NoError(t, c.Set(ctx, "k", stats{Count: 1}))

	var got stats
	now = now.Add(30 * time.Second)
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

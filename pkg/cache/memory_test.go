package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	type holding struct {
		Symbols []string `json:"symbols"`
	}
	require.NoError(t, c.Set(ctx, "holdings:SPY", holding{Symbols: []string{"AAPL", "MSFT"}}, time.Minute))

	var got holding
	require.NoError(t, c.Get(ctx, "holdings:SPY", &got))
	assert.Equal(t, []string{"AAPL", "MSFT"}, got.Symbols)

	var miss holding
	assert.ErrorIs(t, c.Get(ctx, "holdings:MDY", &miss), ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", 1.5, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	var v float64
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "b", "2", time.Minute))
	time.Sleep(time.Millisecond)
	var s string
	require.NoError(t, c.Get(ctx, "a", &s))
	require.NoError(t, c.Set(ctx, "c", "3", time.Minute))

	assert.ErrorIs(t, c.Get(ctx, "b", &s), ErrCacheMiss)
	require.NoError(t, c.Get(ctx, "a", &s))
	assert.Equal(t, "1", s)
}

func TestMemoryCacheLock(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	ok, err := c.TryLock(ctx, "pipeline", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.TryLock(ctx, "pipeline", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Unlock(ctx, "pipeline"))
	ok, err = c.TryLock(ctx, "pipeline", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	calls := 0
	load := func(context.Context) (float64, error) {
		calls++
		return 0.031, nil
	}
	v, err := GetOrLoad(ctx, c, "div:KO", time.Hour, load)
	require.NoError(t, err)
	assert.InDelta(t, 0.031, v, 1e-12)
	v, err = GetOrLoad(ctx, c, "div:KO", time.Hour, load)
	require.NoError(t, err)
	assert.InDelta(t, 0.031, v, 1e-12)
	assert.Equal(t, 1, calls)

	_, err = GetOrLoad(ctx, c, "div:XX", time.Hour, func(context.Context) (float64, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
	var f float64
	assert.ErrorIs(t, c.Get(ctx, "div:XX", &f), ErrCacheMiss)
}

package usecase

import (
	"context"
	"testing"
	"time"

	"FinRank/internal/domain/models"
	"FinRank/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTicker(t *testing.T) {
	cases := map[string]bool{
		"AAPL": true, "BRK.B": true, "A": true, "GOOGL": true,
		"brk.b": false, "123": false, "TOOLONG": false, "BRK.BB": false, "": false, "DX-Y.NYB": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, models.IsValidTicker(in), in)
	}
}

func TestUniverse_MergesDedupesAndValidates(t *testing.T) {
	src := &fakeHoldings{lists: map[string][]string{
		"SPY": {"AAPL", "MSFT", "brk.b", "BRK.B"},
		"MDY": {"MSFT", "123", "KO"},
	}}
	b := NewUniverseBuilder(src, []string{"SPY", "MDY"}, "", nil, time.Hour, nil, nil)

	u, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT", "BRK.B", "KO", models.CashIndexTicker}, u.Valid)
	assert.Equal(t, []string{"brk.b", "123"}, u.Invalid)
	assert.Equal(t, map[string]int{"SPY": 4, "MDY": 3}, u.PerSource)
}

func TestUniverse_CashTickerAlwaysIncluded(t *testing.T) {
	src := &fakeHoldings{
		lists: map[string][]string{"MDY": {}},
		fail:  map[string]bool{"SPY": true, "SPSM": true},
	}
	b := NewUniverseBuilder(src, []string{"SPY", "MDY", "SPSM"}, "", nil, time.Hour, nil, nil)

	u, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{models.CashIndexTicker}, u.Valid)
	assert.Empty(t, u.Invalid)
}

func TestUniverse_ListedCashTickerIsNotInvalid(t *testing.T) {
	src := &fakeHoldings{lists: map[string][]string{"SPY": {"AAPL", models.CashIndexTicker, "123"}}}
	b := NewUniverseBuilder(src, []string{"SPY"}, "", nil, time.Hour, nil, nil)

	u, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", models.CashIndexTicker}, u.Valid)
	assert.Equal(t, []string{"123"}, u.Invalid)
}

func TestUniverse_CachesHoldings(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()

	src := &fakeHoldings{lists: map[string][]string{"SPY": {"AAPL"}}}
	b := NewUniverseBuilder(src, []string{"SPY"}, "", mc, time.Hour, nil, nil)

	for i := 0; i < 3; i++ {
		u, err := b.Build(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL", models.CashIndexTicker}, u.Valid)
	}
	assert.Equal(t, 1, src.calls)
}

func TestUniverse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewUniverseBuilder(&fakeHoldings{}, []string{"SPY"}, "", nil, time.Hour, nil, nil)
	_, err := b.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"FinRank/internal/domain/models"
	"FinRank/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDividendEnricher_JoinsYieldPerTicker(t *testing.T) {
	d1 := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	rows := []models.FeatureRow{
		{Ticker: "KO", Date: d1, Momentum: 0.1},
		{Ticker: "TSLA", Date: d1, Momentum: 0.2},
		{Ticker: "ERR", Date: d1},
		{Ticker: "KO", Date: d2, Momentum: 0.3},
		{Ticker: "NAN", Date: d2},
	}
	src := &fakeDividends{yields: map[string]float64{"KO": 0.031, "TSLA": 0, "NAN": math.NaN()}}
	e := NewDividendEnricher(src, nil, time.Hour, 2, nil, nil)

	out, err := e.Enrich(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, out, len(rows))

	assert.Equal(t, []float64{0.031, 0, 0, 0.031, 0}, []float64{
		out[0].DividendYield, out[1].DividendYield, out[2].DividendYield, out[3].DividendYield, out[4].DividendYield,
	})
	assert.Equal(t, 0.3, out[3].Momentum)
	assert.Equal(t, map[string]int{"KO": 1, "TSLA": 1, "ERR": 1, "NAN": 1}, src.calls)

	// input untouched
	assert.Equal(t, 0.0, rows[0].DividendYield)
}

func TestDividendEnricher_UsesCache(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	src := &fakeDividends{yields: map[string]float64{"KO": 0.03}}
	e := NewDividendEnricher(src, mc, time.Hour, 100, nil, nil)
	rows := []models.FeatureRow{{Ticker: "KO"}}

	for i := 0; i < 2; i++ {
		out, err := e.Enrich(context.Background(), rows)
		require.NoError(t, err)
		assert.Equal(t, 0.03, out[0].DividendYield)
	}
	assert.Equal(t, 1, src.calls["KO"])
}

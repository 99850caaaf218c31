package usecase

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"FinRank/internal/domain/models"
	"FinRank/internal/services/features"
	"FinRank/internal/services/ranking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthEnd(y int, m time.Month) time.Time {
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

func featureTable(months, tickers int) []models.FeatureRow {
	rng := rand.New(rand.NewSource(3))
	var rows []models.FeatureRow
	for m := 0; m < months; m++ {
		date := monthEnd(2022, time.Month(1+m))
		for t := 0; t < tickers; t++ {
			mom := rng.NormFloat64() * 0.2
			r := models.FeatureRow{
				Ticker:            "T" + string(rune('A'+t)),
				Date:              date,
				Momentum:          mom,
				Volatility:        0.3,
				AvgCorrelation:    0.2,
				MaxCorrelation:    0.6,
				MinCorrelation:    -0.1,
				MarketCorrelation: 0.5,
				Sharpe:            mom * 3,
				MomentumAccel:     rng.NormFloat64() * 0.05,
				DividendYield:     float64(t%4) * 0.01,
				FutureReturn:      mom,
			}
			if mom > 0 {
				r.BeatMarket = 1
			}
			rows = append(rows, r)
		}
	}
	return rows
}

func fastModel() *ranking.Model {
	return ranking.NewModel(ranking.GBMFactory(ranking.GBMParams{Rounds: 30}), nil, nil)
}

func TestRecommendPipeline_BuildsAllLists(t *testing.T) {
	store := &memStore{rows: featureTable(8, 20)}
	pub := &recordingPublisher{}
	p := NewRecommendPipeline(store, fastModel(), pub, DefaultRecommendConfig(), nil, nil)

	recs, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, recs.RunID)
	assert.Equal(t, monthEnd(2022, time.August), recs.AsOf)
	assert.Equal(t, 20, recs.Analyzed)
	assert.GreaterOrEqual(t, recs.AboveHalf, recs.Above55)

	names := make([]string, len(recs.Lists))
	for i, l := range recs.Lists {
		names[i] = l.Name
		assert.Equal(t, recs.AsOf, l.AsOf)
	}
	assert.Equal(t, []string{ListTop, ListDiversified, ListStrict, ListDividend, ListExport}, names)
	assert.Equal(t, names, pub.lists)
	assert.Len(t, store.picks, 5)

	top, _ := recs.List(ListTop)
	for i, pk := range top.Picks {
		assert.GreaterOrEqual(t, pk.ProbBeatMarket, 0.5)
		assert.Nil(t, pk.AvgCorrWithPicks)
		if i > 0 {
			assert.LessOrEqual(t, pk.ProbBeatMarket, top.Picks[i-1].ProbBeatMarket)
		}
	}
	div, _ := recs.List(ListDividend)
	for _, pk := range div.Picks {
		assert.GreaterOrEqual(t, pk.DividendYield, 0.02)
		require.NotNil(t, pk.AvgCorrWithPicks)
	}
	strict, _ := recs.List(ListStrict)
	assert.LessOrEqual(t, len(strict.Picks), 15)
}

func TestRecommendPipeline_EmptyTable(t *testing.T) {
	store := &memStore{}
	p := NewRecommendPipeline(store, fastModel(), nil, DefaultRecommendConfig(), nil, nil)

	recs, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, recs.Analyzed)
	assert.Empty(t, recs.Lists)
}

func TestRecommendPipeline_PublishFailureIsNotFatal(t *testing.T) {
	store := &memStore{rows: featureTable(6, 10)}
	p := NewRecommendPipeline(store, fastModel(), &recordingPublisher{fail: true}, DefaultRecommendConfig(), nil, nil)

	_, err := p.Run(context.Background())
	assert.NoError(t, err)
	assert.Len(t, store.picks, 5)
}

func TestRecommendPipeline_Evaluate(t *testing.T) {
	store := &memStore{rows: featureTable(10, 10)}
	p := NewRecommendPipeline(store, fastModel(), nil, DefaultRecommendConfig(), nil, nil)

	ev, err := p.Evaluate(context.Background(), 0.7)
	require.NoError(t, err)
	assert.Equal(t, monthEnd(2022, time.August), ev.SplitDate)
	assert.Equal(t, 80, ev.TrainRows)
	assert.Equal(t, 20, ev.TestRows)
}

func TestGeneratePipeline_EndToEnd(t *testing.T) {
	holdings := &fakeHoldings{lists: map[string][]string{"SPY": {"AAA", "BBB", "bad"}}}
	prices := &fakePrices{days: 300}
	divs := &fakeDividends{yields: map[string]float64{"AAA": 0.02}}
	store := &memStore{}

	u := NewUniverseBuilder(holdings, []string{"SPY"}, "", nil, time.Hour, nil, nil)
	f := NewPriceFetcher(prices, fetchConfig(), &recordingSleeper{}, nil, nil)
	e := features.NewEngine(features.DefaultConfig(), nil, nil)
	d := NewDividendEnricher(divs, nil, time.Hour, 100, nil, nil)
	p := NewGeneratePipeline(u, f, e, d, store, nil, nil)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Universe) // AAA, BBB and the cash index
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, 3, res.Fetch.Retrieved)
	require.NotZero(t, res.Rows)
	assert.Equal(t, res.Rows, len(store.rows))
	assert.Equal(t, []string{res.RunID}, store.runs)

	for _, r := range store.rows {
		assert.False(t, math.IsNaN(r.Volatility))
		if r.Ticker == "AAA" {
			assert.Equal(t, 0.02, r.DividendYield)
		} else {
			assert.Equal(t, 0.0, r.DividendYield)
		}
	}
}

func TestGeneratePipeline_AllSourcesDown(t *testing.T) {
	holdings := &fakeHoldings{fail: map[string]bool{"SPY": true}}
	prices := &fakePrices{days: 300, never: map[string]bool{models.CashIndexTicker: true}}
	store := &memStore{}

	p := NewGeneratePipeline(
		NewUniverseBuilder(holdings, []string{"SPY"}, "", nil, time.Hour, nil, nil),
		NewPriceFetcher(prices, fetchConfig(), &recordingSleeper{}, nil, nil),
		features.NewEngine(features.DefaultConfig(), nil, nil),
		nil, store, nil, nil,
	)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)
	assert.Len(t, store.runs, 1)
	assert.Empty(t, store.rows)
}

package selection

import (
	"math"
	"testing"

	"FinRank/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type corrTable map[[2]string]float64

func (c corrTable) Corr(a, b string) (float64, bool) {
	if a == b {
		return 1, c.known(a)
	}
	if v, ok := c[[2]string{a, b}]; ok {
		return v, true
	}
	if v, ok := c[[2]string{b, a}]; ok {
		return v, true
	}
	return math.NaN(), false
}

func (c corrTable) known(t string) bool {
	for k := range c {
		if k[0] == t || k[1] == t {
			return true
		}
	}
	return false
}

func cand(ticker string, prob float64) models.RankedCandidate {
	return models.RankedCandidate{
		FeatureRow:     models.FeatureRow{Ticker: ticker, Volatility: 0.3},
		ProbBeatMarket: prob,
	}
}

func tickers(picks []models.Pick) []string {
	out := make([]string, len(picks))
	for i, p := range picks {
		out[i] = p.Ticker
	}
	return out
}

func TestDiversified_SkipsCorrelatedCandidate(t *testing.T) {
	cands := []models.RankedCandidate{cand("C", 0.7), cand("A", 0.9), cand("B", 0.8)}
	corr := corrTable{{"A", "B"}: 0.6, {"A", "C"}: 0.2, {"B", "C"}: 0.3}

	picks := Diversified(cands, corr, Params{MinProb: 0.5, MaxCorrelation: 0.5, N: 2})

	assert.Equal(t, []string{"A", "C"}, tickers(picks))
	require.NotNil(t, picks[0].AvgCorrWithPicks)
	assert.InDelta(t, 0.2, *picks[0].AvgCorrWithPicks, 1e-12)
	assert.InDelta(t, 0.2, *picks[1].AvgCorrWithPicks, 1e-12)
}

func TestDiversified_MissingOrNaNCorrelationDoesNotBlock(t *testing.T) {
	cands := []models.RankedCandidate{cand("A", 0.9), cand("B", 0.8), cand("NEW", 0.7)}
	corr := corrTable{{"A", "B"}: math.NaN()}

	picks := Diversified(cands, corr, Params{MinProb: 0.5, MaxCorrelation: 0.1, N: 5})

	assert.Equal(t, []string{"A", "B", "NEW"}, tickers(picks))
	for _, p := range picks {
		assert.Equal(t, 0.0, *p.AvgCorrWithPicks)
	}
}

func TestDiversified_ThresholdAndOrder(t *testing.T) {
	cands := []models.RankedCandidate{cand("A", 0.6), cand("B", 0.6), cand("LOW", 0.49), cand("C", 0.8)}
	corr := corrTable{{"A", "C"}: -0.5, {"B", "C"}: 0.51}

	picks := Diversified(cands, corr, Params{MinProb: 0.5, MaxCorrelation: 0.5, N: 10})

	// |corr| equal to the limit is allowed; ties keep input order
	assert.Equal(t, []string{"C", "A"}, tickers(picks))
}

func TestDiversified_Empty(t *testing.T) {
	assert.Nil(t, Diversified(nil, corrTable{}, Params{MinProb: 0.5, MaxCorrelation: 0.5, N: 3}))
	assert.Nil(t, Diversified([]models.RankedCandidate{cand("A", 0.2)}, corrTable{}, Params{MinProb: 0.5, N: 3}))
}

func TestDiversified_Deterministic(t *testing.T) {
	cands := []models.RankedCandidate{
		cand("A", 0.9), cand("B", 0.85), cand("C", 0.85), cand("D", 0.7), cand("E", 0.65),
	}
	corr := corrTable{{"A", "B"}: 0.9, {"C", "D"}: 0.4, {"A", "E"}: 0.45}
	p := Params{MinProb: 0.5, MaxCorrelation: 0.5, N: 4}

	first := tickers(Diversified(cands, corr, p))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, tickers(Diversified(cands, corr, p)))
	}
	assert.Equal(t, []string{"A", "C", "D", "E"}, first)
}

func TestTopPicks(t *testing.T) {
	hiVol := cand("VOL", 0.95)
	hiVol.Volatility = 1.5
	payer := cand("DIV", 0.7)
	payer.DividendYield = 0.03
	cands := []models.RankedCandidate{cand("A", 0.6), hiVol, payer, cand("B", 0.8), cand("X", 0.3)}

	picks := TopPicks(cands, Filter{MinProb: 0.5, MaxVolatility: 1, N: 2})
	assert.Equal(t, []string{"B", "DIV"}, tickers(picks))
	assert.Nil(t, picks[0].AvgCorrWithPicks)

	picks = TopPicks(cands, Filter{MinProb: 0.5, MinDividend: 0.02, MaxVolatility: 1, N: 10})
	assert.Equal(t, []string{"DIV"}, tickers(picks))
}

func TestDividendPicks(t *testing.T) {
	in := []models.Pick{
		{Ticker: "A", DividendYield: 0.01},
		{Ticker: "B", DividendYield: 0.02},
		{Ticker: "C", DividendYield: 0.05},
		{Ticker: "D", DividendYield: 0.04},
	}
	assert.Equal(t, []string{"B", "C"}, tickers(DividendPicks(in, 0.02, 2)))
}

func TestPickCorrelations(t *testing.T) {
	corr := corrTable{{"A", "B"}: 0.25, {"A", "C"}: math.NaN()}
	picks := []models.Pick{{Ticker: "A"}, {Ticker: "ZZZ"}, {Ticker: "B"}, {Ticker: "C"}}

	table := PickCorrelations(picks, corr)

	assert.Equal(t, []string{"A", "B", "C"}, table.Tickers)
	require.NotNil(t, table.Values[0][1])
	assert.Equal(t, 0.25, *table.Values[0][1])
	assert.Equal(t, 1.0, *table.Values[2][2])
	assert.Nil(t, table.Values[0][2])
	assert.Nil(t, table.Values[1][2])
}

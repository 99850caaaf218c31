package selection

import (
	"math"
	"sort"

	"FinRank/internal/domain/models"
	"FinRank/internal/domain/service"
)

// Params bounds a diversified selection.
type Params struct {
	MinProb        float64
	MaxCorrelation float64
	N              int
}

// Filter bounds a plain top-N selection.
type Filter struct {
	MinProb       float64
	MinDividend   float64
	MaxVolatility float64
	N             int
}

// Ranked returns the candidates with prob >= minProb, highest probability
// first. Equal probabilities keep input order.
func Ranked(cands []models.RankedCandidate, minProb float64) []models.RankedCandidate {
	out := make([]models.RankedCandidate, 0, len(cands))
	for _, c := range cands {
		if c.ProbBeatMarket >= minProb {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProbBeatMarket > out[j].ProbBeatMarket
	})
	return out
}

// Diversified greedily picks up to p.N candidates whose absolute pairwise
// correlation with every earlier pick is at most p.MaxCorrelation. A pair
// with no known or a NaN correlation never blocks a candidate.
func Diversified(cands []models.RankedCandidate, corr service.CorrelationLookup, p Params) []models.Pick {
	ranked := Ranked(cands, p.MinProb)
	if len(ranked) == 0 || p.N <= 0 {
		return nil
	}

	selected := []models.RankedCandidate{ranked[0]}
	chosen := map[string]bool{ranked[0].Ticker: true}
	for _, c := range ranked[1:] {
		if len(selected) >= p.N {
			break
		}
		if chosen[c.Ticker] {
			continue
		}
		if blocked(c.Ticker, selected, corr, p.MaxCorrelation) {
			continue
		}
		selected = append(selected, c)
		chosen[c.Ticker] = true
	}

	picks := make([]models.Pick, len(selected))
	for i, c := range selected {
		picks[i] = models.PickFromCandidate(c)
		avg := avgCorrWithPicks(c.Ticker, selected, corr)
		picks[i].AvgCorrWithPicks = &avg
	}
	return picks
}

func blocked(ticker string, selected []models.RankedCandidate, corr service.CorrelationLookup, max float64) bool {
	for _, s := range selected {
		v, ok := corr.Corr(ticker, s.Ticker)
		if !ok || math.IsNaN(v) {
			continue
		}
		if math.Abs(v) > max {
			return true
		}
	}
	return false
}

// avgCorrWithPicks is the mean |corr| against the other picks, counting only
// computable pairs. 0 when there are none.
func avgCorrWithPicks(ticker string, selected []models.RankedCandidate, corr service.CorrelationLookup) float64 {
	var sum float64
	n := 0
	for _, s := range selected {
		if s.Ticker == ticker {
			continue
		}
		v, ok := corr.Corr(ticker, s.Ticker)
		if !ok || math.IsNaN(v) {
			continue
		}
		sum += math.Abs(v)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// TopPicks returns the N most probable candidates passing f, without any
// diversification constraint.
func TopPicks(cands []models.RankedCandidate, f Filter) []models.Pick {
	var picks []models.Pick
	for _, c := range Ranked(cands, f.MinProb) {
		if f.N > 0 && len(picks) >= f.N {
			break
		}
		if c.DividendYield < f.MinDividend || c.Volatility > f.MaxVolatility {
			continue
		}
		picks = append(picks, models.PickFromCandidate(c))
	}
	return picks
}

// DividendPicks narrows a diversified set to payers yielding at least
// minYield, keeping the first n.
func DividendPicks(diversified []models.Pick, minYield float64, n int) []models.Pick {
	var out []models.Pick
	for _, p := range diversified {
		if n > 0 && len(out) >= n {
			break
		}
		if p.DividendYield >= minYield {
			out = append(out, p)
		}
	}
	return out
}

// PickCorrelations tabulates the picks known to corr, in pick order.
func PickCorrelations(picks []models.Pick, corr service.CorrelationLookup) models.CorrelationTable {
	var t models.CorrelationTable
	for _, p := range picks {
		if _, ok := corr.Corr(p.Ticker, p.Ticker); ok {
			t.Tickers = append(t.Tickers, p.Ticker)
		}
	}
	t.Values = make([][]*float64, len(t.Tickers))
	for i, a := range t.Tickers {
		t.Values[i] = make([]*float64, len(t.Tickers))
		for j, b := range t.Tickers {
			if v, ok := corr.Corr(a, b); ok && !math.IsNaN(v) {
				v := v
				t.Values[i][j] = &v
			}
		}
	}
	return t
}

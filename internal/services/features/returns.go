package features

import (
	"math"
	"sort"
	"time"

	"FinRank/internal/domain/models"
)

// TradingDaysPerYear annualizes daily volatility.
const TradingDaysPerYear = 252

// ComputeReturns returns simple daily returns for every panel column.
// Gaps after a column's first observation carry the previous close forward,
// so they produce a 0 return; rows before the first observation stay NaN.
func ComputeReturns(p *models.PricePanel) map[string][]float64 {
	out := make(map[string][]float64, len(p.Tickers))
	for _, t := range p.Tickers {
		out[t] = padReturns(p.Closes[t])
	}
	return out
}

func padReturns(closes []float64) []float64 {
	r := make([]float64, len(closes))
	last := math.NaN()
	for i, c := range closes {
		prev := last
		if !math.IsNaN(c) {
			last = c
		}
		if math.IsNaN(prev) || math.IsNaN(last) {
			r[i] = math.NaN()
			continue
		}
		r[i] = last/prev - 1
	}
	return r
}

// window is a half-open row range [lo, hi) of the panel.
type window struct {
	lo, hi int
}

func (w window) len() int { return w.hi - w.lo }

// dateWindow selects rows whose date lies in [from, to], both inclusive.
func dateWindow(dates []time.Time, from, to time.Time) window {
	lo := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(from) })
	hi := sort.Search(len(dates), func(i int) bool { return dates[i].After(to) })
	if hi < lo {
		hi = lo
	}
	return window{lo: lo, hi: hi}
}

// present copies the non-NaN values of col inside w into buf.
func present(buf []float64, col []float64, w window) []float64 {
	buf = buf[:0]
	for _, v := range col[w.lo:w.hi] {
		if !math.IsNaN(v) {
			buf = append(buf, v)
		}
	}
	return buf
}

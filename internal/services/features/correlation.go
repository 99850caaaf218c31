package features

import (
	"math"
	"sort"
	"time"

	"FinRank/internal/domain/models"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CorrMatrix is a symmetric ticker x ticker correlation matrix. Entries may
// be NaN when a pair has too little overlap.
type CorrMatrix struct {
	tickers []string
	index   map[string]int
	values  []float64
}

func newCorrMatrix(tickers []string) *CorrMatrix {
	n := len(tickers)
	m := &CorrMatrix{
		tickers: tickers,
		index:   make(map[string]int, n),
		values:  make([]float64, n*n),
	}
	for i, t := range tickers {
		m.index[t] = i
	}
	return m
}

// Tickers returns the matrix labels in order.
func (m *CorrMatrix) Tickers() []string { return m.tickers }

// Corr implements service.CorrelationLookup.
func (m *CorrMatrix) Corr(a, b string) (float64, bool) {
	i, ok := m.index[a]
	if !ok {
		return math.NaN(), false
	}
	j, ok := m.index[b]
	if !ok {
		return math.NaN(), false
	}
	return m.values[i*len(m.tickers)+j], true
}

// Column returns the correlations of ticker with every other ticker,
// excluding itself.
func (m *CorrMatrix) Column(ticker string) []float64 {
	i, ok := m.index[ticker]
	if !ok {
		return nil
	}
	n := len(m.tickers)
	out := make([]float64, 0, n-1)
	for j := 0; j < n; j++ {
		if j != i {
			out = append(out, m.values[i*n+j])
		}
	}
	return out
}

// PairwiseCorrelation computes pairwise-complete Pearson correlations of the
// given equally long columns. Pairs of gap-free columns take a fast path
// through pre-normalized vectors.
func PairwiseCorrelation(tickers []string, cols [][]float64) *CorrMatrix {
	m := newCorrMatrix(tickers)
	n := len(tickers)
	unit := make([][]float64, n)
	for i, c := range cols {
		unit[i] = unitVector(c)
	}

	var buf pairBuffers
	for i := 0; i < n; i++ {
		m.values[i*n+i] = selfCorr(cols[i])
		for j := i + 1; j < n; j++ {
			var c float64
			if unit[i] != nil && unit[j] != nil {
				c = clampCorr(floats.Dot(unit[i], unit[j]))
			} else {
				c = buf.pearson(cols[i], cols[j])
			}
			m.values[i*n+j] = c
			m.values[j*n+i] = c
		}
	}
	return m
}

// unitVector centers col and scales it to unit length. It returns nil for
// columns with gaps or without variance.
func unitVector(col []float64) []float64 {
	if len(col) < 2 || floats.HasNaN(col) || isConstant(col) {
		return nil
	}
	u := make([]float64, len(col))
	copy(u, col)
	floats.AddConst(-stat.Mean(u, nil), u)
	norm := floats.Norm(u, 2)
	if norm == 0 {
		return nil
	}
	floats.Scale(1/norm, u)
	return u
}

func clampCorr(c float64) float64 {
	return math.Max(-1, math.Min(1, c))
}

// selfCorr is 1 for a column with variance, NaN otherwise.
func selfCorr(col []float64) float64 {
	var buf pairBuffers
	return buf.pearson(col, col)
}

// ReturnCorrelation builds the matrix of daily-return correlations over the
// rows of the panel dated within [from, to].
func ReturnCorrelation(p *models.PricePanel, from, to time.Time) *CorrMatrix {
	returns := ComputeReturns(p)
	w := dateWindow(p.Dates, from, to)
	cols := make([][]float64, len(p.Tickers))
	for i, t := range p.Tickers {
		cols[i] = returns[t][w.lo:w.hi]
	}
	return PairwiseCorrelation(p.Tickers, cols)
}

// PivotCorrelation pivots rows into a date x ticker table of value(row) and
// correlates the ticker columns. Tickers keep first-seen order; duplicate
// (date, ticker) cells keep the first value.
func PivotCorrelation(rows []models.FeatureRow, value func(models.FeatureRow) float64) *CorrMatrix {
	var tickers []string
	tIndex := make(map[string]int)
	dIndex := make(map[int64]int)
	var dates []time.Time
	for _, r := range rows {
		if _, ok := tIndex[r.Ticker]; !ok {
			tIndex[r.Ticker] = len(tickers)
			tickers = append(tickers, r.Ticker)
		}
		key := r.Date.Unix()
		if _, ok := dIndex[key]; !ok {
			dIndex[key] = len(dates)
			dates = append(dates, r.Date)
		}
	}

	order := make([]int, len(dates))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return dates[order[a]].Before(dates[order[b]]) })
	rank := make([]int, len(dates))
	for pos, i := range order {
		rank[i] = pos
	}

	cols := make([][]float64, len(tickers))
	for i := range cols {
		cols[i] = make([]float64, len(dates))
		for j := range cols[i] {
			cols[i][j] = math.NaN()
		}
	}
	filled := make([][]bool, len(tickers))
	for i := range filled {
		filled[i] = make([]bool, len(dates))
	}
	for _, r := range rows {
		i, j := tIndex[r.Ticker], rank[dIndex[r.Date.Unix()]]
		if filled[i][j] {
			continue
		}
		cols[i][j] = value(r)
		filled[i][j] = true
	}
	return PairwiseCorrelation(tickers, cols)
}

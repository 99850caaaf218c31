package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// pairBuffers holds scratch space for pairwise-complete statistics.
type pairBuffers struct {
	x, y []float64
}

// pearson returns the Pearson correlation of x and y over the rows where both
// are present. Fewer than two complete pairs, or a constant side, give NaN.
func (b *pairBuffers) pearson(x, y []float64) float64 {
	b.x, b.y = b.x[:0], b.y[:0]
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		b.x = append(b.x, x[i])
		b.y = append(b.y, y[i])
	}
	if len(b.x) < 2 {
		return math.NaN()
	}
	if isConstant(b.x) || isConstant(b.y) {
		return math.NaN()
	}
	return clampCorr(stat.Correlation(b.x, b.y, nil))
}

func isConstant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

// rowMean averages every row of cols across columns, skipping NaN. Rows with
// no value are NaN.
func rowMean(cols [][]float64, w window) []float64 {
	out := make([]float64, w.len())
	for i := range out {
		sum, n := 0.0, 0
		for _, c := range cols {
			if v := c[w.lo+i]; !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(n)
	}
	return out
}

// nanSum adds the present values of v. An all-missing slice sums to 0.
func nanSum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		if !math.IsNaN(x) {
			s += x
		}
	}
	return s
}

// nanSummary returns mean, max and min of the present values of v.
func nanSummary(v []float64) (mean, max, min float64) {
	vals := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			vals = append(vals, x)
		}
	}
	if len(vals) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	return stat.Mean(vals, nil), floats.Max(vals), floats.Min(vals)
}

// sampleStd is the ddof=1 standard deviation; NaN below two values.
func sampleStd(v []float64) float64 {
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.StdDev(v, nil)
}

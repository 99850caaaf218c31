package ranking

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// GBMParams configures GradientBoosting.
type GBMParams struct {
	Rounds       int
	Depth        int
	LearningRate float64
	Lambda       float64 // L2 regularization on leaf weights
	MaxBins      int
	MinLeaf      int
	Subsample    float64
	Seed         int64
}

// DefaultGBMParams is a shallow, slow-learning ensemble that holds up on
// small, noisy monthly panels.
func DefaultGBMParams() GBMParams {
	return GBMParams{
		Rounds:       200,
		Depth:        4,
		LearningRate: 0.05,
		Lambda:       3,
		MaxBins:      64,
		MinLeaf:      1,
		Subsample:    0.8,
		Seed:         42,
	}
}

const minChildHessian = 1e-3

// GradientBoosting is a histogram gradient-boosted tree ensemble for binary
// classification with logistic loss. Fits are deterministic for a given seed.
type GradientBoosting struct {
	params    GBMParams
	base      float64
	trees     []tree
	nFeatures int
}

// NewGradientBoosting creates an untrained ensemble.
func NewGradientBoosting(p GBMParams) *GradientBoosting {
	d := DefaultGBMParams()
	if p.Rounds <= 0 {
		p.Rounds = d.Rounds
	}
	if p.Depth <= 0 {
		p.Depth = d.Depth
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.Lambda < 0 {
		p.Lambda = 0
	}
	if p.MaxBins < 2 || p.MaxBins > 255 {
		p.MaxBins = d.MaxBins
	}
	if p.MinLeaf < 1 {
		p.MinLeaf = 1
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = 1
	}
	return &GradientBoosting{params: p}
}

// node is a split when left >= 0, a leaf otherwise. Missing values go left.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

type tree []node

func (t tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t[i]
		if n.left < 0 {
			return n.value
		}
		if v := x[n.feature]; math.IsNaN(v) || v <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// Fit trains the ensemble on x (rows x features) and binary labels y.
func (g *GradientBoosting) Fit(x [][]float64, y []int) error {
	if len(x) == 0 {
		return errors.New("gbm: no training rows")
	}
	if len(x) != len(y) {
		return fmt.Errorf("gbm: %d rows but %d labels", len(x), len(y))
	}
	g.nFeatures = len(x[0])
	for i, row := range x {
		if len(row) != g.nFeatures {
			return fmt.Errorf("gbm: row %d has %d features, want %d", i, len(row), g.nFeatures)
		}
	}

	n := len(x)
	pos := 0
	for _, v := range y {
		if v != 0 {
			pos++
		}
	}
	prior := clamp(float64(pos)/float64(n), 1e-6, 1-1e-6)
	g.base = math.Log(prior / (1 - prior))
	g.trees = g.trees[:0]

	cuts := make([][]float64, g.nFeatures)
	for f := range cuts {
		cuts[f] = binEdges(x, f, g.params.MaxBins)
	}
	bins := make([][]uint8, n)
	for i, row := range x {
		bins[i] = make([]uint8, g.nFeatures)
		for f, v := range row {
			bins[i][f] = binOf(cuts[f], v)
		}
	}

	b := &builder{
		params: g.params,
		cuts:   cuts,
		bins:   bins,
		grad:   make([]float64, n),
		hess:   make([]float64, n),
	}
	score := make([]float64, n)
	for i := range score {
		score[i] = g.base
	}
	rng := rand.New(rand.NewSource(g.params.Seed))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for round := 0; round < g.params.Rounds; round++ {
		for i := range score {
			p := sigmoid(score[i])
			b.grad[i] = p - float64(y[i])
			b.hess[i] = math.Max(p*(1-p), 1e-12)
		}

		sample := all
		if g.params.Subsample < 1 {
			sample = make([]int, 0, int(float64(n)*g.params.Subsample)+1)
			for i := 0; i < n; i++ {
				if rng.Float64() < g.params.Subsample {
					sample = append(sample, i)
				}
			}
			if len(sample) == 0 {
				sample = all
			}
		}

		t := b.build(sample)
		g.trees = append(g.trees, t)
		for i, row := range x {
			score[i] += t.predict(row)
		}
	}
	return nil
}

// PredictProba returns P(y=1) for each row. An untrained model returns 0.5.
func (g *GradientBoosting) PredictProba(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		s := g.base
		for _, t := range g.trees {
			s += t.predict(row)
		}
		out[i] = sigmoid(s)
	}
	return out
}

// Trees reports the number of fitted trees.
func (g *GradientBoosting) Trees() int { return len(g.trees) }

type builder struct {
	params GBMParams
	cuts   [][]float64
	bins   [][]uint8
	grad   []float64
	hess   []float64
	nodes  tree
}

func (b *builder) build(rows []int) tree {
	b.nodes = make(tree, 0, 1<<(b.params.Depth+1))
	b.grow(rows, 0)
	return b.nodes
}

type split struct {
	gain    float64
	feature int
	bin     int
}

func (b *builder) grow(rows []int, depth int) int {
	id := len(b.nodes)
	b.nodes = append(b.nodes, node{left: -1, right: -1})

	var gSum, hSum float64
	for _, i := range rows {
		gSum += b.grad[i]
		hSum += b.hess[i]
	}
	leaf := -gSum / (hSum + b.params.Lambda) * b.params.LearningRate

	if depth >= b.params.Depth || len(rows) < 2*b.params.MinLeaf {
		b.nodes[id].value = leaf
		return id
	}

	best, ok := b.bestSplit(rows, gSum, hSum)
	if !ok {
		b.nodes[id].value = leaf
		return id
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, i := range rows {
		if int(b.bins[i][best.feature]) <= best.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = node{
		feature:   best.feature,
		threshold: b.cuts[best.feature][best.bin],
		left:      l,
		right:     r,
	}
	return id
}

func (b *builder) bestSplit(rows []int, gSum, hSum float64) (split, bool) {
	lambda := b.params.Lambda
	parent := gSum * gSum / (hSum + lambda)
	best := split{gain: 1e-12}
	found := false

	for f, cuts := range b.cuts {
		if len(cuts) == 0 {
			continue
		}
		nb := len(cuts) + 1
		gh := make([]float64, nb)
		hh := make([]float64, nb)
		ch := make([]int, nb)
		for _, i := range rows {
			k := b.bins[i][f]
			gh[k] += b.grad[i]
			hh[k] += b.hess[i]
			ch[k]++
		}

		var gl, hl float64
		cl := 0
		for k := 0; k < nb-1; k++ {
			gl += gh[k]
			hl += hh[k]
			cl += ch[k]
			cr := len(rows) - cl
			if cl < b.params.MinLeaf || cr < b.params.MinLeaf {
				continue
			}
			hr := hSum - hl
			if hl < minChildHessian || hr < minChildHessian {
				continue
			}
			gr := gSum - gl
			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent
			if gain > best.gain {
				best = split{gain: gain, feature: f, bin: k}
				found = true
			}
		}
	}
	return best, found
}

// binEdges picks up to maxBins-1 split thresholds for feature f at quantiles
// of its finite values. The largest value is never a threshold.
func binEdges(x [][]float64, f, maxBins int) []float64 {
	vals := make([]float64, 0, len(x))
	for _, row := range x {
		if v := row[f]; !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 {
		return nil
	}
	sort.Float64s(vals)
	maxV := vals[len(vals)-1]

	var cuts []float64
	for q := 1; q < maxBins; q++ {
		c := vals[q*len(vals)/maxBins]
		if c >= maxV {
			break
		}
		if len(cuts) > 0 && c <= cuts[len(cuts)-1] {
			continue
		}
		cuts = append(cuts, c)
	}
	if len(cuts) == 0 && vals[0] < maxV {
		cuts = append(cuts, vals[0])
	}
	return cuts
}

// binOf maps v to the first bin whose edge is >= v. NaN falls in bin 0.
func binOf(cuts []float64, v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(sort.SearchFloat64s(cuts, v))
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

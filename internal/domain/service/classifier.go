package service

// Classifier is a binary classifier with probability output. The ranking model
// only depends on this contract, so the tree ensemble can be swapped.
type Classifier interface {
	Fit(x [][]float64, y []int) error
	PredictProba(x [][]float64) []float64
}

// CorrelationLookup answers pairwise correlation queries. ok is false when
// either ticker is unknown to the underlying matrix.
type CorrelationLookup interface {
	Corr(a, b string) (v float64, ok bool)
}

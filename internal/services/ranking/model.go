package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"FinRank/internal/domain/models"
	"FinRank/internal/domain/repository"
	"FinRank/internal/domain/service"
	applogger "FinRank/pkg/logger"
)

// ErrNoTrainingData is returned when no finite feature row is available.
var ErrNoTrainingData = errors.New("no usable training rows")

// ClassifierFactory returns a fresh, untrained classifier per fit.
type ClassifierFactory func() service.Classifier

// GBMFactory builds GradientBoosting classifiers with fixed params.
func GBMFactory(p GBMParams) ClassifierFactory {
	return func() service.Classifier { return NewGradientBoosting(p) }
}

// Model trains a classifier on historical feature rows and scores the most
// recent month.
type Model struct {
	newClassifier ClassifierFactory
	log           *applogger.Logger
	metrics       repository.Metrics
}

// Ranking is the scored latest month.
type Ranking struct {
	AsOf       time.Time
	TrainRows  int
	Dropped    int
	Candidates []models.RankedCandidate
}

// Evaluation is the out-of-sample result of a walk-forward split.
type Evaluation struct {
	SplitDate time.Time `json:"split_date"`
	TrainRows int       `json:"train_rows"`
	TestRows  int       `json:"test_rows"`
	Accuracy  float64   `json:"accuracy"`
	LogLoss   float64   `json:"log_loss"`
	AUC       float64   `json:"auc"`
	BaseRate  float64   `json:"base_rate"`
}

// MarshalJSON writes an undefined AUC (single-class test set) as null.
func (e Evaluation) MarshalJSON() ([]byte, error) {
	type plain Evaluation
	out := struct {
		plain
		AUC *float64 `json:"auc"`
	}{plain: plain(e)}
	if !math.IsNaN(e.AUC) {
		out.AUC = &e.AUC
	}
	return json.Marshal(out)
}

// NewModel creates a model. A nil factory uses GradientBoosting with defaults.
func NewModel(factory ClassifierFactory, l *applogger.Logger, m repository.Metrics) *Model {
	if factory == nil {
		factory = GBMFactory(DefaultGBMParams())
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Model{newClassifier: factory, log: l, metrics: m}
}

// CleanRows drops rows with any NaN or infinite input or target.
func CleanRows(rows []models.FeatureRow) []models.FeatureRow {
	out := make([]models.FeatureRow, 0, len(rows))
	for _, r := range rows {
		if r.Finite() {
			out = append(out, r)
		}
	}
	return out
}

// LatestDate returns the maximum row date.
func LatestDate(rows []models.FeatureRow) time.Time {
	var latest time.Time
	for _, r := range rows {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return latest
}

// Rank fits on every clean row (the latest month included, its labels being
// the realised forward window) and scores the latest month's tickers.
// Candidates keep input order.
func (m *Model) Rank(ctx context.Context, rows []models.FeatureRow) (Ranking, error) {
	clean := CleanRows(rows)
	res := Ranking{Dropped: len(rows) - len(clean)}
	if len(clean) == 0 {
		return res, ErrNoTrainingData
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	start := time.Now()
	clf := m.newClassifier()
	x, y := design(clean)
	if err := clf.Fit(x, y); err != nil {
		m.recordError("train")
		return res, fmt.Errorf("fit classifier: %w", err)
	}

	res.AsOf = LatestDate(clean)
	res.TrainRows = len(clean)
	var latest []models.FeatureRow
	for _, r := range clean {
		if r.Date.Equal(res.AsOf) {
			latest = append(latest, r)
		}
	}
	lx, _ := design(latest)
	probs := clf.PredictProba(lx)
	res.Candidates = make([]models.RankedCandidate, len(latest))
	for i, r := range latest {
		res.Candidates[i] = models.RankedCandidate{FeatureRow: r, ProbBeatMarket: probs[i]}
	}

	if m.metrics != nil {
		m.metrics.RecordLatency("rank", time.Since(start).Seconds())
	}
	m.log.Info("model scored latest month",
		applogger.Date("as_of", res.AsOf),
		applogger.Int("train_rows", res.TrainRows),
		applogger.Int("dropped_rows", res.Dropped),
		applogger.Int("candidates", len(res.Candidates)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return res, nil
}

// Evaluate trains on the first trainFraction of distinct dates (the split date
// included) and reports metrics on the rest.
func (m *Model) Evaluate(ctx context.Context, rows []models.FeatureRow, trainFraction float64) (Evaluation, error) {
	var ev Evaluation
	if trainFraction <= 0 || trainFraction >= 1 {
		return ev, fmt.Errorf("train fraction %.2f outside (0, 1)", trainFraction)
	}
	clean := CleanRows(rows)
	if len(clean) == 0 {
		return ev, ErrNoTrainingData
	}

	dates := distinctDates(clean)
	split := int(float64(len(dates)) * trainFraction)
	if split >= len(dates)-1 {
		return ev, fmt.Errorf("need at least two dates after the split, have %d dates", len(dates))
	}
	ev.SplitDate = dates[split]

	var train, test []models.FeatureRow
	for _, r := range clean {
		if r.Date.After(ev.SplitDate) {
			test = append(test, r)
		} else {
			train = append(train, r)
		}
	}
	if err := ctx.Err(); err != nil {
		return ev, err
	}

	start := time.Now()
	clf := m.newClassifier()
	x, y := design(train)
	if err := clf.Fit(x, y); err != nil {
		m.recordError("train")
		return ev, fmt.Errorf("fit classifier: %w", err)
	}
	tx, ty := design(test)
	probs := clf.PredictProba(tx)

	ev.TrainRows = len(train)
	ev.TestRows = len(test)
	ev.Accuracy = Accuracy(ty, probs)
	ev.LogLoss = LogLoss(ty, probs)
	ev.AUC = AUC(ty, probs)
	pos := 0
	for _, v := range ty {
		pos += v
	}
	ev.BaseRate = float64(pos) / float64(len(ty))

	if m.metrics != nil {
		m.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	}
	m.log.Info("walk-forward evaluation",
		applogger.Date("split_date", ev.SplitDate),
		applogger.Int("train_rows", ev.TrainRows),
		applogger.Int("test_rows", ev.TestRows),
		applogger.Float64("accuracy", ev.Accuracy),
		applogger.Float64("log_loss", ev.LogLoss),
		applogger.Float64("auc", ev.AUC),
	)
	return ev, nil
}

func (m *Model) recordError(kind string) {
	if m.metrics != nil {
		m.metrics.RecordError(kind)
	}
}

func design(rows []models.FeatureRow) ([][]float64, []int) {
	x := make([][]float64, len(rows))
	y := make([]int, len(rows))
	for i, r := range rows {
		x[i] = r.Features()
		y[i] = r.BeatMarket
	}
	return x, y
}

func distinctDates(rows []models.FeatureRow) []time.Time {
	seen := make(map[int64]time.Time)
	for _, r := range rows {
		seen[r.Date.Unix()] = r.Date
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Accuracy is the share of rows where p > 0.5 matches the label.
func Accuracy(y []int, p []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	hit := 0
	for i := range y {
		pred := 0
		if p[i] > 0.5 {
			pred = 1
		}
		if pred == y[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(y))
}

// LogLoss is the mean binary cross-entropy with probabilities clipped to
// [1e-15, 1-1e-15].
func LogLoss(y []int, p []float64) float64 {
	if len(y) == 0 {
		return math.NaN()
	}
	var sum float64
	for i := range y {
		q := clamp(p[i], 1e-15, 1-1e-15)
		if y[i] == 1 {
			sum -= math.Log(q)
		} else {
			sum -= math.Log(1 - q)
		}
	}
	return sum / float64(len(y))
}

// AUC is the probability that a random positive outranks a random negative,
// ties counting half. NaN when one class is absent.
func AUC(y []int, p []float64) float64 {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	var rankSum float64
	pos := 0
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && p[idx[j]] == p[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2 // mean of 1-based ranks i+1..j
		for k := i; k < j; k++ {
			if y[idx[k]] == 1 {
				rankSum += avg
				pos++
			}
		}
		i = j
	}
	neg := len(y) - pos
	if pos == 0 || neg == 0 {
		return math.NaN()
	}
	return (rankSum - float64(pos*(pos+1))/2) / float64(pos*neg)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinRank/internal/domain/models"
	drepo "FinRank/internal/domain/repository"
	"FinRank/internal/services/features"
	"FinRank/internal/services/ranking"
	"FinRank/internal/services/selection"
	applogger "FinRank/pkg/logger"

	"github.com/google/uuid"
)

// Pick list names.
const (
	ListTop         = "top"
	ListDiversified = "diversified"
	ListStrict      = "strict"
	ListDividend    = "dividend"
	ListExport      = "export"
)

// correlationTablePicks is how many diversified picks get a correlation table.
const correlationTablePicks = 10

// RecommendConfig holds the selection thresholds of a ranking run.
type RecommendConfig struct {
	MinProb              float64
	MaxCorrelation       float64
	TopN                 int
	StrictMaxCorrelation float64
	StrictTopN           int
	DividendMinYield     float64
	DividendPool         int
	DividendTopN         int
	ExportTopN           int
	MaxVolatility        float64
}

// DefaultRecommendConfig mirrors the research notebook's lists.
func DefaultRecommendConfig() RecommendConfig {
	return RecommendConfig{
		MinProb:              0.5,
		MaxCorrelation:       0.5,
		TopN:                 20,
		StrictMaxCorrelation: 0.3,
		StrictTopN:           15,
		DividendMinYield:     0.02,
		DividendPool:         50,
		DividendTopN:         15,
		ExportTopN:           50,
		MaxVolatility:        1,
	}
}

// RecommendPipeline ranks the latest month of the feature table and builds
// the pick lists.
type RecommendPipeline struct {
	store     drepo.FeatureStore
	model     *ranking.Model
	publisher drepo.PickPublisher
	cfg       RecommendConfig
	log       *applogger.Logger
	metrics   drepo.Metrics
}

// NewRecommendPipeline creates the pipeline. publisher may be nil.
func NewRecommendPipeline(store drepo.FeatureStore, model *ranking.Model, pub drepo.PickPublisher, cfg RecommendConfig, l *applogger.Logger, m drepo.Metrics) *RecommendPipeline {
	if l == nil {
		l = applogger.Nop()
	}
	return &RecommendPipeline{store: store, model: model, publisher: pub, cfg: cfg, log: l, metrics: m}
}

// Run loads the feature table, ranks it, then saves and publishes every list.
func (p *RecommendPipeline) Run(ctx context.Context) (*models.Recommendations, error) {
	rows, err := p.store.LoadFeatures(ctx)
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	recs, err := p.Recommend(ctx, rows)
	if err != nil {
		return nil, err
	}

	for _, list := range recs.Lists {
		if err := p.store.SavePicks(ctx, recs.RunID, list); err != nil {
			p.recordError("store")
			return recs, fmt.Errorf("save %s picks: %w", list.Name, err)
		}
		if p.publisher == nil {
			continue
		}
		if err := p.publisher.PublishPicks(ctx, recs.RunID, list); err != nil {
			// downstream consumers are optional
			p.recordError("publish")
			p.log.Warn("publish picks failed", applogger.String("list", list.Name), applogger.Error(err))
		}
	}
	return recs, nil
}

// Recommend ranks rows without touching storage. An empty or unusable table
// gives empty lists.
func (p *RecommendPipeline) Recommend(ctx context.Context, rows []models.FeatureRow) (*models.Recommendations, error) {
	recs := &models.Recommendations{RunID: uuid.NewString()}

	ranked, err := p.model.Rank(ctx, rows)
	if errors.Is(err, ranking.ErrNoTrainingData) {
		p.log.Warn("feature table has no usable rows", applogger.Int("rows", len(rows)))
		return recs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	recs.AsOf = ranked.AsOf
	recs.Candidates = ranked.Candidates
	recs.Analyzed = len(ranked.Candidates)
	for _, c := range ranked.Candidates {
		if c.ProbBeatMarket > 0.5 {
			recs.AboveHalf++
		}
		if c.ProbBeatMarket > 0.55 {
			recs.Above55++
		}
	}

	corr := features.PivotCorrelation(ranking.CleanRows(rows), func(r models.FeatureRow) float64 { return r.Momentum })
	cands := ranked.Candidates
	cfg := p.cfg
	diversify := func(maxCorr float64, n int) []models.Pick {
		return selection.Diversified(cands, corr, selection.Params{MinProb: cfg.MinProb, MaxCorrelation: maxCorr, N: n})
	}

	pool := diversify(cfg.MaxCorrelation, cfg.DividendPool)
	recs.Lists = []models.PickList{
		p.list(ListTop, fmt.Sprintf("Top %d by probability (not diversified)", cfg.TopN), ranked.AsOf, false,
			selection.TopPicks(cands, selection.Filter{MinProb: cfg.MinProb, MaxVolatility: cfg.MaxVolatility, N: cfg.TopN})),
		p.list(ListDiversified, fmt.Sprintf("Top %d diversified (correlation <= %.1f)", cfg.TopN, cfg.MaxCorrelation), ranked.AsOf, true,
			diversify(cfg.MaxCorrelation, cfg.TopN)),
		p.list(ListStrict, fmt.Sprintf("Top %d highly diversified (correlation <= %.1f)", cfg.StrictTopN, cfg.StrictMaxCorrelation), ranked.AsOf, true,
			diversify(cfg.StrictMaxCorrelation, cfg.StrictTopN)),
		p.list(ListDividend, fmt.Sprintf("Top %d diversified dividend payers (yield >= %.0f%%)", cfg.DividendTopN, cfg.DividendMinYield*100), ranked.AsOf, true,
			selection.DividendPicks(pool, cfg.DividendMinYield, cfg.DividendTopN)),
		p.list(ListExport, "Diversified export", ranked.AsOf, true,
			diversify(cfg.MaxCorrelation, cfg.ExportTopN)),
	}
	recs.Correlations = selection.PickCorrelations(diversify(cfg.MaxCorrelation, correlationTablePicks), corr)

	p.log.Info("recommendations ready",
		applogger.String("run_id", recs.RunID),
		applogger.Date("as_of", recs.AsOf),
		applogger.Int("analyzed", recs.Analyzed),
		applogger.Int("above_50", recs.AboveHalf),
		applogger.Int("above_55", recs.Above55),
	)
	return recs, nil
}

func (p *RecommendPipeline) list(name, title string, asOf time.Time, diversified bool, picks []models.Pick) models.PickList {
	if p.metrics != nil {
		p.metrics.RecordPicks(name, len(picks))
	}
	return models.PickList{Name: name, Title: title, AsOf: asOf, Diversified: diversified, Picks: picks}
}

func (p *RecommendPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

// Evaluate runs a walk-forward backtest over the stored feature table.
func (p *RecommendPipeline) Evaluate(ctx context.Context, trainFraction float64) (ranking.Evaluation, error) {
	rows, err := p.store.LoadFeatures(ctx)
	if err != nil {
		return ranking.Evaluation{}, fmt.Errorf("load features: %w", err)
	}
	return p.model.Evaluate(ctx, rows, trainFraction)
}

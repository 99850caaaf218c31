package usecase

import (
	"context"
	"fmt"
	"time"

	"FinRank/internal/domain/models"
	drepo "FinRank/internal/domain/repository"
	"FinRank/internal/services/features"
	applogger "FinRank/pkg/logger"

	"github.com/google/uuid"
)

// GenerateResult describes one feature-table build.
type GenerateResult struct {
	RunID    string                    `json:"run_id"`
	Universe int                       `json:"universe"`
	Invalid  int                       `json:"invalid"`
	Fetch    FetchReport               `json:"fetch"`
	Rows     int                       `json:"rows"`
	Skips    map[models.SkipReason]int `json:"skips"`
	From     time.Time                 `json:"from"`
	To       time.Time                 `json:"to"`
	Duration time.Duration             `json:"duration"`
}

// GeneratePipeline builds and persists the feature table:
// universe, prices, features, dividends, store.
type GeneratePipeline struct {
	universe  *UniverseBuilder
	fetcher   *PriceFetcher
	engine    *features.Engine
	dividends *DividendEnricher
	store     drepo.FeatureStore
	log       *applogger.Logger
	metrics   drepo.Metrics
}

// NewGeneratePipeline wires the stages. A nil dividends stage leaves yields at 0.
func NewGeneratePipeline(u *UniverseBuilder, f *PriceFetcher, e *features.Engine, d *DividendEnricher, store drepo.FeatureStore, l *applogger.Logger, m drepo.Metrics) *GeneratePipeline {
	if l == nil {
		l = applogger.Nop()
	}
	return &GeneratePipeline{universe: u, fetcher: f, engine: e, dividends: d, store: store, log: l, metrics: m}
}

// Run executes every stage. Upstream source failures shrink the output but
// never fail the run; an empty table is persisted as such.
func (p *GeneratePipeline) Run(ctx context.Context) (GenerateResult, error) {
	start := time.Now()
	res := GenerateResult{RunID: uuid.NewString()}
	log := p.log.With(applogger.String("run_id", res.RunID))
	log.Info("starting feature generation")

	u, err := p.universe.Build(ctx)
	if err != nil {
		return res, fmt.Errorf("build universe: %w", err)
	}
	res.Universe = len(u.Valid)
	res.Invalid = len(u.Invalid)

	panel, rep, err := p.fetcher.Fetch(ctx, u.Valid)
	res.Fetch = rep
	if err != nil {
		return res, fmt.Errorf("fetch prices: %w", err)
	}
	if panel.Empty() {
		log.Warn("no price data retrieved, writing empty feature table")
	}

	built, err := p.engine.Run(ctx, panel)
	if err != nil {
		return res, fmt.Errorf("build features: %w", err)
	}
	res.Skips = built.SkipCounts()
	rows := built.Rows

	if p.dividends != nil && len(rows) > 0 {
		rows, err = p.dividends.Enrich(ctx, rows)
		if err != nil {
			return res, fmt.Errorf("enrich dividends: %w", err)
		}
	}

	if err := p.store.SaveFeatures(ctx, res.RunID, rows); err != nil {
		if p.metrics != nil {
			p.metrics.RecordError("store")
		}
		return res, fmt.Errorf("save features: %w", err)
	}

	res.Rows = len(rows)
	if len(rows) > 0 {
		res.From, res.To = rows[0].Date, rows[len(rows)-1].Date
	}
	res.Duration = time.Since(start)
	log.Info("feature table saved",
		applogger.Int("rows", res.Rows),
		applogger.Date("from", res.From),
		applogger.Date("to", res.To),
		applogger.Any("skips", res.Skips),
		applogger.Duration("duration_ms", res.Duration),
	)
	return res, nil
}

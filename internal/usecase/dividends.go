package usecase

import (
	"context"
	"math"
	"time"

	"FinRank/internal/domain/models"
	drepo "FinRank/internal/domain/repository"
	"FinRank/pkg/cache"
	applogger "FinRank/pkg/logger"
)

// DividendEnricher joins a per-ticker dividend yield onto feature rows.
type DividendEnricher struct {
	source        drepo.DividendSource
	cache         cache.Service
	ttl           time.Duration
	progressEvery int
	log           *applogger.Logger
	metrics       drepo.Metrics
}

// NewDividendEnricher creates an enricher. c may be nil.
func NewDividendEnricher(src drepo.DividendSource, c cache.Service, ttl time.Duration, progressEvery int, l *applogger.Logger, m drepo.Metrics) *DividendEnricher {
	if progressEvery <= 0 {
		progressEvery = 100
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &DividendEnricher{source: src, cache: c, ttl: ttl, progressEvery: progressEvery, log: l, metrics: m}
}

// Enrich returns a copy of rows with DividendYield set from one lookup per
// distinct ticker. Failed lookups yield 0. Only a cancelled ctx is an error.
func (e *DividendEnricher) Enrich(ctx context.Context, rows []models.FeatureRow) ([]models.FeatureRow, error) {
	tickers := distinctTickers(rows)
	yields := make(map[string]float64, len(tickers))
	failed := 0

	e.log.Info("fetching dividend data", applogger.Int("tickers", len(tickers)))
	for i, t := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i%e.progressEvery == 0 {
			e.log.Info("dividend progress", applogger.Int("done", i), applogger.Int("total", len(tickers)))
		}
		y, err := e.lookup(ctx, t)
		if err != nil {
			failed++
			e.log.Debug("dividend lookup failed", applogger.String("ticker", t), applogger.Error(err))
			e.record("failed")
			y = 0
		} else {
			e.record("ok")
		}
		yields[t] = y
	}

	out := make([]models.FeatureRow, len(rows))
	for i, r := range rows {
		r.DividendYield = yields[r.Ticker]
		out[i] = r
	}
	e.log.Info("dividend data joined",
		applogger.Int("tickers", len(tickers)),
		applogger.Int("failed", failed),
	)
	return out, nil
}

func (e *DividendEnricher) lookup(ctx context.Context, ticker string) (float64, error) {
	key := cache.GenerateKey("dividend", ticker)
	y, err := cache.GetOrLoad(ctx, e.cache, key, e.ttl, func(ctx context.Context) (float64, error) {
		return e.source.DividendYield(ctx, ticker)
	})
	if err != nil {
		return 0, err
	}
	if math.IsNaN(y) || math.IsInf(y, 0) || y < 0 {
		return 0, nil
	}
	return y, nil
}

func (e *DividendEnricher) record(result string) {
	if e.metrics != nil {
		e.metrics.RecordDividendLookup(result)
	}
}

func distinctTickers(rows []models.FeatureRow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		if !seen[r.Ticker] {
			seen[r.Ticker] = true
			out = append(out, r.Ticker)
		}
	}
	return out
}

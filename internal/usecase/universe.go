package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinRank/internal/domain/models"
	drepo "FinRank/internal/domain/repository"
	"FinRank/pkg/cache"
	applogger "FinRank/pkg/logger"
)

var errNoHoldings = errors.New("no holdings listed")

// UniverseBuilder resolves the ticker universe from ETF holdings.
type UniverseBuilder struct {
	source     drepo.HoldingsSource
	etfs       []string
	cashTicker string
	cache      cache.Service
	ttl        time.Duration
	log        *applogger.Logger
	metrics    drepo.Metrics
}

// NewUniverseBuilder creates a builder over etfs. c may be nil.
func NewUniverseBuilder(src drepo.HoldingsSource, etfs []string, cashTicker string, c cache.Service, ttl time.Duration, l *applogger.Logger, m drepo.Metrics) *UniverseBuilder {
	if cashTicker == "" {
		cashTicker = models.CashIndexTicker
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &UniverseBuilder{source: src, etfs: etfs, cashTicker: cashTicker, cache: c, ttl: ttl, log: l, metrics: m}
}

// Build merges the holdings of every ETF, keeps the first occurrence of each
// symbol, splits valid from invalid symbols and appends the cash ticker.
// A failing ETF contributes nothing; only a cancelled ctx is an error.
func (b *UniverseBuilder) Build(ctx context.Context) (models.Universe, error) {
	u := models.Universe{PerSource: make(map[string]int, len(b.etfs))}
	seen := make(map[string]bool)

	for _, etf := range b.etfs {
		if err := ctx.Err(); err != nil {
			return u, err
		}
		symbols, err := b.holdings(ctx, etf)
		if err != nil {
			if ctx.Err() != nil {
				return u, ctx.Err()
			}
			b.log.Warn("holdings source unavailable",
				applogger.String("source", b.source.Name()),
				applogger.String("etf", etf),
				applogger.Error(err),
			)
			if b.metrics != nil {
				b.metrics.RecordError("holdings")
			}
		}
		u.PerSource[etf] = len(symbols)
		b.log.Info("fetched holdings", applogger.String("etf", etf), applogger.Int("symbols", len(symbols)))

		for _, s := range symbols {
			if seen[s] {
				continue
			}
			seen[s] = true
			switch {
			case models.IsValidTicker(s):
				u.Valid = append(u.Valid, s)
			case s == b.cashTicker:
				// added below
			default:
				u.Invalid = append(u.Invalid, s)
			}
		}
	}

	if !seen[b.cashTicker] || !models.IsValidTicker(b.cashTicker) {
		u.Valid = append(u.Valid, b.cashTicker)
	}

	b.log.Info("universe resolved",
		applogger.Int("unique", len(seen)),
		applogger.Int("valid", len(u.Valid)),
		applogger.Int("invalid", len(u.Invalid)),
	)
	if len(u.Invalid) > 0 {
		b.log.Debug("filtered invalid tickers", applogger.Strings("tickers", u.Invalid))
	}
	return u, nil
}

func (b *UniverseBuilder) holdings(ctx context.Context, etf string) ([]string, error) {
	key := cache.GenerateKey("holdings", b.source.Name()+":"+etf)
	return cache.GetOrLoad(ctx, b.cache, key, b.ttl, func(ctx context.Context) ([]string, error) {
		symbols, err := b.source.Holdings(ctx, etf)
		if err != nil {
			return nil, err
		}
		if len(symbols) == 0 {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrSourceUnavailable, etf, errNoHoldings)
		}
		return symbols, nil
	})
}

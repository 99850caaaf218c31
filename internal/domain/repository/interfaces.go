package repository

import (
	"context"
	"time"

	"FinRank/internal/domain/models"
)

// HoldingsSource lists the constituents of an ETF.
type HoldingsSource interface {
	Name() string
	Holdings(ctx context.Context, etf string) ([]string, error)
}

// PriceSource downloads daily closes for a batch of tickers. Tickers missing
// from the returned map are treated as failed by the caller.
type PriceSource interface {
	FetchCloses(ctx context.Context, tickers []string, period, interval string) (map[string]models.Series, error)
}

// BreakerResetter is implemented by price sources guarded by a circuit
// breaker. The fetcher resets it before the retry pass.
type BreakerResetter interface {
	ResetBreaker()
}

// DividendSource returns a trailing dividend yield as a fraction of price.
type DividendSource interface {
	DividendYield(ctx context.Context, ticker string) (float64, error)
}

// FeatureStore persists and reloads the flat feature table and pick tables.
type FeatureStore interface {
	SaveFeatures(ctx context.Context, runID string, rows []models.FeatureRow) error
	LoadFeatures(ctx context.Context) ([]models.FeatureRow, error)
	SavePicks(ctx context.Context, runID string, list models.PickList) error
	Close() error
}

// PickPublisher announces pick lists to downstream consumers.
type PickPublisher interface {
	PublishPicks(ctx context.Context, runID string, list models.PickList) error
	Close() error
}

// Metrics records pipeline activity.
type Metrics interface {
	RecordBatch(pass string, ok bool)
	RecordFailedTickers(pass string, n int)
	RecordRows(n int)
	RecordSkip(reason string)
	RecordDividendLookup(result string)
	RecordPicks(list string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// Sleeper pauses between batches. Tests substitute a recorder.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

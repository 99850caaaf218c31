package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinRank/internal/domain/models"
	pkgch "FinRank/pkg/clickhouse"
	applogger "FinRank/pkg/logger"
)

// ClickHouseSchema creates the feature, run and pick tables.
var ClickHouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS feature_runs (
        run_id String,
        created_at DateTime64(3),
        rows UInt32
    ) ENGINE = MergeTree ORDER BY created_at`,
	`CREATE TABLE IF NOT EXISTS feature_rows (
        run_id String,
        seq UInt32,
        ticker LowCardinality(String),
        date Date,
        momentum Nullable(Float64),
        volatility Nullable(Float64),
        avg_correlation Nullable(Float64),
        max_correlation Nullable(Float64),
        min_correlation Nullable(Float64),
        market_correlation Nullable(Float64),
        sharpe Nullable(Float64),
        momentum_accel Nullable(Float64),
        future_return Nullable(Float64),
        beat_market UInt8,
        dividend_yield Nullable(Float64)
    ) ENGINE = MergeTree ORDER BY (run_id, seq)`,
	`CREATE TABLE IF NOT EXISTS picks (
        run_id String,
        list LowCardinality(String),
        rank UInt16,
        as_of Date,
        ticker String,
        prob_beat_market Float64,
        dividend_yield Float64,
        momentum Float64,
        volatility Float64,
        avg_corr_with_picks Nullable(Float64),
        created_at DateTime DEFAULT now()
    ) ENGINE = MergeTree ORDER BY (run_id, list, rank)`,
}

const (
	chInsertFeature = `INSERT INTO feature_rows (run_id, seq, ticker, date, momentum, volatility,
        avg_correlation, max_correlation, min_correlation, market_correlation, sharpe,
        momentum_accel, future_return, beat_market, dividend_yield)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	chInsertRun  = `INSERT INTO feature_runs (run_id, created_at, rows) VALUES (?, ?, ?)`
	chInsertPick = `INSERT INTO picks (run_id, list, rank, as_of, ticker, prob_beat_market,
        dividend_yield, momentum, volatility, avg_corr_with_picks)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	chSelectLatest = `
        SELECT ticker, date, momentum, volatility, avg_correlation, max_correlation,
               min_correlation, market_correlation, sharpe, momentum_accel,
               future_return, beat_market, dividend_yield
        FROM feature_rows
        WHERE run_id = (SELECT run_id FROM feature_runs ORDER BY created_at DESC LIMIT 1)
        ORDER BY seq ASC`
)

// CHFeatureStore implements FeatureStore backed by ClickHouse. Every run is
// kept; loads read the most recent one.
type CHFeatureStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHFeatureStore(ch *pkgch.Client, l *applogger.Logger) *CHFeatureStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHFeatureStore{ch: ch, db: ch.DB(), l: l}
}

// Init creates the tables if missing.
func (s *CHFeatureStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, ClickHouseSchema)
}

func (s *CHFeatureStore) SaveFeatures(ctx context.Context, runID string, rows []models.FeatureRow) error {
	start := time.Now()
	batch := make([][]any, len(rows))
	for i, r := range rows {
		rec := toRecord(runID, r)
		batch[i] = []any{
			rec.RunID, uint32(i), rec.Ticker, rec.Date,
			ptr(rec.Momentum), ptr(rec.Volatility), ptr(rec.AvgCorrelation),
			ptr(rec.MaxCorrelation), ptr(rec.MinCorrelation), ptr(rec.MarketCorrelation),
			ptr(rec.Sharpe), ptr(rec.MomentumAccel), ptr(rec.FutureReturn),
			uint8(rec.BeatMarket), ptr(rec.DividendYield),
		}
	}
	if err := s.ch.InsertBatch(ctx, chInsertFeature, batch); err != nil {
		s.l.Error("clickhouse save_features error", applogger.String("run_id", runID), applogger.Error(err))
		return fmt.Errorf("insert features: %w", err)
	}
	// run marker last: loads only see complete runs
	if _, err := s.db.ExecContext(ctx, chInsertRun, runID, time.Now().UTC(), uint32(len(rows))); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	s.l.Info("clickhouse save_features ok",
		applogger.String("run_id", runID),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *CHFeatureStore) LoadFeatures(ctx context.Context) ([]models.FeatureRow, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, chSelectLatest)
	if err != nil {
		s.l.Error("clickhouse load_features query error", applogger.Error(err))
		return nil, fmt.Errorf("load features: %w", err)
	}
	defer rows.Close()

	var out []models.FeatureRow
	for rows.Next() {
		var rec featureRecord
		if err := rows.Scan(&rec.Ticker, &rec.Date, &rec.Momentum, &rec.Volatility,
			&rec.AvgCorrelation, &rec.MaxCorrelation, &rec.MinCorrelation,
			&rec.MarketCorrelation, &rec.Sharpe, &rec.MomentumAccel,
			&rec.FutureReturn, &rec.BeatMarket, &rec.DividendYield); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		out = append(out, rec.row())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Info("clickhouse load_features ok",
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHFeatureStore) SavePicks(ctx context.Context, runID string, list models.PickList) error {
	recs := pickRecords(runID, list)
	batch := make([][]any, len(recs))
	for i, r := range recs {
		batch[i] = []any{
			r.RunID, r.List, uint16(r.Rank), r.AsOf, r.Ticker, r.ProbBeatMarket,
			r.DividendYield, r.Momentum, r.Volatility, ptr(r.AvgCorrWithPicks),
		}
	}
	if err := s.ch.InsertBatch(ctx, chInsertPick, batch); err != nil {
		return fmt.Errorf("insert %s picks: %w", list.Name, err)
	}
	return nil
}

func (s *CHFeatureStore) Close() error { return s.ch.Close() }

func ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

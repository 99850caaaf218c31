package repository

import (
	"context"
	"fmt"
	"time"

	"FinRank/internal/domain/models"
	applogger "FinRank/pkg/logger"
	"FinRank/pkg/postgres"

	"github.com/jmoiron/sqlx"
)

// PostgresSchema creates the feature, run and pick tables.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS feature_runs (
		run_id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		rows INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feature_rows (
		run_id TEXT NOT NULL REFERENCES feature_runs(run_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		ticker TEXT NOT NULL,
		date DATE NOT NULL,
		momentum DOUBLE PRECISION,
		volatility DOUBLE PRECISION,
		avg_correlation DOUBLE PRECISION,
		max_correlation DOUBLE PRECISION,
		min_correlation DOUBLE PRECISION,
		market_correlation DOUBLE PRECISION,
		sharpe DOUBLE PRECISION,
		momentum_accel DOUBLE PRECISION,
		future_return DOUBLE PRECISION,
		beat_market SMALLINT NOT NULL,
		dividend_yield DOUBLE PRECISION,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS picks (
		run_id TEXT NOT NULL,
		list TEXT NOT NULL,
		rank INTEGER NOT NULL,
		as_of DATE NOT NULL,
		ticker TEXT NOT NULL,
		prob_beat_market DOUBLE PRECISION NOT NULL,
		dividend_yield DOUBLE PRECISION NOT NULL,
		momentum DOUBLE PRECISION NOT NULL,
		volatility DOUBLE PRECISION NOT NULL,
		avg_corr_with_picks DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (run_id, list, rank)
	)`,
}

const (
	pgInsertRun     = `INSERT INTO feature_runs (run_id, rows) VALUES ($1, $2)`
	pgInsertFeature = `INSERT INTO feature_rows (run_id, seq, ticker, date, momentum, volatility,
		avg_correlation, max_correlation, min_correlation, market_correlation, sharpe,
		momentum_accel, future_return, beat_market, dividend_yield)
		VALUES (:run_id, :seq, :ticker, :date, :momentum, :volatility, :avg_correlation,
		:max_correlation, :min_correlation, :market_correlation, :sharpe, :momentum_accel,
		:future_return, :beat_market, :dividend_yield)`
	pgInsertPick = `INSERT INTO picks (run_id, list, rank, as_of, ticker, prob_beat_market,
		dividend_yield, momentum, volatility, avg_corr_with_picks)
		VALUES (:run_id, :list, :rank, :as_of, :ticker, :prob_beat_market, :dividend_yield,
		:momentum, :volatility, :avg_corr_with_picks)
		ON CONFLICT (run_id, list, rank) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			prob_beat_market = EXCLUDED.prob_beat_market,
			dividend_yield = EXCLUDED.dividend_yield,
			momentum = EXCLUDED.momentum,
			volatility = EXCLUDED.volatility,
			avg_corr_with_picks = EXCLUDED.avg_corr_with_picks`
	pgSelectLatest = `
		SELECT run_id, ticker, date, momentum, volatility, avg_correlation, max_correlation,
		       min_correlation, market_correlation, sharpe, momentum_accel,
		       future_return, beat_market, dividend_yield
		FROM feature_rows
		WHERE run_id = (SELECT run_id FROM feature_runs ORDER BY created_at DESC LIMIT 1)
		ORDER BY seq ASC`
)

// pgInsertChunk keeps multi-row inserts under the 65535 bind parameter cap.
const pgInsertChunk = 1000

type seqRecord struct {
	featureRecord
	Seq int `db:"seq"`
}

// PGFeatureStore implements FeatureStore on PostgreSQL.
type PGFeatureStore struct {
	pg      *postgres.Client
	db      *sqlx.DB
	timeout time.Duration
	l       *applogger.Logger
}

func NewPGFeatureStore(pg *postgres.Client, l *applogger.Logger) *PGFeatureStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &PGFeatureStore{pg: pg, db: pg.DB(), timeout: pg.Timeout(), l: l}
}

// Init creates the tables if missing.
func (s *PGFeatureStore) Init(ctx context.Context) error {
	return s.pg.InitSchema(ctx, PostgresSchema)
}

// SaveFeatures writes the run and its rows in one transaction.
func (s *PGFeatureStore) SaveFeatures(ctx context.Context, runID string, rows []models.FeatureRow) error {
	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, pgInsertRun, runID, len(rows)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for lo := 0; lo < len(rows); lo += pgInsertChunk {
		hi := min(lo+pgInsertChunk, len(rows))
		recs := make([]seqRecord, 0, hi-lo)
		for i := lo; i < hi; i++ {
			recs = append(recs, seqRecord{featureRecord: toRecord(runID, rows[i]), Seq: i})
		}
		if _, err := tx.NamedExecContext(ctx, pgInsertFeature, recs); err != nil {
			return fmt.Errorf("insert features %d-%d: %w", lo, hi, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.l.Info("postgres save_features ok",
		applogger.String("run_id", runID),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (s *PGFeatureStore) LoadFeatures(ctx context.Context) ([]models.FeatureRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var recs []featureRecord
	if err := s.db.SelectContext(ctx, &recs, pgSelectLatest); err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	out := make([]models.FeatureRow, len(recs))
	for i, r := range recs {
		out[i] = r.row()
	}
	return out, nil
}

func (s *PGFeatureStore) SavePicks(ctx context.Context, runID string, list models.PickList) error {
	if len(list.Picks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NamedExecContext(ctx, pgInsertPick, pickRecords(runID, list)); err != nil {
		return fmt.Errorf("upsert %s picks: %w", list.Name, err)
	}
	return nil
}

func (s *PGFeatureStore) Close() error { return s.pg.Close() }

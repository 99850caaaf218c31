package repository

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"FinRank/internal/domain/models"
	pkgch "FinRank/pkg/clickhouse"
	"FinRank/pkg/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPGStore(t *testing.T) (*PGFeatureStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPGFeatureStore(postgres.NewClientFromDB(sqlx.NewDb(db, "postgres"), time.Second), nil), mock
}

func TestPGFeatureStore_SaveFeatures(t *testing.T) {
	s, mock := newPGStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO feature_runs").WithArgs("run-1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO feature_rows").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, s.SaveFeatures(context.Background(), "run-1", sampleRows()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFeatureStore_LoadFeaturesMapsNulls(t *testing.T) {
	s, mock := newPGStore(t)
	d := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	cols := []string{"run_id", "ticker", "date", "momentum", "volatility", "avg_correlation",
		"max_correlation", "min_correlation", "market_correlation", "sharpe", "momentum_accel",
		"future_return", "beat_market", "dividend_yield"}
	mock.ExpectQuery("FROM feature_rows").WillReturnRows(sqlmock.NewRows(cols).
		AddRow("run-1", "AAPL", d, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 0.01).
		AddRow("run-1", "NEW", d, nil, 0.2, nil, nil, nil, 0.6, 0.7, 0.8, 0.9, 0, 0.0))

	rows, err := s.LoadFeatures(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Ticker)
	assert.Equal(t, 1, rows[0].BeatMarket)
	assert.Equal(t, 0.01, rows[0].DividendYield)
	assert.True(t, math.IsNaN(rows[1].Momentum))
	assert.True(t, math.IsNaN(rows[1].AvgCorrelation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGFeatureStore_SavePicks(t *testing.T) {
	s, mock := newPGStore(t)

	// empty lists are a no-op
	require.NoError(t, s.SavePicks(context.Background(), "run-1", models.PickList{Name: "strict"}))

	mock.ExpectExec("INSERT INTO picks").WillReturnResult(sqlmock.NewResult(0, 1))
	err := s.SavePicks(context.Background(), "run-1", models.PickList{
		Name:  "top",
		Picks: []models.Pick{{Ticker: "AAPL", ProbBeatMarket: 0.6}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHFeatureStore_SaveFeatures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewCHFeatureStore(pkgch.NewClientFromDB(db, "finrank"), nil)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO feature_rows")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO feature_runs").WithArgs("run-1", sqlmock.AnyArg(), 2).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SaveFeatures(context.Background(), "run-1", sampleRows()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNullableConversions(t *testing.T) {
	assert.Equal(t, sql.NullFloat64{}, nullable(math.NaN()))
	assert.Equal(t, sql.NullFloat64{}, nullable(math.Inf(1)))
	assert.Equal(t, sql.NullFloat64{Float64: 2, Valid: true}, nullable(2))
	assert.True(t, math.IsNaN(orNaN(sql.NullFloat64{})))
	assert.Nil(t, ptr(sql.NullFloat64{}))
	assert.Equal(t, 3.0, *ptr(sql.NullFloat64{Float64: 3, Valid: true}))
}

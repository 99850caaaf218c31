package repository

import (
	"database/sql"
	"math"
	"strconv"
	"time"

	"FinRank/internal/domain/models"
)

// FeatureHeader is the persisted column order of the feature table.
var FeatureHeader = []string{
	"ticker", "date", "momentum", "volatility", "avg_correlation", "max_correlation",
	"min_correlation", "market_correlation", "sharpe", "momentum_accel",
	"future_return", "beat_market", "dividend_yield",
}

const dateLayout = "2006-01-02"

// picksFile names the CSV a pick list is written to.
func picksFile(list string) string {
	if list == "export" {
		return "diversified_recommendations.csv"
	}
	return list + "_recommendations.csv"
}

// featureRecord is a FeatureRow with SQL NULL for non-finite values.
type featureRecord struct {
	RunID             string          `db:"run_id"`
	Ticker            string          `db:"ticker"`
	Date              time.Time       `db:"date"`
	Momentum          sql.NullFloat64 `db:"momentum"`
	Volatility        sql.NullFloat64 `db:"volatility"`
	AvgCorrelation    sql.NullFloat64 `db:"avg_correlation"`
	MaxCorrelation    sql.NullFloat64 `db:"max_correlation"`
	MinCorrelation    sql.NullFloat64 `db:"min_correlation"`
	MarketCorrelation sql.NullFloat64 `db:"market_correlation"`
	Sharpe            sql.NullFloat64 `db:"sharpe"`
	MomentumAccel     sql.NullFloat64 `db:"momentum_accel"`
	FutureReturn      sql.NullFloat64 `db:"future_return"`
	BeatMarket        int             `db:"beat_market"`
	DividendYield     sql.NullFloat64 `db:"dividend_yield"`
}

func toRecord(runID string, r models.FeatureRow) featureRecord {
	return featureRecord{
		RunID:             runID,
		Ticker:            r.Ticker,
		Date:              r.Date,
		Momentum:          nullable(r.Momentum),
		Volatility:        nullable(r.Volatility),
		AvgCorrelation:    nullable(r.AvgCorrelation),
		MaxCorrelation:    nullable(r.MaxCorrelation),
		MinCorrelation:    nullable(r.MinCorrelation),
		MarketCorrelation: nullable(r.MarketCorrelation),
		Sharpe:            nullable(r.Sharpe),
		MomentumAccel:     nullable(r.MomentumAccel),
		FutureReturn:      nullable(r.FutureReturn),
		BeatMarket:        r.BeatMarket,
		DividendYield:     nullable(r.DividendYield),
	}
}

func (f featureRecord) row() models.FeatureRow {
	return models.FeatureRow{
		Ticker:            f.Ticker,
		Date:              f.Date.UTC(),
		Momentum:          orNaN(f.Momentum),
		Volatility:        orNaN(f.Volatility),
		AvgCorrelation:    orNaN(f.AvgCorrelation),
		MaxCorrelation:    orNaN(f.MaxCorrelation),
		MinCorrelation:    orNaN(f.MinCorrelation),
		MarketCorrelation: orNaN(f.MarketCorrelation),
		Sharpe:            orNaN(f.Sharpe),
		MomentumAccel:     orNaN(f.MomentumAccel),
		FutureReturn:      orNaN(f.FutureReturn),
		BeatMarket:        f.BeatMarket,
		DividendYield:     orNaN(f.DividendYield),
	}
}

// values lists the record in FeatureHeader order, run id first.
func (f featureRecord) values() []any {
	return []any{
		f.RunID, f.Ticker, f.Date, f.Momentum, f.Volatility, f.AvgCorrelation,
		f.MaxCorrelation, f.MinCorrelation, f.MarketCorrelation, f.Sharpe,
		f.MomentumAccel, f.FutureReturn, f.BeatMarket, f.DividendYield,
	}
}

// pickRecord is one persisted pick.
type pickRecord struct {
	RunID            string          `db:"run_id"`
	List             string          `db:"list"`
	Rank             int             `db:"rank"`
	AsOf             time.Time       `db:"as_of"`
	Ticker           string          `db:"ticker"`
	ProbBeatMarket   float64         `db:"prob_beat_market"`
	DividendYield    float64         `db:"dividend_yield"`
	Momentum         float64         `db:"momentum"`
	Volatility       float64         `db:"volatility"`
	AvgCorrWithPicks sql.NullFloat64 `db:"avg_corr_with_picks"`
}

func pickRecords(runID string, list models.PickList) []pickRecord {
	out := make([]pickRecord, len(list.Picks))
	for i, p := range list.Picks {
		out[i] = pickRecord{
			RunID:          runID,
			List:           list.Name,
			Rank:           i + 1,
			AsOf:           list.AsOf,
			Ticker:         p.Ticker,
			ProbBeatMarket: p.ProbBeatMarket,
			DividendYield:  p.DividendYield,
			Momentum:       p.Momentum,
			Volatility:     p.Volatility,
		}
		if p.AvgCorrWithPicks != nil {
			out[i].AvgCorrWithPicks = nullable(*p.AvgCorrWithPicks)
		}
	}
	return out
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// formatFloat renders NaN as an empty cell.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

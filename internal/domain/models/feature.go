package models

import (
	"math"
	"time"
)

// FeatureColumns are the model inputs, in training order.
var FeatureColumns = []string{
	"momentum", "volatility", "avg_correlation", "max_correlation",
	"min_correlation", "market_correlation", "sharpe", "momentum_accel",
	"dividend_yield",
}

// FeatureRow is one ticker at one month-end. NaN means "not computable".
type FeatureRow struct {
	Ticker            string    `json:"ticker" db:"ticker"`
	Date              time.Time `json:"date" db:"date"`
	Momentum          float64   `json:"momentum" db:"momentum"`
	Volatility        float64   `json:"volatility" db:"volatility"`
	AvgCorrelation    float64   `json:"avg_correlation" db:"avg_correlation"`
	MaxCorrelation    float64   `json:"max_correlation" db:"max_correlation"`
	MinCorrelation    float64   `json:"min_correlation" db:"min_correlation"`
	MarketCorrelation float64   `json:"market_correlation" db:"market_correlation"`
	Sharpe            float64   `json:"sharpe" db:"sharpe"`
	MomentumAccel     float64   `json:"momentum_accel" db:"momentum_accel"`
	FutureReturn      float64   `json:"future_return" db:"future_return"`
	BeatMarket        int       `json:"beat_market" db:"beat_market"`
	DividendYield     float64   `json:"dividend_yield" db:"dividend_yield"`
}

// Features returns the model inputs in FeatureColumns order.
func (r FeatureRow) Features() []float64 {
	return []float64{
		r.Momentum, r.Volatility, r.AvgCorrelation, r.MaxCorrelation,
		r.MinCorrelation, r.MarketCorrelation, r.Sharpe, r.MomentumAccel,
		r.DividendYield,
	}
}

// Finite reports whether every model input is a finite number.
func (r FeatureRow) Finite() bool {
	for _, v := range r.Features() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return !math.IsNaN(r.FutureReturn) && !math.IsInf(r.FutureReturn, 0)
}

// SkipReason explains why a ticker-month produced no row.
type SkipReason string

const (
	SkipInsufficientHistory SkipReason = "insufficient_history"
	SkipNoForwardData       SkipReason = "no_forward_data"
	SkipComputationError    SkipReason = "computation_error"
)

// RowResult is the outcome of one ticker-month: either Row or Skip is set.
type RowResult struct {
	Ticker string
	Date   time.Time
	Row    *FeatureRow
	Skip   SkipReason
	Detail string
}

// OK reports whether the result carries a row.
func (r RowResult) OK() bool { return r.Row != nil }

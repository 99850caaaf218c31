package models

import (
	"math"
	"time"
)

// RecommendationsRequest selects one pick list, or all of them when List is empty.
type RecommendationsRequest struct {
	List    string `query:"list" validate:"omitempty,oneof=top diversified strict dividend export"`
	Limit   int    `query:"limit" default:"0" validate:"gte=0,lte=500"`
	Refresh bool   `query:"refresh"`
}

// LatestFeaturesRequest filters the latest month of the feature table.
type LatestFeaturesRequest struct {
	Ticker string `query:"ticker" validate:"omitempty,max=12"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=5000"`
}

// FeatureRowView is a FeatureRow with NaN cells rendered as null.
type FeatureRowView struct {
	Ticker            string   `json:"ticker"`
	Date              string   `json:"date"`
	Momentum          *float64 `json:"momentum"`
	Volatility        *float64 `json:"volatility"`
	AvgCorrelation    *float64 `json:"avg_correlation"`
	MaxCorrelation    *float64 `json:"max_correlation"`
	MinCorrelation    *float64 `json:"min_correlation"`
	MarketCorrelation *float64 `json:"market_correlation"`
	Sharpe            *float64 `json:"sharpe"`
	MomentumAccel     *float64 `json:"momentum_accel"`
	FutureReturn      *float64 `json:"future_return"`
	BeatMarket        int      `json:"beat_market"`
	DividendYield     *float64 `json:"dividend_yield"`
}

// View converts r for JSON output.
func (r FeatureRow) View() FeatureRowView {
	return FeatureRowView{
		Ticker:            r.Ticker,
		Date:              r.Date.Format(time.DateOnly),
		Momentum:          finitePtr(r.Momentum),
		Volatility:        finitePtr(r.Volatility),
		AvgCorrelation:    finitePtr(r.AvgCorrelation),
		MaxCorrelation:    finitePtr(r.MaxCorrelation),
		MinCorrelation:    finitePtr(r.MinCorrelation),
		MarketCorrelation: finitePtr(r.MarketCorrelation),
		Sharpe:            finitePtr(r.Sharpe),
		MomentumAccel:     finitePtr(r.MomentumAccel),
		FutureReturn:      finitePtr(r.FutureReturn),
		BeatMarket:        r.BeatMarket,
		DividendYield:     finitePtr(r.DividendYield),
	}
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

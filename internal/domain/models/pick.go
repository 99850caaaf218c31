package models

import "time"

// RankedCandidate is a latest-date feature row scored by the ranking model.
type RankedCandidate struct {
	FeatureRow
	ProbBeatMarket float64 `json:"prob_beat_market"`
}

// Pick is a selected candidate. AvgCorrWithPicks is only meaningful for
// diversified sets.
type Pick struct {
	Ticker           string   `json:"ticker"`
	ProbBeatMarket   float64  `json:"prob_beat_market"`
	DividendYield    float64  `json:"dividend_yield"`
	Momentum         float64  `json:"momentum"`
	Volatility       float64  `json:"volatility"`
	AvgCorrWithPicks *float64 `json:"avg_corr_with_picks,omitempty"`
}

// PickFromCandidate projects a candidate onto the exported pick columns.
func PickFromCandidate(c RankedCandidate) Pick {
	return Pick{
		Ticker:         c.Ticker,
		ProbBeatMarket: c.ProbBeatMarket,
		DividendYield:  c.DividendYield,
		Momentum:       c.Momentum,
		Volatility:     c.Volatility,
	}
}

// PickList is a named, ordered list of picks produced by one ranking run.
type PickList struct {
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	AsOf        time.Time `json:"as_of"`
	Diversified bool      `json:"diversified"`
	Picks       []Pick    `json:"picks"`
}

// Recommendations is the full output of a ranking run.
type Recommendations struct {
	RunID     string     `json:"run_id"`
	AsOf      time.Time  `json:"as_of"`
	Analyzed  int        `json:"analyzed"`
	AboveHalf int        `json:"above_50"`
	Above55   int        `json:"above_55"`
	Lists     []PickList `json:"lists"`
	// Correlations covers the leading diversified picks.
	Correlations CorrelationTable  `json:"correlations"`
	Candidates   []RankedCandidate `json:"-"`
}

// CorrelationTable is the pairwise correlation of a pick set. Nil cells are
// pairs with no computable correlation.
type CorrelationTable struct {
	Tickers []string     `json:"tickers"`
	Values  [][]*float64 `json:"values"`
}

// List returns the pick list with the given name, if present.
func (r *Recommendations) List(name string) (PickList, bool) {
	for _, l := range r.Lists {
		if l.Name == name {
			return l, true
		}
	}
	return PickList{}, false
}

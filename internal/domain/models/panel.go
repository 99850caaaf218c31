package models

import (
	"math"
	"sort"
	"time"
)

// Point is one daily close.
type Point struct {
	Date  time.Time
	Close float64
}

// Series is a single ticker's daily closes, ascending by date.
type Series []Point

// PricePanel is a date x ticker table of adjusted closes. Missing observations
// are NaN. Columns keep insertion order.
type PricePanel struct {
	Dates   []time.Time
	Tickers []string
	Closes  map[string][]float64
}

// NewPricePanel merges per-ticker series into a panel over the union of dates.
// The first series seen for a ticker wins.
func NewPricePanel(order []string, series map[string]Series) *PricePanel {
	seen := make(map[int64]time.Time)
	for _, t := range order {
		for _, p := range series[t] {
			d := truncateDay(p.Date)
			seen[d.Unix()] = d
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := make(map[int64]int, len(dates))
	for i, d := range dates {
		index[d.Unix()] = i
	}

	p := &PricePanel{Dates: dates, Closes: make(map[string][]float64, len(order))}
	for _, t := range order {
		s, ok := series[t]
		if !ok {
			continue
		}
		if _, dup := p.Closes[t]; dup {
			continue
		}
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		for _, pt := range s {
			col[index[truncateDay(pt.Date).Unix()]] = pt.Close
		}
		p.Tickers = append(p.Tickers, t)
		p.Closes[t] = col
	}
	return p
}

// Empty reports whether the panel has no usable column.
func (p *PricePanel) Empty() bool {
	return p == nil || len(p.Tickers) == 0 || len(p.Dates) == 0
}

// Observations counts the non-missing values of a column.
func (p *PricePanel) Observations(ticker string) int {
	n := 0
	for _, v := range p.Closes[ticker] {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// DropSparse removes columns with fewer than minObs non-missing values (and
// always the all-missing ones). It returns the dropped tickers.
func (p *PricePanel) DropSparse(minObs int) []string {
	if minObs < 1 {
		minObs = 1
	}
	kept := p.Tickers[:0:0]
	var dropped []string
	for _, t := range p.Tickers {
		if p.Observations(t) < minObs {
			dropped = append(dropped, t)
			delete(p.Closes, t)
			continue
		}
		kept = append(kept, t)
	}
	p.Tickers = kept
	return dropped
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package yahoo

import (
	"math"
	"sort"
	"time"

	"FinRank/internal/domain/models"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

func (r *chartResult) day(ts int64) time.Time {
	t := time.Unix(ts+r.Meta.GMTOffset, 0).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// closes returns adjusted closes when present, raw closes otherwise.
func (r *chartResult) closes(adjusted bool) []*float64 {
	if adjusted && len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		return r.Indicators.AdjClose[0].AdjClose
	}
	if len(r.Indicators.Quote) > 0 {
		return r.Indicators.Quote[0].Close
	}
	return nil
}

// series converts the bar arrays into a Series, dropping null and
// non-positive closes. Later bars on the same day replace earlier ones.
func (r *chartResult) series() models.Series {
	closes := r.closes(true)
	out := make(models.Series, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		v := *closes[i]
		if math.IsNaN(v) || v <= 0 {
			continue
		}
		d := r.day(ts)
		if n := len(out); n > 0 && out[n-1].Date.Equal(d) {
			out[n-1].Close = v
			continue
		}
		out = append(out, models.Point{Date: d, Close: v})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// lastClose returns the last raw close and its date.
func (r *chartResult) lastClose() (float64, time.Time, bool) {
	closes := r.closes(false)
	for i := len(r.Timestamp) - 1; i >= 0; i-- {
		if i < len(closes) && closes[i] != nil && *closes[i] > 0 {
			return *closes[i], r.day(r.Timestamp[i]), true
		}
	}
	return 0, time.Time{}, false
}

// trailingDividends sums cash dividends paid in the year ending at asOf, in
// payment order so the result does not depend on map iteration.
func (r *chartResult) trailingDividends(asOf time.Time) float64 {
	keys := make([]string, 0, len(r.Events.Dividends))
	for k := range r.Events.Dividends {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := r.Events.Dividends[keys[i]], r.Events.Dividends[keys[j]]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return keys[i] < keys[j]
	})

	from := asOf.AddDate(-1, 0, 0)
	total := 0.0
	for _, k := range keys {
		d := r.Events.Dividends[k]
		day := r.day(d.Date)
		if day.After(from) && !day.After(asOf) {
			total += d.Amount
		}
	}
	return total
}

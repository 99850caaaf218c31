package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last calendar day of t's month.
func MonthEnd(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}

// AddMonths shifts t by n calendar months, clipping the day to the length of
// the target month (Aug 31 - 6 months = Feb 29 in a leap year).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := MonthEnd(first).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// MonthEnds lists every calendar month-end from from's month through to's month.
func MonthEnds(from, to time.Time) []time.Time {
	if to.Before(from) {
		return nil
	}
	var out []time.Time
	cur := MonthEnd(from)
	stop := MonthEnd(to)
	for !cur.After(stop) {
		out = append(out, cur)
		cur = MonthEnd(AddMonths(time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC), 1))
	}
	return out
}

// PeriodStart resolves a lookback period such as "5y", "6mo", "30d" or "2wk"
// against now.
func PeriodStart(now time.Time, period string) (time.Time, error) {
	p := strings.TrimSpace(strings.ToLower(period))
	units := []struct {
		suffix string
		apply  func(n int) time.Time
	}{
		{"mo", func(n int) time.Time { return AddMonths(now, -n) }},
		{"wk", func(n int) time.Time { return now.AddDate(0, 0, -7*n) }},
		{"y", func(n int) time.Time { return now.AddDate(-n, 0, 0) }},
		{"d", func(n int) time.Time { return now.AddDate(0, 0, -n) }},
	}
	for _, u := range units {
		if !strings.HasSuffix(p, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(p, u.suffix))
		if err != nil || n <= 0 {
			return time.Time{}, fmt.Errorf("invalid period %q", period)
		}
		return u.apply(n), nil
	}
	return time.Time{}, fmt.Errorf("invalid period %q", period)
}

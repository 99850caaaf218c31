package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"FinRank/internal/domain/models"
)

var errFake = errors.New("fake failure")

type fakeHoldings struct {
	lists map[string][]string
	fail  map[string]bool
	calls int
}

func (f *fakeHoldings) Name() string { return "fake" }

func (f *fakeHoldings) Holdings(_ context.Context, etf string) ([]string, error) {
	f.calls++
	if f.fail[etf] {
		return nil, errFake
	}
	return f.lists[etf], nil
}

// fakePrices serves weekday series of a fixed length. Tickers in failOnce
// make their whole batch error the first time; tickers in never are omitted.
type fakePrices struct {
	days     int
	failOnce map[string]bool
	never    map[string]bool
	short    map[string]bool
	batches  [][]string
}

func (f *fakePrices) FetchCloses(_ context.Context, tickers []string, _, _ string) (map[string]models.Series, error) {
	f.batches = append(f.batches, append([]string(nil), tickers...))
	failed := false
	for _, t := range tickers {
		if f.failOnce[t] {
			delete(f.failOnce, t)
			failed = true
		}
	}
	if failed {
		return nil, errFake
	}
	out := make(map[string]models.Series)
	for _, t := range tickers {
		if f.never[t] {
			continue
		}
		n := f.days
		if f.short[t] {
			n = 5
		}
		out[t] = weekdaySeries(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), n, 100)
	}
	return out, nil
}

func weekdaySeries(from time.Time, n int, price float64) models.Series {
	s := make(models.Series, 0, n)
	for d := from; len(s) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		s = append(s, models.Point{Date: d, Close: price})
		price *= 1.001
	}
	return s
}

type recordingSleeper struct {
	sleeps []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

type fakeDividends struct {
	yields map[string]float64
	calls  map[string]int
}

func (f *fakeDividends) DividendYield(_ context.Context, ticker string) (float64, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[ticker]++
	y, ok := f.yields[ticker]
	if !ok {
		return 0, errFake
	}
	return y, nil
}

type memStore struct {
	mu    sync.Mutex
	rows  []models.FeatureRow
	picks map[string]models.PickList
	runs  []string
}

func (m *memStore) SaveFeatures(_ context.Context, runID string, rows []models.FeatureRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append([]models.FeatureRow(nil), rows...)
	m.runs = append(m.runs, runID)
	return nil
}

func (m *memStore) LoadFeatures(context.Context) ([]models.FeatureRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.FeatureRow(nil), m.rows...), nil
}

func (m *memStore) SavePicks(_ context.Context, _ string, list models.PickList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.picks == nil {
		m.picks = make(map[string]models.PickList)
	}
	m.picks[list.Name] = list
	return nil
}

func (m *memStore) Close() error { return nil }

type recordingPublisher struct {
	lists []string
	fail  bool
}

func (r *recordingPublisher) PublishPicks(_ context.Context, _ string, list models.PickList) error {
	if r.fail {
		return errFake
	}
	r.lists = append(r.lists, list.Name)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

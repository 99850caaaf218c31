package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	models "FinRank/internal/domain/models"
	"FinRank/internal/usecase"
	"FinRank/pkg/cache"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecommender struct {
	mu    sync.Mutex
	calls int
	recs  *models.Recommendations
	err   error
}

func (f *fakeRecommender) Run(context.Context) (*models.Recommendations, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.recs, f.err
}

type fakeGenerator struct {
	calls int
	err   error
}

func (f *fakeGenerator) Run(context.Context) (usecase.GenerateResult, error) {
	f.calls++
	return usecase.GenerateResult{RunID: "gen-1", Rows: 3}, f.err
}

type fakeFeatures struct {
	rows []models.FeatureRow
	err  error
}

func (f fakeFeatures) LoadFeatures(context.Context) ([]models.FeatureRow, error) {
	return f.rows, f.err
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func sampleRecs() *models.Recommendations {
	asOf := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	picks := func(tickers ...string) []models.Pick {
		out := make([]models.Pick, len(tickers))
		for i, t := range tickers {
			out[i] = models.Pick{Ticker: t, ProbBeatMarket: 0.9 - float64(i)/10}
		}
		return out
	}
	return &models.Recommendations{
		RunID:    "run-1",
		AsOf:     asOf,
		Analyzed: 4,
		Lists: []models.PickList{
			{Name: usecase.ListTop, AsOf: asOf, Picks: picks("A", "B", "C")},
			{Name: usecase.ListDiversified, AsOf: asOf, Diversified: true, Picks: picks("A", "C")},
		},
	}
}

func newTestHandler(recs Recommender, gen Generator, feats FeatureLoader) (*echo.Echo, *PipelineEchoHandler) {
	h := NewPipelineEchoHandler(nil, recs, gen, feats, cache.NewMemoryCache(), time.Minute, time.Minute)
	h.spawn = func(f func()) { f() }
	e := echo.New()
	h.RegisterRoutes(e)
	return e, h
}

func do(t *testing.T, e *echo.Echo, method, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestHealth(t *testing.T) {
	e, _ := newTestHandler(&fakeRecommender{}, &fakeGenerator{}, fakeFeatures{})
	rec, env := do(t, e, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestRecommendationsAllListsCached(t *testing.T) {
	r := &fakeRecommender{recs: sampleRecs()}
	e, _ := newTestHandler(r, &fakeGenerator{}, fakeFeatures{})

	rec, env := do(t, e, http.MethodGet, "/api/recommendations?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Recommendations
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Lists, 2)
	assert.Len(t, got.Lists[0].Picks, 2)
	assert.Len(t, got.Lists[1].Picks, 2)

	do(t, e, http.MethodGet, "/api/recommendations")
	assert.Equal(t, 1, r.calls)

	do(t, e, http.MethodGet, "/api/recommendations?refresh=true")
	assert.Equal(t, 2, r.calls)
}

func TestRecommendationsSingleList(t *testing.T) {
	e, _ := newTestHandler(&fakeRecommender{recs: sampleRecs()}, &fakeGenerator{}, fakeFeatures{})

	rec, env := do(t, e, http.MethodGet, "/api/recommendations?list=diversified")
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.PickList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, "diversified", list.Name)
	assert.True(t, list.Diversified)
	require.Len(t, list.Picks, 2)
	assert.Equal(t, "C", list.Picks[1].Ticker)

	rec, _ = do(t, e, http.MethodGet, "/api/recommendations?list=dividend")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecommendationsValidation(t *testing.T) {
	e, _ := newTestHandler(&fakeRecommender{recs: sampleRecs()}, &fakeGenerator{}, fakeFeatures{})

	rec, _ := do(t, e, http.MethodGet, "/api/recommendations?list=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/recommendations?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendationsErrors(t *testing.T) {
	missing := fmt.Errorf("load features: %w", os.ErrNotExist)
	e, _ := newTestHandler(&fakeRecommender{err: missing}, &fakeGenerator{}, fakeFeatures{})
	rec, _ := do(t, e, http.MethodGet, "/api/recommendations")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	e, _ = newTestHandler(&fakeRecommender{err: errors.New("boom")}, &fakeGenerator{}, fakeFeatures{})
	rec, _ = do(t, e, http.MethodGet, "/api/recommendations")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLatestFeatures(t *testing.T) {
	may := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)
	rows := []models.FeatureRow{
		{Ticker: "AAA", Date: may, Momentum: 0.1},
		{Ticker: "AAA", Date: jun, Momentum: 0.2, FutureReturn: math.NaN()},
		{Ticker: "BBB", Date: jun, Momentum: 0.3, FutureReturn: math.NaN()},
		{Ticker: "CCC", Date: jun, Momentum: 0.4, FutureReturn: math.NaN()},
	}
	e, _ := newTestHandler(&fakeRecommender{}, &fakeGenerator{}, fakeFeatures{rows: rows})

	rec, env := do(t, e, http.MethodGet, "/api/features/latest?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Rows  []models.FeatureRowView `json:"rows"`
		Total int64                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "AAA", page.Rows[0].Ticker)
	assert.Equal(t, "2024-06-28", page.Rows[0].Date)
	assert.Nil(t, page.Rows[0].FutureReturn)
	require.NotNil(t, page.Rows[0].Momentum)
	assert.InDelta(t, 0.2, *page.Rows[0].Momentum, 1e-12)

	_, env = do(t, e, http.MethodGet, "/api/features/latest?ticker=ccc")
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, "CCC", page.Rows[0].Ticker)
}

func TestLatestFeaturesMissingTable(t *testing.T) {
	e, _ := newTestHandler(&fakeRecommender{}, &fakeGenerator{}, fakeFeatures{err: os.ErrNotExist})
	rec, _ := do(t, e, http.MethodGet, "/api/features/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateRunsAndInvalidatesRecommendations(t *testing.T) {
	r := &fakeRecommender{recs: sampleRecs()}
	g := &fakeGenerator{}
	e, h := newTestHandler(r, g, fakeFeatures{})

	do(t, e, http.MethodGet, "/api/recommendations")
	rec, env := do(t, e, http.MethodPost, "/api/pipeline/generate")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"started"}`, string(env.Data))
	h.Wait()
	assert.Equal(t, 1, g.calls)

	do(t, e, http.MethodGet, "/api/recommendations")
	assert.Equal(t, 2, r.calls)

	// the lock is released after the run
	rec, _ = do(t, e, http.MethodPost, "/api/pipeline/generate")
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestGenerateConflictWhileRunning(t *testing.T) {
	g := &fakeGenerator{}
	e, h := newTestHandler(&fakeRecommender{}, g, fakeFeatures{})

	var pending func()
	h.spawn = func(f func()) { pending = f }

	rec, _ := do(t, e, http.MethodPost, "/api/pipeline/generate")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/pipeline/generate")
	assert.Equal(t, http.StatusConflict, rec.Code)

	pending()
	h.Wait()
	assert.Equal(t, 1, g.calls)
}

func TestGenerateFailureReleasesLock(t *testing.T) {
	g := &fakeGenerator{err: errors.New("store down")}
	e, h := newTestHandler(&fakeRecommender{}, g, fakeFeatures{})

	do(t, e, http.MethodPost, "/api/pipeline/generate")
	h.Wait()
	rec, _ := do(t, e, http.MethodPost, "/api/pipeline/generate")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, g.calls)
}

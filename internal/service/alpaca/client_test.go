package alpaca

import (
	"context"
	"errors"
	"testing"
	"time"

	"FinRank/internal/domain/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBars struct {
	req  marketdata.GetBarsRequest
	syms []string
	out  map[string][]marketdata.Bar
	err  error
}

func (f *fakeBars) GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error) {
	f.syms = symbols
	f.req = req
	return f.out, f.err
}

func TestFetchClosesConvertsBars(t *testing.T) {
	now := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)
	api := &fakeBars{out: map[string][]marketdata.Bar{
		"AAPL": {
			{Timestamp: time.Date(2025, 3, 12, 4, 0, 0, 0, time.UTC), Close: 210},
			{Timestamp: time.Date(2025, 3, 13, 4, 0, 0, 0, time.UTC), Close: 212},
		},
		"EMPTY": {},
	}}
	c := NewClientWithAPI(api, "iex")
	c.now = func() time.Time { return now }

	out, err := c.FetchCloses(context.Background(), []string{"AAPL", "EMPTY"}, "5y", "1d")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "EMPTY"}, api.syms)
	assert.Equal(t, marketdata.All, api.req.Adjustment)
	assert.Equal(t, time.Date(2020, 3, 14, 20, 0, 0, 0, time.UTC), api.req.Start)

	require.Len(t, out["AAPL"], 2)
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), out["AAPL"][0].Date)
	assert.NotContains(t, out, "EMPTY")
}

func TestFetchClosesWrapsAPIError(t *testing.T) {
	c := NewClientWithAPI(&fakeBars{err: errors.New("403")}, "iex")
	_, err := c.FetchCloses(context.Background(), []string{"A"}, "1y", "1d")
	assert.ErrorIs(t, err, models.ErrSourceUnavailable)
}

func TestFetchClosesRejectsBadPeriod(t *testing.T) {
	c := NewClientWithAPI(&fakeBars{}, "iex")
	_, err := c.FetchCloses(context.Background(), []string{"A"}, "forever", "1d")
	assert.Error(t, err)
}

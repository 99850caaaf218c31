package alpaca

import (
	"context"
	"fmt"
	"time"

	"FinRank/internal/domain/models"
	"FinRank/pkg/util"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// BarsAPI is the subset of *marketdata.Client used here.
type BarsAPI interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Client downloads split and dividend adjusted bars for a whole batch in a
// single multi-symbol request.
type Client struct {
	api  BarsAPI
	feed marketdata.Feed
	now  func() time.Time
}

// NewClient builds a market data client from API credentials.
func NewClient(apiKey, apiSecret, baseURL, feed string) *Client {
	api := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return NewClientWithAPI(api, feed)
}

// NewClientWithAPI wraps an existing bars API.
func NewClientWithAPI(api BarsAPI, feed string) *Client {
	return &Client{api: api, feed: marketdata.Feed(feed), now: time.Now}
}

// FetchCloses implements repository.PriceSource.
func (c *Client) FetchCloses(ctx context.Context, tickers []string, period, interval string) (map[string]models.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := c.now().UTC()
	start, err := util.PeriodStart(now, period)
	if err != nil {
		return nil, err
	}
	tf, err := timeFrame(interval)
	if err != nil {
		return nil, err
	}

	bars, err := c.api.GetMultiBars(tickers, marketdata.GetBarsRequest{
		TimeFrame:  tf,
		Adjustment: marketdata.All,
		Start:      start,
		End:        now,
		Feed:       c.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: alpaca multi bars: %v", models.ErrSourceUnavailable, err)
	}

	out := make(map[string]models.Series, len(bars))
	for symbol, bs := range bars {
		s := make(models.Series, 0, len(bs))
		for _, b := range bs {
			if b.Close <= 0 {
				continue
			}
			s = append(s, models.Point{Date: util.Day(b.Timestamp), Close: b.Close})
		}
		if len(s) > 0 {
			out[symbol] = s
		}
	}
	return out, nil
}

func timeFrame(interval string) (marketdata.TimeFrame, error) {
	switch interval {
	case "", "1d":
		return marketdata.OneDay, nil
	case "1wk":
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	case "1mo":
		return marketdata.NewTimeFrame(1, marketdata.Month), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported interval %q", interval)
	}
}
